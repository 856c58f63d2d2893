package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blueinsight/blueinsight/internal/api"
	"github.com/blueinsight/blueinsight/internal/archive"
	"github.com/blueinsight/blueinsight/internal/cache"
	"github.com/blueinsight/blueinsight/internal/completion"
	"github.com/blueinsight/blueinsight/internal/config"
	"github.com/blueinsight/blueinsight/internal/datastore"
	"github.com/blueinsight/blueinsight/internal/datastore/duckdb"
	"github.com/blueinsight/blueinsight/internal/engine"
	"github.com/blueinsight/blueinsight/internal/insight"
	"github.com/blueinsight/blueinsight/internal/nl2sql"
	"github.com/blueinsight/blueinsight/internal/observability"
	"github.com/blueinsight/blueinsight/internal/session"
	sessionpostgres "github.com/blueinsight/blueinsight/internal/session/postgres"
	"github.com/blueinsight/blueinsight/internal/stream"
)

func main() {
	cfg, err := config.LoadFromEnv("blueinsight-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	runner, err := duckdb.Open(context.Background(), duckdb.Config{
		DataPath: cfg.Dataset.Path,
		Table:    cfg.Dataset.Table,
	})
	if err != nil {
		logger.Error("failed to open analytics datastore", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = runner.Close() }()

	executor := datastore.NewExecutor(runner, logger,
		datastore.WithRetryPolicy(datastore.RetryPolicy{
			MaxAttempts: cfg.Executor.MaxAttempts,
			Base:        cfg.Executor.BackoffBase,
			Cap:         cfg.Executor.BackoffCap,
		}),
		datastore.WithYearFilter(datastore.YearFilter{
			Year:       cfg.Executor.DefaultYear,
			DateColumn: cfg.Executor.DateColumn,
		}),
		datastore.WithRowCap(cfg.Executor.RowCap),
	)

	client, err := completion.NewHTTPClient(completion.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		DefaultTimeout: cfg.AI.SQLTimeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}

	generator := nl2sql.NewGenerator(client, nl2sql.Config{
		Timeout:     cfg.AI.SQLTimeout,
		MaxTokens:   cfg.AI.SQLMaxTokens,
		Temperature: cfg.AI.Temperature,
	})
	composer := insight.NewComposer(client, logger, insight.Config{
		Timeout:         cfg.AI.ComposeTimeout,
		RetryTimeout:    cfg.AI.ComposeRetryTimeout,
		MaxTokens:       cfg.AI.ComposeMaxTokens,
		Temperature:     cfg.AI.Temperature,
		SampleRows:      cfg.AI.SampleRows,
		RetrySampleRows: cfg.AI.RetrySampleRows,
	})

	var sessions session.Store
	if cfg.Session.Backend == "postgres" {
		sessionDB, err := sessionpostgres.Open(context.Background(), sessionpostgres.DBConfig{
			DSN:             cfg.Session.DSN,
			MaxOpenConns:    cfg.Session.MaxOpenConns,
			MaxIdleConns:    cfg.Session.MaxIdleConns,
			ConnMaxIdleTime: cfg.Session.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Session.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open session db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = sessionDB.Close() }()
		store := sessionpostgres.NewStore(sessionDB)
		if err := store.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to ensure session schema", slog.Any("error", err))
			os.Exit(1)
		}
		sessions = store
	} else {
		sessions = session.NewMemory()
	}

	service := engine.NewService(generator, executor, composer, cache.NewMemory(), sessions, logger, engine.Config{
		CacheEnabled:      cfg.Cache.Enabled,
		CacheTTL:          cfg.Cache.TTL,
		CacheSweepEvery:   cfg.Cache.SweepEvery,
		MaxQuestionLength: cfg.Engine.MaxQuestionLength,
		SuggestionLimit:   cfg.Engine.SuggestionLimit,
	})

	if cfg.Archive.Enabled {
		archiver, err := archive.New(context.Background(), archive.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize report archive", slog.Any("error", err))
			os.Exit(1)
		}
		service.SetArchiver(archiver)
	}

	deps := api.Dependencies{
		Logger:   logger,
		Engine:   service,
		Streamer: stream.NewCoordinator(stream.Config{WordsPerMinute: cfg.Stream.WordsPerMinute}),
		Readiness: api.CombineReadinessChecks(
			api.CheckDatasetConfig(cfg),
			api.CheckAIConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
