package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("blueinsight-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Dataset.Table != "collections" {
		t.Fatalf("Dataset.Table = %q", cfg.Dataset.Table)
	}
	if cfg.Executor.MaxAttempts != 3 {
		t.Fatalf("Executor.MaxAttempts = %d", cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.BackoffCap != 5*time.Second {
		t.Fatalf("Executor.BackoffCap = %s", cfg.Executor.BackoffCap)
	}
	if cfg.Executor.RowCap != 10000 {
		t.Fatalf("Executor.RowCap = %d", cfg.Executor.RowCap)
	}
	if cfg.Executor.DefaultYear != 2023 {
		t.Fatalf("Executor.DefaultYear = %d", cfg.Executor.DefaultYear)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("Cache.Enabled should default to true in dev")
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Fatalf("Cache.TTL = %s", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepEvery != 10 {
		t.Fatalf("Cache.SweepEvery = %d", cfg.Cache.SweepEvery)
	}
	if cfg.Stream.WordsPerMinute != 400 {
		t.Fatalf("Stream.WordsPerMinute = %d", cfg.Stream.WordsPerMinute)
	}
	if cfg.Session.Backend != "memory" {
		t.Fatalf("Session.Backend = %q", cfg.Session.Backend)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.AI.ComposeTimeout != 120*time.Second {
		t.Fatalf("AI.ComposeTimeout = %s", cfg.AI.ComposeTimeout)
	}
	if cfg.AI.SQLTimeout != 30*time.Second {
		t.Fatalf("AI.SQLTimeout = %s", cfg.AI.SQLTimeout)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"BLUEINSIGHT_PROFILE": "prod"})
	cfg, err := Load("blueinsight-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Session.Backend != "postgres" {
		t.Fatalf("Session.Backend = %q, want postgres in prod", cfg.Session.Backend)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL should default to true in prod")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadTestProfileDisablesCache(t *testing.T) {
	lookup := mapLookup(map[string]string{"BLUEINSIGHT_PROFILE": "test"})
	cfg, err := Load("blueinsight-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Enabled {
		t.Fatal("Cache.Enabled should default to false in test")
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"BLUEINSIGHT_PROFILE":                    "test",
		"BLUEINSIGHT_SERVICE_NAME":               "blueinsight-custom",
		"BLUEINSIGHT_HTTP_ADDR":                  ":9999",
		"BLUEINSIGHT_HTTP_READ_TIMEOUT":          "2s",
		"BLUEINSIGHT_HTTP_WRITE_TIMEOUT":         "3s",
		"BLUEINSIGHT_DATASET_PATH":               "/var/data/collections_q1.csv",
		"BLUEINSIGHT_DATASET_TABLE":              "collections_q1",
		"BLUEINSIGHT_EXECUTOR_MAX_ATTEMPTS":      "5",
		"BLUEINSIGHT_EXECUTOR_BACKOFF_BASE":      "500ms",
		"BLUEINSIGHT_EXECUTOR_BACKOFF_CAP":       "8s",
		"BLUEINSIGHT_EXECUTOR_ROW_CAP":           "2000",
		"BLUEINSIGHT_EXECUTOR_DEFAULT_YEAR":      "2024",
		"BLUEINSIGHT_EXECUTOR_DATE_COLUMN":       "initiated_date",
		"BLUEINSIGHT_AI_BASE_URL":                "https://api.example.com",
		"BLUEINSIGHT_AI_API_KEY":                 "secret-key",
		"BLUEINSIGHT_AI_MODEL":                   "gpt-5.2",
		"BLUEINSIGHT_AI_TEMPERATURE":             "0.3",
		"BLUEINSIGHT_AI_SQL_TIMEOUT":             "21s",
		"BLUEINSIGHT_AI_SQL_MAX_TOKENS":          "700",
		"BLUEINSIGHT_AI_COMPOSE_TIMEOUT":         "90s",
		"BLUEINSIGHT_AI_COMPOSE_RETRY_TIMEOUT":   "20s",
		"BLUEINSIGHT_AI_COMPOSE_MAX_TOKENS":      "2000",
		"BLUEINSIGHT_AI_SAMPLE_ROWS":             "40",
		"BLUEINSIGHT_AI_RETRY_SAMPLE_ROWS":       "5",
		"BLUEINSIGHT_CACHE_ENABLED":              "true",
		"BLUEINSIGHT_CACHE_TTL":                  "10m",
		"BLUEINSIGHT_CACHE_SWEEP_EVERY":          "7",
		"BLUEINSIGHT_STREAM_WORDS_PER_MINUTE":    "250",
		"BLUEINSIGHT_ENGINE_MAX_QUESTION_LENGTH": "300",
		"BLUEINSIGHT_ENGINE_SUGGESTION_LIMIT":    "5",
		"BLUEINSIGHT_SESSION_BACKEND":            "postgres",
		"BLUEINSIGHT_SESSION_DSN":                "postgres://example",
		"BLUEINSIGHT_SESSION_MAX_OPEN_CONNS":     "42",
		"BLUEINSIGHT_SESSION_MAX_IDLE_CONNS":     "17",
		"BLUEINSIGHT_ARCHIVE_ENABLED":            "true",
		"BLUEINSIGHT_ARCHIVE_ENDPOINT":           "s3.example.com",
		"BLUEINSIGHT_ARCHIVE_BUCKET":             "blueinsight-prod",
		"BLUEINSIGHT_ARCHIVE_REGION":             "us-west-2",
		"BLUEINSIGHT_ARCHIVE_ACCESS_KEY":         "abc",
		"BLUEINSIGHT_ARCHIVE_SECRET_KEY":         "def",
		"BLUEINSIGHT_ARCHIVE_USE_SSL":            "true",
		"BLUEINSIGHT_ARCHIVE_PREFIX":             "tenant-root",
		"BLUEINSIGHT_ARCHIVE_AUTO_CREATE_BUCKET": "false",
		"BLUEINSIGHT_LOG_LEVEL":                  "error",
	})
	cfg, err := Load("blueinsight-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "blueinsight-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Dataset.Path != "/var/data/collections_q1.csv" {
		t.Fatalf("Dataset.Path = %q", cfg.Dataset.Path)
	}
	if cfg.Dataset.Table != "collections_q1" {
		t.Fatalf("Dataset.Table = %q", cfg.Dataset.Table)
	}
	if cfg.Executor.MaxAttempts != 5 {
		t.Fatalf("Executor.MaxAttempts = %d", cfg.Executor.MaxAttempts)
	}
	if cfg.Executor.BackoffBase != 500*time.Millisecond {
		t.Fatalf("Executor.BackoffBase = %s", cfg.Executor.BackoffBase)
	}
	if cfg.Executor.BackoffCap != 8*time.Second {
		t.Fatalf("Executor.BackoffCap = %s", cfg.Executor.BackoffCap)
	}
	if cfg.Executor.RowCap != 2000 {
		t.Fatalf("Executor.RowCap = %d", cfg.Executor.RowCap)
	}
	if cfg.Executor.DefaultYear != 2024 {
		t.Fatalf("Executor.DefaultYear = %d", cfg.Executor.DefaultYear)
	}
	if cfg.Executor.DateColumn != "initiated_date" {
		t.Fatalf("Executor.DateColumn = %q", cfg.Executor.DateColumn)
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-5.2" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.SQLTimeout != 21*time.Second {
		t.Fatalf("AI.SQLTimeout = %s", cfg.AI.SQLTimeout)
	}
	if cfg.AI.SQLMaxTokens != 700 {
		t.Fatalf("AI.SQLMaxTokens = %d", cfg.AI.SQLMaxTokens)
	}
	if cfg.AI.ComposeTimeout != 90*time.Second {
		t.Fatalf("AI.ComposeTimeout = %s", cfg.AI.ComposeTimeout)
	}
	if cfg.AI.ComposeRetryTimeout != 20*time.Second {
		t.Fatalf("AI.ComposeRetryTimeout = %s", cfg.AI.ComposeRetryTimeout)
	}
	if cfg.AI.ComposeMaxTokens != 2000 {
		t.Fatalf("AI.ComposeMaxTokens = %d", cfg.AI.ComposeMaxTokens)
	}
	if cfg.AI.SampleRows != 40 {
		t.Fatalf("AI.SampleRows = %d", cfg.AI.SampleRows)
	}
	if cfg.AI.RetrySampleRows != 5 {
		t.Fatalf("AI.RetrySampleRows = %d", cfg.AI.RetrySampleRows)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("Cache.Enabled = false, want true")
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("Cache.TTL = %s", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepEvery != 7 {
		t.Fatalf("Cache.SweepEvery = %d", cfg.Cache.SweepEvery)
	}
	if cfg.Stream.WordsPerMinute != 250 {
		t.Fatalf("Stream.WordsPerMinute = %d", cfg.Stream.WordsPerMinute)
	}
	if cfg.Engine.MaxQuestionLength != 300 {
		t.Fatalf("Engine.MaxQuestionLength = %d", cfg.Engine.MaxQuestionLength)
	}
	if cfg.Engine.SuggestionLimit != 5 {
		t.Fatalf("Engine.SuggestionLimit = %d", cfg.Engine.SuggestionLimit)
	}
	if cfg.Session.Backend != "postgres" {
		t.Fatalf("Session.Backend = %q", cfg.Session.Backend)
	}
	if cfg.Session.DSN != "postgres://example" {
		t.Fatalf("Session.DSN = %q", cfg.Session.DSN)
	}
	if cfg.Session.MaxOpenConns != 42 {
		t.Fatalf("Session.MaxOpenConns = %d", cfg.Session.MaxOpenConns)
	}
	if cfg.Session.MaxIdleConns != 17 {
		t.Fatalf("Session.MaxIdleConns = %d", cfg.Session.MaxIdleConns)
	}
	if !cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled = false, want true")
	}
	if cfg.Archive.Endpoint != "s3.example.com" {
		t.Fatalf("Archive.Endpoint = %q", cfg.Archive.Endpoint)
	}
	if cfg.Archive.Bucket != "blueinsight-prod" {
		t.Fatalf("Archive.Bucket = %q", cfg.Archive.Bucket)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL = false, want true")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket = true, want false")
	}
	if cfg.Archive.Prefix != "tenant-root" {
		t.Fatalf("Archive.Prefix = %q", cfg.Archive.Prefix)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"BLUEINSIGHT_PROFILE": "oops"},
		{"BLUEINSIGHT_HTTP_READ_TIMEOUT": "NaN"},
		{"BLUEINSIGHT_EXECUTOR_MAX_ATTEMPTS": "oops"},
		{"BLUEINSIGHT_EXECUTOR_BACKOFF_BASE": "fast"},
		{"BLUEINSIGHT_CACHE_SWEEP_EVERY": "oops"},
		{"BLUEINSIGHT_AI_TEMPERATURE": "bad"},
		{"BLUEINSIGHT_CACHE_ENABLED": "not-bool"},
		{"BLUEINSIGHT_SESSION_BACKEND": "etcd"},
		{"BLUEINSIGHT_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("blueinsight-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
