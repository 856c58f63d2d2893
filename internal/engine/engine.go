// Package engine runs the full question pipeline: cache lookup, SQL
// generation, execution, composition, chart selection, bundle assembly,
// cache store, and session append. It is the single layer that turns an
// uncaught pipeline error into a well-formed failure bundle, so callers
// always receive the complete bundle shape.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blueinsight/blueinsight/internal/answer"
	"github.com/blueinsight/blueinsight/internal/cache"
	"github.com/blueinsight/blueinsight/internal/datastore"
	"github.com/blueinsight/blueinsight/internal/insight"
	"github.com/blueinsight/blueinsight/internal/observability"
	"github.com/blueinsight/blueinsight/internal/session"
	"github.com/blueinsight/blueinsight/internal/viz"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question exceeds the length bound")
	ErrUnsafeQuestion  = errors.New("question contains markup injection markers")
)

// injectionMarkers are rejected outright rather than sanitized; the question
// text is embedded verbatim into completion prompts.
var injectionMarkers = []string{"<script", "</script", "<iframe", "javascript:", "onerror="}

// Generator produces a validated SQL query for a question.
type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// Executor runs a validated query with retries and row capping.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (datastore.ResultSet, error)
}

// Composer turns a result set into brief and detailed text. Implementations
// never fail; they degrade to deterministic output.
type Composer interface {
	Compose(ctx context.Context, question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) insight.Composition
}

// Archiver persists processed bundles out of band. Errors are logged, never
// surfaced to the caller.
type Archiver interface {
	ArchiveBundle(ctx context.Context, bundle answer.Bundle) error
}

type Config struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	CacheSweepEvery   int
	MaxQuestionLength int
	SuggestionLimit   int
}

type Request struct {
	Question  string
	SessionID string
	// Context disambiguates cache keys so callers can force fresh answers
	// for otherwise identical questions.
	Context string
}

type Service struct {
	generator Generator
	executor  Executor
	composer  Composer
	cache     cache.Store
	sessions  session.Store
	archiver  Archiver
	logger    *slog.Logger
	cfg       Config

	requests atomic.Int64
	now      func() time.Time
}

func NewService(generator Generator, executor Executor, composer Composer, store cache.Store, sessions session.Store, logger *slog.Logger, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.CacheSweepEvery <= 0 {
		cfg.CacheSweepEvery = 10
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 500
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator: generator,
		executor:  executor,
		composer:  composer,
		cache:     store,
		sessions:  sessions,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetArchiver enables bundle archiving. Optional.
func (s *Service) SetArchiver(archiver Archiver) {
	s.archiver = archiver
}

// ValidateRequest applies the request invariants before any pipeline work.
func (s *Service) ValidateRequest(req Request) error {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return ErrEmptyQuestion
	}
	if len(question) > s.cfg.MaxQuestionLength {
		return fmt.Errorf("%w: %d > %d", ErrQuestionTooLong, len(question), s.cfg.MaxQuestionLength)
	}
	lowered := strings.ToLower(question)
	for _, marker := range injectionMarkers {
		if strings.Contains(lowered, marker) {
			return ErrUnsafeQuestion
		}
	}
	return nil
}

// Ask processes one question end to end. The returned error reports only
// request validation failures; pipeline failures are converted into a
// failure bundle so the caller always gets the full shape back.
func (s *Service) Ask(ctx context.Context, req Request) (answer.Bundle, error) {
	if err := s.ValidateRequest(req); err != nil {
		return answer.Bundle{}, err
	}
	question := strings.TrimSpace(req.Question)

	s.maybeSweep(ctx)

	key := cache.Key(question, req.Context)
	if s.cfg.CacheEnabled {
		if cached, ok := s.cache.Get(key); ok {
			observability.ObserveCacheLookup(true)
			s.logger.InfoContext(ctx, "answer served from cache", slog.String("key", key))
			cached.SessionID = req.SessionID
			s.appendHistory(ctx, req.SessionID, cached)
			return cached, nil
		}
		observability.ObserveCacheLookup(false)
	}

	start := s.now()
	bundle, err := s.process(ctx, question, req.SessionID, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		observability.ObserveQuestion("failure", elapsed)
		s.logger.ErrorContext(ctx, "question processing failed",
			slog.String("question", question),
			slog.Any("error", err),
		)
		failed := failureBundle(question, req.SessionID, start, elapsed)
		s.appendHistory(ctx, req.SessionID, failed)
		return failed, nil
	}
	observability.ObserveQuestion("success", elapsed)

	if s.cfg.CacheEnabled {
		s.cache.Put(key, bundle)
	}
	s.appendHistory(ctx, req.SessionID, bundle)
	if s.archiver != nil {
		if archiveErr := s.archiver.ArchiveBundle(ctx, bundle); archiveErr != nil {
			s.logger.WarnContext(ctx, "bundle archive failed", slog.Any("error", archiveErr))
		}
	}
	return bundle, nil
}

func (s *Service) process(ctx context.Context, question, sessionID string, start time.Time) (answer.Bundle, error) {
	sqlText, err := s.generator.Generate(ctx, question)
	if err != nil {
		return answer.Bundle{}, fmt.Errorf("generate query: %w", err)
	}

	rs, err := s.executor.Execute(ctx, sqlText)
	if err != nil {
		return answer.Bundle{}, fmt.Errorf("execute query: %w", err)
	}

	columns := datastore.Classify(rs)
	composed := s.composer.Compose(ctx, question, rs, columns)
	if composed.FromFallback {
		observability.IncrementCompletionFallback()
	}

	chartType := resolveChartType(composed.ChartType, question, rs, columns)
	var visualization *viz.ChartSpec
	if spec, ok := viz.BuildChartSpec(chartType, rs, columns); ok {
		visualization = &spec
	}
	var multi []viz.ChartSpec
	if composed.MultiCharts {
		multi = viz.BuildMultiChartSpecs(chartType, rs, columns)
	}

	bundle := answer.Bundle{
		Question:           question,
		GeneratedQuery:     sqlText,
		Columns:            columns,
		Records:            rs.Records,
		BriefText:          composed.Brief,
		DetailedText:       composed.DetailedText,
		Sections:           composed.Sections,
		Insights:           composed.Insights,
		Visualization:      visualization,
		MultiVisualization: multi,
		SessionID:          sessionID,
		CreatedAt:          start,
		ExecutionTimeMs:    s.now().Sub(start).Milliseconds(),
		Metadata: answer.Metadata{
			RecordCount:           len(rs.Records),
			InferredQueryCategory: answer.InferCategory(question),
			Truncated:             rs.Truncated,
		},
	}
	return bundle, nil
}

// maybeSweep triggers a cache expiry sweep once every SweepEvery requests.
// A deterministic counter replaces a random roll so the cadence is exact
// and testable.
func (s *Service) maybeSweep(ctx context.Context) {
	if !s.cfg.CacheEnabled {
		return
	}
	count := s.requests.Add(1)
	if count%int64(s.cfg.CacheSweepEvery) != 0 {
		return
	}
	removed := s.cache.SweepExpired(s.cfg.CacheTTL)
	observability.ObserveCacheSweep(removed)
	if removed > 0 {
		s.logger.InfoContext(ctx, "swept expired cache entries", slog.Int("removed", removed))
	}
}

func (s *Service) appendHistory(ctx context.Context, sessionID string, bundle answer.Bundle) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.Append(ctx, sessionID, bundle); err != nil {
		s.logger.WarnContext(ctx, "session history append failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}

// History returns the session's bundles in append order.
func (s *Service) History(ctx context.Context, sessionID string) ([]answer.Bundle, error) {
	return s.sessions.History(ctx, sessionID)
}

// Suggestions derives follow-up questions from the session's history.
func (s *Service) Suggestions(ctx context.Context, sessionID string) ([]string, error) {
	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return insight.SuggestFollowUps(history, s.cfg.SuggestionLimit), nil
}

// ClearSession drops one session's history.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// ClearAllSessions drops every session's history.
func (s *Service) ClearAllSessions(ctx context.Context) error {
	return s.sessions.ClearAll(ctx)
}

func resolveChartType(hint, question string, rs datastore.ResultSet, columns []datastore.ColumnDescriptor) viz.ChartType {
	switch viz.ChartType(strings.ToLower(strings.TrimSpace(hint))) {
	case viz.Bar:
		return viz.Bar
	case viz.Line:
		return viz.Line
	case viz.Pie:
		return viz.Pie
	case viz.Scatter:
		return viz.Scatter
	default:
		return viz.SelectChartType(question, rs, columns)
	}
}

const failureBrief = "I couldn't process this question. Please try rephrasing it or ask about a different aspect of the collection data."

func failureBundle(question, sessionID string, start time.Time, elapsed time.Duration) answer.Bundle {
	return answer.Bundle{
		Question:        question,
		Columns:         []datastore.ColumnDescriptor{},
		Records:         []datastore.Record{},
		BriefText:       failureBrief,
		DetailedText:    failureBrief,
		Sections:        []answer.Section{{Tag: "error", Heading: "Unable to Answer", Text: failureBrief}},
		SessionID:       sessionID,
		CreatedAt:       start,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Metadata: answer.Metadata{
			RecordCount:           0,
			InferredQueryCategory: answer.InferCategory(question),
			Failed:                true,
		},
	}
}
