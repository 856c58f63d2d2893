package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueinsight/blueinsight/internal/observability"
)

// ErrExhausted wraps the last runner error after all retry attempts failed.
var ErrExhausted = errors.New("datastore attempts exhausted")

// RetryPolicy bounds executor attempts. Backoff for attempt n (1-based) is
// min(Base * 2^(n-1), Cap).
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        time.Second,
		Cap:         5 * time.Second,
	}
}

func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base << (attempt - 1)
	if delay > p.Cap || delay <= 0 {
		delay = p.Cap
	}
	return delay
}

// Executor runs validated queries against a Runner with bounded retries, a
// default analysis-window filter, and a row cap.
type Executor struct {
	runner Runner
	policy RetryPolicy
	filter YearFilter
	rowCap int
	logger *slog.Logger

	// sleep is swapped in tests to record backoff delays.
	sleep func(context.Context, time.Duration) error
}

type ExecutorOption func(*Executor)

func WithRetryPolicy(policy RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = policy }
}

func WithYearFilter(filter YearFilter) ExecutorOption {
	return func(e *Executor) { e.filter = filter }
}

func WithRowCap(cap int) ExecutorOption {
	return func(e *Executor) { e.rowCap = cap }
}

func withSleep(sleep func(context.Context, time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

func NewExecutor(runner Runner, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		runner: runner,
		policy: DefaultRetryPolicy(),
		filter: DefaultYearFilter(),
		rowCap: MaxRows,
		logger: logger,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(executor)
	}
	if executor.logger == nil {
		executor.logger = slog.Default()
	}
	return executor
}

// Execute applies the default-year filter when the query names neither an
// explicit year nor the primary date column, then runs the query with
// bounded retries and truncates the result to the row cap.
func (e *Executor) Execute(ctx context.Context, sqlText string) (ResultSet, error) {
	filtered, injected := e.filter.Apply(sqlText)
	if injected {
		e.logger.DebugContext(ctx, "injected default year filter",
			slog.Int("year", e.filter.Year),
			slog.String("column", e.filter.DateColumn),
		)
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			observability.IncrementDatastoreRetry()
			if err := e.sleep(ctx, e.policy.Backoff(attempt-1)); err != nil {
				return ResultSet{}, err
			}
		}

		result, err := e.runner.RunQuery(ctx, filtered)
		if err == nil {
			return e.capResult(ctx, result), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ResultSet{}, ctx.Err()
		}
		e.logger.WarnContext(ctx, "datastore query attempt failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	return ResultSet{}, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, e.policy.MaxAttempts, lastErr)
}

func (e *Executor) capResult(ctx context.Context, result ResultSet) ResultSet {
	if e.rowCap <= 0 || len(result.Records) <= e.rowCap {
		return result
	}
	e.logger.WarnContext(ctx, "result set truncated at row cap",
		slog.Int("row_cap", e.rowCap),
		slog.Int("dropped", len(result.Records)-e.rowCap),
	)
	result.Records = result.Records[:e.rowCap]
	result.Truncated = true
	return result
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
