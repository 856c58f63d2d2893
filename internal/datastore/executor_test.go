package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

type scriptedRunner struct {
	failures int
	calls    int
	result   ResultSet
}

func (r *scriptedRunner) RunQuery(_ context.Context, _ string) (ResultSet, error) {
	r.calls++
	if r.calls <= r.failures {
		return ResultSet{}, fmt.Errorf("attempt %d failed", r.calls)
	}
	return r.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestExecutorRetriesThenSucceeds(t *testing.T) {
	runner := &scriptedRunner{
		failures: 2,
		result: ResultSet{
			Columns: []string{"area"},
			Records: []Record{{"area": "Deira"}},
		},
	}
	var delays []time.Duration
	executor := NewExecutor(runner, discardLogger(),
		withSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)

	result, err := executor.Execute(context.Background(), "SELECT area FROM collections WHERE collected_date IS NOT NULL")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	if len(delays) != 2 {
		t.Fatalf("backoff delays = %d, want 2", len(delays))
	}
	for i, delay := range delays {
		if delay > 5*time.Second {
			t.Fatalf("delay[%d] = %v exceeds cap", i, delay)
		}
		if i > 0 && delay < delays[i-1] {
			t.Fatalf("delays decreased: %v", delays)
		}
	}
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	runner := &scriptedRunner{failures: 10}
	executor := NewExecutor(runner, discardLogger(),
		withSleep(func(context.Context, time.Duration) error { return nil }),
	)

	_, err := executor.Execute(context.Background(), "SELECT 1 WHERE collected_date IS NOT NULL")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Execute() error = %v, want ErrExhausted", err)
	}
	if runner.calls != 3 {
		t.Fatalf("runner calls = %d, want 3", runner.calls)
	}
}

func TestExecutorCapsResultSet(t *testing.T) {
	records := make([]Record, 25)
	for i := range records {
		records[i] = Record{"n": int64(i)}
	}
	runner := &scriptedRunner{result: ResultSet{Columns: []string{"n"}, Records: records}}
	executor := NewExecutor(runner, discardLogger(), WithRowCap(10))

	result, err := executor.Execute(context.Background(), "SELECT n FROM collections WHERE collected_date IS NOT NULL")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Records) != 10 {
		t.Fatalf("records = %d, want 10", len(result.Records))
	}
	if !result.Truncated {
		t.Fatal("result should be marked truncated")
	}
}

func TestExecutorStopsOnContextCancel(t *testing.T) {
	runner := &scriptedRunner{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	executor := NewExecutor(runner, discardLogger(),
		withSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := executor.Execute(ctx, "SELECT 1 WHERE collected_date IS NOT NULL")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := DefaultRetryPolicy()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := policy.Backoff(tc.attempt); got != tc.want {
			t.Fatalf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
