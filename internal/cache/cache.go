// Package cache memoizes question result bundles with time-based expiry.
// Caching is a pure optimization: disabling it changes latency and upstream
// call volume, never observable behavior.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/blueinsight/blueinsight/internal/answer"
)

const keyMaxLength = 200

// Store is the injected cache interface so the in-memory implementation can
// be swapped for a distributed one without touching call sites.
type Store interface {
	Get(key string) (answer.Bundle, bool)
	Put(key string, bundle answer.Bundle)
	SweepExpired(ttl time.Duration) int
}

// Key normalizes a question into a cache key: lowercased, whitespace
// collapsed, truncated. A non-empty suffix disambiguates repeated identical
// questions when the caller wants a fresh bundle.
func Key(question, suffix string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.Join(strings.Fields(normalized), " ")
	if len(normalized) > keyMaxLength {
		normalized = normalized[:keyMaxLength]
	}
	if suffix == "" {
		return normalized
	}
	return normalized + "|" + suffix
}

type Memory struct {
	mu      sync.RWMutex
	entries map[string]answer.Bundle

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]answer.Bundle),
		now:     time.Now,
	}
}

func (m *Memory) Get(key string) (answer.Bundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bundle, ok := m.entries[key]
	return bundle, ok
}

func (m *Memory) Put(key string, bundle answer.Bundle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = bundle
}

// SweepExpired drops bundles older than ttl, judged against CreatedAt.
// Expiry is lazy: reads never check age, sweeps do.
func (m *Memory) SweepExpired(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, bundle := range m.entries {
		if bundle.CreatedAt.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
