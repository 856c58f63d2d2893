// Package session keeps per-session history of answered questions:
// append-only per session id, cleared only explicitly by the caller.
package session

import (
	"context"
	"sync"

	"github.com/blueinsight/blueinsight/internal/answer"
)

type Store interface {
	Append(ctx context.Context, sessionID string, bundle answer.Bundle) error
	History(ctx context.Context, sessionID string) ([]answer.Bundle, error)
	Clear(ctx context.Context, sessionID string) error
	ClearAll(ctx context.Context) error
}

type Memory struct {
	mu      sync.RWMutex
	history map[string][]answer.Bundle
}

func NewMemory() *Memory {
	return &Memory{history: make(map[string][]answer.Bundle)}
}

func (m *Memory) Append(_ context.Context, sessionID string, bundle answer.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionID] = append(m.history[sessionID], bundle)
	return nil
}

func (m *Memory) History(_ context.Context, sessionID string) ([]answer.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.history[sessionID]
	bundles := make([]answer.Bundle, len(stored))
	copy(bundles, stored)
	return bundles, nil
}

func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionID)
	return nil
}

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[string][]answer.Bundle)
	return nil
}
