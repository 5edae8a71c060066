// Package ratelimit caps the number of orchestration calls per interview
// session. The counter is monotonic and never resets: once a session has
// exhausted its ceiling it stays exhausted, and the caller is expected to
// start a new session.
package ratelimit

import (
	"context"
	"errors"
	"sync"
)

// ErrLimitExceeded is returned once a session has used up its call budget.
var ErrLimitExceeded = errors.New("session call limit exceeded")

// DefaultCeiling is the combined question+summary call budget per session.
const DefaultCeiling = 15

// Limiter records one orchestration call against a session and reports
// whether the session is still within budget.
type Limiter interface {
	// Take consumes one call slot for the session. Returns ErrLimitExceeded
	// when the ceiling has been reached.
	Take(ctx context.Context, sessionID string) error
}

// Memory is a process-local Limiter. Its bounds only hold within a single
// instance; multi-instance deployments use the Redis limiter instead.
type Memory struct {
	ceiling int

	mu     sync.Mutex
	counts map[string]int
}

// NewMemory creates a Memory limiter. If ceiling <= 0, DefaultCeiling is used.
func NewMemory(ceiling int) *Memory {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Memory{
		ceiling: ceiling,
		counts:  make(map[string]int),
	}
}

// Take implements Limiter.
func (m *Memory) Take(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[sessionID]++
	if m.counts[sessionID] > m.ceiling {
		return ErrLimitExceeded
	}
	return nil
}
