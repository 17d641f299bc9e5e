// Package ratelimit enforces per-client sliding window limits on the
// REST endpoints. The window slides over real timestamps, so a burst
// does not get a fresh allowance at an interval boundary.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter answers whether one more request from key fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// MemoryLimiter keeps per-key hit timestamps in process memory. It is
// the single-instance default; Redis takes over when configured.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hits[key]
	live := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) >= l.limit {
		l.hits[key] = live
		return &Result{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   live[0].Add(l.window),
			Limit:     l.limit,
		}, nil
	}

	live = append(live, now)
	l.hits[key] = live
	return &Result{
		Allowed:   true,
		Remaining: l.limit - len(live),
		ResetAt:   now.Add(l.window),
		Limit:     l.limit,
	}, nil
}

// Reset drops all recorded hits for key.
func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}
