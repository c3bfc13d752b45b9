// Package ratelimit gates expensive per-user operations behind a minimum
// interval between requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a user may start another expensive request.
// When the request is refused, wait is the time left until it would be allowed.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (allowed bool, wait time.Duration, err error)
}

// MemoryLimiter keeps the last accepted request time per user in memory.
// State is lost on restart.
type MemoryLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
	now      func() time.Time
}

// NewMemoryLimiter creates a limiter with the given minimum interval.
func NewMemoryLimiter(interval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		interval: interval,
		last:     make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Allow records now and returns true iff at least interval has passed since
// the last accepted request. A refused request leaves the record untouched.
func (l *MemoryLimiter) Allow(_ context.Context, userID int64) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	last, seen := l.last[userID]
	if seen {
		elapsed := now.Sub(last)
		if elapsed < l.interval {
			return false, l.interval - elapsed, nil
		}
	}
	if !seen || now.After(last) {
		l.last[userID] = now
	}
	return true, 0, nil
}
