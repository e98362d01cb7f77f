package worker

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps how many tasks may start within a rolling window.
// A nil limiter admits everything, so callers never branch on whether
// rate limiting is configured.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	starts []time.Time
}

// NewRateLimiter creates a sliding-window limiter allowing limit task
// starts per window. Returns nil (an unlimited limiter) when either
// parameter is zero or negative.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

// Allow records a task start if the window has room.
func (l *RateLimiter) Allow() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.trim(now)
	if len(l.starts) >= l.limit {
		return false
	}
	l.starts = append(l.starts, now)
	return true
}

// Wait blocks until the window has room, then records a task start.
// The calling goroutine keeps its concurrency slot while it waits, so a
// saturated window slows the whole worker down instead of reordering work.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.trim(now)
		if len(l.starts) < l.limit {
			l.starts = append(l.starts, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest recorded start is the next one to age out.
		wait := l.starts[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending reports how many starts currently count against the window.
func (l *RateLimiter) Pending() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(time.Now())
	return len(l.starts)
}

// trim drops starts that have aged out of the window. Callers hold the lock.
func (l *RateLimiter) trim(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.starts) && !l.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.starts = l.starts[i:]
	}
}
