package zendesk

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound requests. The pagination loop waits on it before
// every page instead of sleeping inline.
type Limiter interface {
	Wait(ctx context.Context) error
}

// intervalLimiter releases at most one request per interval. Concurrent
// callers reserve consecutive slots, so windows sharing one client never
// burst past the configured pace.
type intervalLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewIntervalLimiter creates a fixed-interval gate. A non-positive interval
// disables gating.
func NewIntervalLimiter(interval time.Duration) Limiter {
	return &intervalLimiter{interval: interval}
}

func (l *intervalLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if now.Before(l.next) {
		wait = l.next.Sub(now)
		l.next = l.next.Add(l.interval)
	} else {
		l.next = now.Add(l.interval)
	}
	l.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Give the reserved slot back so later callers don't pay for it.
		l.mu.Lock()
		l.next = l.next.Add(-l.interval)
		l.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
