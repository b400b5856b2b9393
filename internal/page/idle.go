package page

import (
	"context"
	"sync/atomic"
	"time"
)

// IdleTracker waits for the host page's network activity to quiet down.
// Observe is the request-observer hook; the browser session calls it for
// every outgoing request.
type IdleTracker struct {
	activity chan struct{}
	observed atomic.Int64
}

// NewIdleTracker creates an IdleTracker.
func NewIdleTracker() *IdleTracker {
	return &IdleTracker{activity: make(chan struct{}, 1)}
}

// Observe records one outgoing request. It never blocks.
func (t *IdleTracker) Observe() {
	t.observed.Add(1)
	select {
	case t.activity <- struct{}{}:
	default:
	}
}

// Observed returns how many requests have been seen.
func (t *IdleTracker) Observed() int64 {
	return t.observed.Load()
}

// Wait returns once quiet has elapsed without an observed request. Requests
// seen before Wait was called are ignored.
func (t *IdleTracker) Wait(ctx context.Context, quiet time.Duration) error {
	select {
	case <-t.activity:
	default:
	}

	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.activity:
			timer.Reset(quiet)
		case <-timer.C:
			return nil
		}
	}
}
