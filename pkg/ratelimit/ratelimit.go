// Package ratelimit paces outgoing searches so a provider is not hit in bursts.
package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrStopped is returned by Wait once the limiter has been stopped.
var ErrStopped = errors.New("ratelimit: limiter stopped")

// Limiter hands out evenly spaced slots, each shifted by up to jitter times
// the interval in either direction. It is safe for concurrent use; a nil
// *Limiter never blocks.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	next     time.Time
	stopped  bool
	rand     func() float64
}

// NewLimiter creates a limiter allowing rps operations per second. If rps is
// <= 0, the limiter does not block. jitter is clamped to [0, 1].
func NewLimiter(rps float64, jitter float64) *Limiter {
	l := &Limiter{jitter: min(max(jitter, 0), 1), rand: rand.Float64}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// Interval is the nominal spacing between slots, zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the caller's slot comes up or ctx is done. Concurrent
// callers are queued in arrival order.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	if l.interval == 0 {
		l.mu.Unlock()
		return ctx.Err()
	}
	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.spacing())
	l.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// spacing returns the interval shifted by a random jitter. Must be called
// with the lock held.
func (l *Limiter) spacing() time.Duration {
	if l.jitter == 0 {
		return l.interval
	}
	factor := 1 + l.jitter*(l.rand()*2-1) // 1 ± jitter
	return time.Duration(float64(l.interval) * factor)
}

// Stop makes every later Wait fail with ErrStopped.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}
