// Package ratelimit implements the per-integration dual-window limiter
// gating all calls to one external POS account.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// DualWindowLimiter enforces two windows at once: a short burst window
// (requests per second) and a sustained window (requests per minute). One
// instance belongs to exactly one integration; limiters are never shared
// across tenants, so one tenant's throughput cannot starve another's.
//
// Token buckets do the cooperative waiting; a continuously refilling bucket
// alone can admit up to twice its rate inside one rolling window after an
// idle stretch, so a sliding-window guard enforces the strict bound on top.
type DualWindowLimiter struct {
	burst     *rate.Limiter
	sustained *rate.Limiter

	mu     sync.Mutex
	second *slidingWindow
	minute *slidingWindow

	metrics ports.MetricsRecorder
}

// Option configures a DualWindowLimiter.
type Option func(*DualWindowLimiter)

// WithMetrics records wait durations on the given recorder.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(l *DualWindowLimiter) { l.metrics = m }
}

// New creates a limiter allowing at most perSecond operations in any rolling
// one-second window and perMinute operations in any rolling one-minute
// window.
func New(perSecond, perMinute int, opts ...Option) *DualWindowLimiter {
	l := &DualWindowLimiter{
		burst:     rate.NewLimiter(rate.Limit(perSecond), perSecond),
		sustained: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		second:    newSlidingWindow(perSecond, time.Second),
		minute:    newSlidingWindow(perMinute, time.Minute),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until both windows allow one operation. It returns
// ctx.Err() if the context is cancelled while waiting, or
// domain.ErrWouldExceedDeadline if the caller's deadline would pass before
// a permit became available. Safe for concurrent use by multiple in-flight
// batch workers.
func (l *DualWindowLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	// The sustained window is the longer wait; taking it first keeps a
	// burst token from being consumed and then wasted behind a minute-long
	// sustained wait.
	if err := waitOne(ctx, l.sustained); err != nil {
		return err
	}
	if err := waitOne(ctx, l.burst); err != nil {
		return err
	}
	if err := l.admit(ctx); err != nil {
		return err
	}
	if l.metrics != nil {
		l.metrics.RateLimiterWait(time.Since(start).Seconds())
	}
	return nil
}

// admit holds the grant until it fits both rolling windows.
func (l *DualWindowLimiter) admit(ctx context.Context) error {
	for {
		now := time.Now()
		l.mu.Lock()
		wait := l.second.delay(now)
		if d := l.minute.delay(now); d > wait {
			wait = d
		}
		if wait <= 0 {
			l.second.record(now)
			l.minute.record(now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if deadline, ok := ctx.Deadline(); ok && now.Add(wait).After(deadline) {
			return domain.ErrWouldExceedDeadline
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func waitOne(ctx context.Context, lim *rate.Limiter) error {
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// rate.Limiter.Wait failed without the context being done: the
		// deadline cannot accommodate the required delay.
		return domain.ErrWouldExceedDeadline
	}
	return nil
}

// slidingWindow tracks grant times inside one rolling span. Callers hold
// the limiter's lock.
type slidingWindow struct {
	limit  int
	span   time.Duration
	grants []time.Time
}

func newSlidingWindow(limit int, span time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, span: span}
}

// delay prunes grants that left the window and returns how long a new grant
// must wait to keep any window of the configured span at or under the
// limit. A hair of margin keeps two grants exactly one span apart from ever
// sharing a window.
func (w *slidingWindow) delay(now time.Time) time.Duration {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.grants) && w.grants[i].Before(cutoff) {
		i++
	}
	w.grants = w.grants[i:]
	if len(w.grants) < w.limit {
		return 0
	}
	blocking := w.grants[len(w.grants)-w.limit]
	return blocking.Add(w.span).Sub(now) + time.Millisecond
}

func (w *slidingWindow) record(now time.Time) {
	w.grants = append(w.grants, now)
}

var _ ports.RateLimiter = (*DualWindowLimiter)(nil)
