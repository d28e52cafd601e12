package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poslink-core/internal/domain"
)

type recordingMetrics struct {
	waits int
}

func (m *recordingMetrics) RunStarted()                     {}
func (m *recordingMetrics) RunFinished(string, float64)     {}
func (m *recordingMetrics) ItemsObserved(domain.SyncCounts) {}
func (m *recordingMetrics) RateLimiterWait(float64)         { m.waits++ }

func TestDualWindowLimiter_BurstCapacityAdmitsImmediately(t *testing.T) {
	limiter := New(5, 300)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond, "burst capacity needs no waiting")
}

func TestDualWindowLimiter_CancelledWhileWaiting(t *testing.T) {
	limiter := New(1, 60)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Acquire(ctx))

	time.AfterFunc(20*time.Millisecond, cancel)
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDualWindowLimiter_ShortDeadlineRejectedUpFront(t *testing.T) {
	limiter := New(1, 60)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrWouldExceedDeadline)
}

func TestDualWindowLimiter_SustainedWindowGates(t *testing.T) {
	// Burst window is generous; the sustained window has a single permit, so
	// the second acquire must wait on it.
	limiter := New(10, 1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Acquire(ctx))

	time.AfterFunc(20*time.Millisecond, cancel)
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled, "sustained window blocked the acquire")
}

func TestDualWindowLimiter_RollingSecondWindowHoldsTheLine(t *testing.T) {
	// A bare token bucket refills continuously, so after a pause it can admit
	// up to twice its rate inside one rolling second. The limiter must not:
	// any five consecutive grants and the next one have to span over a
	// second.
	limiter := New(5, 600)
	ctx := context.Background()

	grants := make([]time.Time, 0, 12)
	for i := 0; i < 12; i++ {
		require.NoError(t, limiter.Acquire(ctx))
		grants = append(grants, time.Now())
	}

	for i := 0; i+5 < len(grants); i++ {
		span := grants[i+5].Sub(grants[i])
		assert.GreaterOrEqual(t, span, time.Second,
			"grants %d..%d fit inside one rolling second", i, i+5)
	}
}

func TestDualWindowLimiter_RecordsWaitMetric(t *testing.T) {
	metrics := &recordingMetrics{}
	limiter := New(5, 300, WithMetrics(metrics))

	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Acquire(context.Background()))
	assert.Equal(t, 2, metrics.waits)
}
