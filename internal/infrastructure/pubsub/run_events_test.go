package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poslink-core/internal/domain"
)

func event(eventType, integrationID, tenantID string) *domain.SyncEvent {
	return &domain.SyncEvent{
		Type:          eventType,
		SyncLogID:     "log-1",
		IntegrationID: integrationID,
		TenantID:      tenantID,
		OccurredAt:    time.Now(),
	}
}

func receive(t *testing.T, ch *SyncEventChannel) *domain.SyncEvent {
	t.Helper()
	select {
	case ev := <-ch.Events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestSyncEventBus_DeliversToSubscriber(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, nil)
	bus.Publish(event(domain.SyncEventRunStarted, "int-1", "tenant-1"))

	got := receive(t, ch)
	assert.Equal(t, domain.SyncEventRunStarted, got.Type)
	assert.Equal(t, "int-1", got.IntegrationID)
}

func TestSyncEventBus_FilterMatching(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, &SyncEventFilter{
		Types:         []string{domain.SyncEventRunFinished},
		IntegrationID: "int-1",
	})

	bus.Publish(event(domain.SyncEventRunStarted, "int-1", "tenant-1"))
	bus.Publish(event(domain.SyncEventRunFinished, "int-2", "tenant-1"))
	bus.Publish(event(domain.SyncEventRunFinished, "int-1", "tenant-1"))

	got := receive(t, ch)
	assert.Equal(t, domain.SyncEventRunFinished, got.Type)
	assert.Equal(t, "int-1", got.IntegrationID)
	assert.Empty(t, ch.Events, "non-matching events were filtered out")
}

func TestSyncEventBus_TenantFilter(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, &SyncEventFilter{TenantID: "tenant-2"})

	bus.Publish(event(domain.SyncEventRunStarted, "int-1", "tenant-1"))
	bus.Publish(event(domain.SyncEventRunStarted, "int-1", "tenant-2"))

	got := receive(t, ch)
	assert.Equal(t, "tenant-2", got.TenantID)
	assert.Empty(t, ch.Events)
}

func TestSyncEventBus_Unsubscribe(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, nil)
	bus.Unsubscribe(ch.ID)

	select {
	case <-ch.Done:
	case <-time.After(time.Second):
		t.Fatal("done channel not closed on unsubscribe")
	}
	assert.Equal(t, 0, bus.GetStats()["active_subscriptions"])

	// Publishing after unsubscribe must not panic or block.
	bus.Publish(event(domain.SyncEventRunStarted, "int-1", "tenant-1"))
}

func TestSyncEventBus_ContextCancelRemovesSubscription(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	bus.Subscribe(ctx, nil)
	require.Equal(t, 1, bus.GetStats()["active_subscriptions"])

	cancel()
	assert.Eventually(t, func() bool {
		return bus.GetStats()["active_subscriptions"] == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSyncEventBus_FullBufferDoesNotBlockPublisher(t *testing.T) {
	bus := NewSyncEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(ctx, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Buffer holds 10; the rest are dropped rather than blocking.
		for i := 0; i < 25; i++ {
			bus.Publish(event(domain.SyncEventBatchCompleted, "int-1", "tenant-1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Len(t, ch.Events, 10)
}
