// Package pubsub broadcasts sync run lifecycle events to in-process
// watchers, so callers can follow a run's progress without polling the
// repository.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// SyncEventChannel represents a subscription channel.
type SyncEventChannel struct {
	ID     string
	Filter *SyncEventFilter
	Events chan *domain.SyncEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// SyncEventFilter filters sync events.
type SyncEventFilter struct {
	Types         []string
	IntegrationID string
	TenantID      string
}

// SyncEventBus manages sync event subscriptions. Publishing never blocks
// the sync path; a subscriber with a full buffer drops events.
type SyncEventBus struct {
	mu       sync.RWMutex
	channels map[string]*SyncEventChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

var _ ports.SyncEventPublisher = (*SyncEventBus)(nil)

// NewSyncEventBus creates a new in-process event bus.
func NewSyncEventBus(logger zerolog.Logger) *SyncEventBus {
	return &SyncEventBus{
		channels: make(map[string]*SyncEventChannel),
		logger:   logger,
	}
}

// Subscribe creates a new subscription channel. The subscription is removed
// when ctx is cancelled.
func (ps *SyncEventBus) Subscribe(ctx context.Context, filter *SyncEventFilter) *SyncEventChannel {
	ps.idMu.Lock()
	id := ps.generateID()
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &SyncEventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.SyncEvent, 10),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Interface("filter", filter).
		Msg("Sync event subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel.
func (ps *SyncEventBus) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Sync event subscription removed")
}

// Publish broadcasts a sync event to all matching subscribers.
func (ps *SyncEventBus) Publish(event *domain.SyncEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	publishedCount := 0
	for _, channel := range ps.channels {
		if ps.matchesFilter(event, channel.Filter) {
			select {
			case channel.Events <- event:
				publishedCount++
			case <-channel.ctx.Done():
				// Channel is closed, skip
			default:
				ps.logger.Warn().
					Str("channelId", channel.ID).
					Msg("Channel buffer full, dropping event")
			}
		}
	}

	if publishedCount > 0 {
		ps.logger.Debug().
			Str("type", event.Type).
			Str("syncLogId", event.SyncLogID).
			Int("subscribers", publishedCount).
			Msg("Published sync event to subscribers")
	}
}

func (ps *SyncEventBus) matchesFilter(event *domain.SyncEvent, filter *SyncEventFilter) bool {
	if filter == nil {
		return true
	}

	if len(filter.Types) > 0 {
		typeMatch := false
		for _, eventType := range filter.Types {
			if event.Type == eventType {
				typeMatch = true
				break
			}
		}
		if !typeMatch {
			return false
		}
	}

	if filter.IntegrationID != "" && event.IntegrationID != filter.IntegrationID {
		return false
	}
	if filter.TenantID != "" && event.TenantID != filter.TenantID {
		return false
	}
	return true
}

func (ps *SyncEventBus) generateID() string {
	ps.nextID++
	return fmt.Sprintf("channel-%d", ps.nextID)
}

// GetStats returns pub/sub statistics.
func (ps *SyncEventBus) GetStats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
