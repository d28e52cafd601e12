package oauthstate

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// MemoryStore implements OAuthStateStore in process memory, for single
// instance deployments and tests. Expired states are evicted by the cache.
type MemoryStore struct {
	cache *ttlcache.Cache[string, *domain.AuthState]
}

var _ ports.OAuthStateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory state store and starts its eviction
// loop.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New[string, *domain.AuthState](
		ttlcache.WithTTL[string, *domain.AuthState](ttl),
	)
	go cache.Start()
	return &MemoryStore{cache: cache}
}

// Save stores the state with the configured TTL.
func (s *MemoryStore) Save(_ context.Context, state *domain.AuthState) error {
	s.cache.Set(state.State, state, ttlcache.DefaultTTL)
	return nil
}

// Consume returns the state and deletes it.
func (s *MemoryStore) Consume(_ context.Context, state string) (*domain.AuthState, error) {
	item := s.cache.Get(state)
	if item == nil {
		return nil, domain.ErrAuthorizationExpired
	}
	s.cache.Delete(state)
	return item.Value(), nil
}

// Stop halts the eviction loop.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}
