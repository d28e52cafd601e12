// Package oauthstate holds pending OAuth authorization states for the
// window between building an authorization URL and receiving the provider
// callback. States are single-use and expire on their own.
package oauthstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

const redisKeyPrefix = "oauth_state:"

// DefaultTTL is how long an unconsumed state stays valid.
const DefaultTTL = 10 * time.Minute

// RedisStore implements OAuthStateStore on Redis. GetDel makes consumption
// atomic, so a replayed callback cannot reuse a state even across
// instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.OAuthStateStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save stores the state with expiry.
func (s *RedisStore) Save(ctx context.Context, state *domain.AuthState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal auth state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+state.State, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save auth state: %w", err)
	}
	return nil
}

// Consume returns the state and deletes it atomically.
func (s *RedisStore) Consume(ctx context.Context, state string) (*domain.AuthState, error) {
	payload, err := s.client.GetDel(ctx, redisKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAuthorizationExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume auth state: %w", err)
	}

	var authState domain.AuthState
	if err := json.Unmarshal(payload, &authState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth state: %w", err)
	}
	return &authState, nil
}
