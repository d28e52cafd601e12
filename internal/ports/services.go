package ports

import (
	"context"

	"poslink-core/internal/domain"
)

// EncryptionService encrypts credentials before they reach the repository.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// OAuthStateStore holds pending authorization states for the window between
// building an authorization URL and receiving the provider callback.
// Consume removes the state so a code cannot be replayed; states that are
// never consumed expire on their own.
type OAuthStateStore interface {
	Save(ctx context.Context, state *domain.AuthState) error

	// Consume returns the state and deletes it, or
	// domain.ErrAuthorizationExpired if the state is unknown or expired.
	Consume(ctx context.Context, state string) (*domain.AuthState, error)
}

// RateLimiter gates external calls for one integration. Acquire blocks
// cooperatively until a permit is available, returns ctx.Err() on
// cancellation, or domain.ErrWouldExceedDeadline when the caller's deadline
// would pass first.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// RateLimiterProvider owns the per-integration limiters. Every integration
// gets its own limiter instance, never a shared one, so one tenant's
// throughput cannot starve another's.
type RateLimiterProvider interface {
	LimiterFor(integrationID string) RateLimiter
}
