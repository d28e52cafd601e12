package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for the sync engine. Item-level errors are captured in
// batch results and never abort a run; run-level errors abort the run and
// mark the sync log failed.
var (
	// ErrAuthorizationExpired means the authorization-code flow was
	// abandoned or the code was reused. The user must restart the connect
	// flow.
	ErrAuthorizationExpired = errors.New("authorization expired or state not found")

	// ErrInvalidGrant means the provider rejected an authorization code as
	// expired or already used.
	ErrInvalidGrant = errors.New("invalid grant: authorization code expired or already used")

	// ErrRefreshFailed means the refresh token itself was rejected. Not
	// retryable; the integration is deactivated and the user must
	// reconnect.
	ErrRefreshFailed = errors.New("token refresh rejected by provider")

	// ErrIntegrationNotFound means no active integration exists for the
	// tenant and provider.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrWouldExceedDeadline is returned by the rate limiter when the
	// caller's context deadline would pass before a permit became
	// available.
	ErrWouldExceedDeadline = errors.New("rate limiter: context deadline would be exceeded")

	// ErrSyncLogImmutable means a write was attempted against a sync log
	// already in a terminal status.
	ErrSyncLogImmutable = errors.New("sync log is terminal and immutable")
)

// RateLimitedError is the distinguished retryable error adapters surface
// for HTTP 429 or provider-specific throttle codes, so the batch processor
// can apply backoff uniformly regardless of provider.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by provider, retry after %s", e.RetryAfter)
	}
	return "rate limited by provider"
}

// ProviderError wraps a non-throttle provider response. Responses in the
// 5xx range and timeouts are transient; other 4xx are permanent and
// recorded against the specific item without retry.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the provider error is worth retrying.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// RepositoryError wraps a persistence failure. The run is aborted and
// marked failed, since the engine cannot safely record partial progress.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// IsRetryable classifies an error for the batch processor's backoff loop.
// Rate limits, transient provider errors, and timeouts retry; everything
// else is recorded immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}
