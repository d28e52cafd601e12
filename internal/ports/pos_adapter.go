package ports

import (
	"context"

	"poslink-core/internal/domain"
)

// CatalogPage is one page of a paginated catalog read. An empty NextCursor
// means the read is complete.
type CatalogPage struct {
	Items      []domain.CatalogItem
	NextCursor string
}

// PosAdapter is the contract every external POS provider implementation
// must satisfy. The core engine only ever sees the normalized domain types;
// each adapter owns its own schema mapping and converts money between
// minor-unit integers and decimal major units at this boundary, never
// mid-pipeline.
//
// All methods honor context cancellation, and all must surface provider
// throttle responses as *domain.RateLimitedError so the batch processor can
// apply backoff uniformly regardless of provider.
type PosAdapter interface {
	// Provider returns the provider identifier (e.g. "shopify").
	Provider() string

	// AuthorizationURL builds the provider's OAuth authorization URL for a
	// merchant account, with the given opaque state round-tripped through
	// the redirect.
	AuthorizationURL(merchantID, state string) string

	// ExchangeCode exchanges a one-time authorization code for a token
	// set. Returns domain.ErrInvalidGrant if the code is expired or used.
	ExchangeCode(ctx context.Context, merchantID, code string) (*domain.TokenSet, error)

	// RefreshToken exchanges a refresh token for a new token set. Returns
	// domain.ErrRefreshFailed if the refresh token is rejected.
	RefreshToken(ctx context.Context, merchantID, refreshToken string) (*domain.TokenSet, error)

	// RevokeToken invalidates an access token at the provider.
	RevokeToken(ctx context.Context, merchantID, accessToken string) error

	// FetchCatalogPage reads one page of the external catalog. An empty
	// cursor starts from the beginning.
	FetchCatalogPage(ctx context.Context, integration *domain.Integration, accessToken, cursor string) (*CatalogPage, error)

	// UpsertCatalogItem creates or updates one external catalog item and
	// returns its external identifier.
	UpsertCatalogItem(ctx context.Context, integration *domain.Integration, accessToken string, item domain.CatalogItem) (string, error)

	// FetchInventoryLevels returns quantity-on-hand per external ID.
	FetchInventoryLevels(ctx context.Context, integration *domain.Integration, accessToken string, externalIDs []string) (map[string]int, error)

	// SetInventoryLevel sets quantity-on-hand for one external item.
	SetInventoryLevel(ctx context.Context, integration *domain.Integration, accessToken string, externalID string, quantity int) error
}

// AdapterRegistry resolves the adapter for a provider identifier.
type AdapterRegistry interface {
	Adapter(provider string) (PosAdapter, error)
}

// SyncEventPublisher broadcasts run lifecycle events to in-process
// watchers. Publishing never blocks the sync path.
type SyncEventPublisher interface {
	Publish(event *domain.SyncEvent)
}

// MetricsRecorder receives engine-level observations. Implementations must
// be safe for concurrent use.
type MetricsRecorder interface {
	RunStarted()
	RunFinished(status string, seconds float64)
	ItemsObserved(counts domain.SyncCounts)
	RateLimiterWait(seconds float64)
}
