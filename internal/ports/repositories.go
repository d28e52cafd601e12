package ports

import (
	"context"

	"poslink-core/internal/domain"
)

// IntegrationRepository persists OAuth integrations. It is the sole writer
// of integration rows and all writes are idempotent under retry.
type IntegrationRepository interface {
	// Create inserts a new integration, deactivating any previously active
	// integration for the same (tenant, provider) pair so that at most one
	// is active at a time.
	Create(ctx context.Context, integration *domain.Integration) error

	// GetByID retrieves an integration by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Integration, error)

	// GetActiveByTenantAndProvider retrieves the active integration for a
	// tenant and provider, or nil when none exists.
	GetActiveByTenantAndProvider(ctx context.Context, tenantID, provider string) (*domain.Integration, error)

	// UpdateTokens persists a refreshed token set.
	UpdateTokens(ctx context.Context, id string, tokens domain.TokenSet) error

	// Deactivate marks an integration inactive, preserving it for audit.
	Deactivate(ctx context.Context, id string) error
}

// ProductMappingRepository persists the external-to-platform product join
// records. Upsert is keyed on (integration id, external id) with
// conflict-on-unique-key semantics: update if exists, insert otherwise.
type ProductMappingRepository interface {
	Upsert(ctx context.Context, mapping *domain.ProductMapping) error
	GetByExternalID(ctx context.Context, integrationID, externalID string) (*domain.ProductMapping, error)
	GetByPlatformID(ctx context.Context, integrationID, platformID string) (*domain.ProductMapping, error)
	ListByIntegration(ctx context.Context, integrationID string) ([]*domain.ProductMapping, error)
}

// SyncLogRepository persists sync run audit records. Status moves forward
// only; count increments are retry-safe and atomic per record.
type SyncLogRepository interface {
	Create(ctx context.Context, log *domain.SyncLog) error
	MarkRunning(ctx context.Context, id string) error

	// AppendResults atomically adds counts and item results to a running
	// log. Safe to call concurrently from chunk completions.
	AppendResults(ctx context.Context, id string, counts domain.SyncCounts, items []domain.ItemResult) error

	// Finalize moves the log to a terminal status and sets finished-at
	// exactly once. Returns domain.ErrSyncLogImmutable if already
	// terminal.
	Finalize(ctx context.Context, id string, status domain.SyncStatus, errorSummary string) error

	GetByID(ctx context.Context, id string) (*domain.SyncLog, error)

	// ListByTenant returns one page of sync logs, newest first, plus the
	// total count.
	ListByTenant(ctx context.Context, tenantID string, page, perPage int) ([]*domain.SyncLog, int64, error)
}

// PlatformCatalog is the platform's own store of record for products, seen
// through the narrow surface the sync engine needs. The wider catalog
// domain model lives elsewhere in the platform.
type PlatformCatalog interface {
	GetProduct(ctx context.Context, tenantID, platformID string) (*domain.CatalogItem, error)
	ListProducts(ctx context.Context, tenantID string) ([]domain.CatalogItem, error)
	CreateProduct(ctx context.Context, tenantID string, item domain.CatalogItem) (string, error)
	UpdateProduct(ctx context.Context, tenantID string, item domain.CatalogItem) error
	SetQuantity(ctx context.Context, tenantID, platformID string, quantity int) error
}
