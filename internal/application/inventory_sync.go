package application

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// InventorySyncService keeps quantity-on-hand consistent for already-mapped
// products. Unmapped products are catalog sync's job; inventory sync
// tolerates dangling mappings by skipping them.
type InventorySyncService struct {
	mappings ports.ProductMappingRepository
	catalog  ports.PlatformCatalog
	batches  *BatchProcessor
	logger   zerolog.Logger
}

// NewInventorySyncService creates an inventory sync service.
func NewInventorySyncService(
	mappings ports.ProductMappingRepository,
	catalog ports.PlatformCatalog,
	batches *BatchProcessor,
	logger zerolog.Logger,
) *InventorySyncService {
	return &InventorySyncService{
		mappings: mappings,
		catalog:  catalog,
		batches:  batches,
		logger:   logger,
	}
}

// SyncFromExternal pulls external quantities into the platform store.
func (s *InventorySyncService) SyncFromExternal(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	return s.sync(ctx, run, domain.DirectionImport)
}

// SyncToExternal pushes platform quantities to the external system.
func (s *InventorySyncService) SyncToExternal(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	return s.sync(ctx, run, domain.DirectionExport)
}

// SyncBidirectional reconciles quantities in both directions. With only the
// platform side carrying a usable timestamp, the rule is: a platform
// quantity edited since the mapping's last sync wins, otherwise the
// external side does.
func (s *InventorySyncService) SyncBidirectional(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	return s.sync(ctx, run, domain.DirectionBidirectional)
}

// inventoryFetchPageSize caps how many external IDs one level lookup asks
// for.
const inventoryFetchPageSize = 100

func (s *InventorySyncService) sync(ctx context.Context, run *syncRun, direction string) (*domain.BatchResult, error) {
	mappings, err := s.mappings.ListByIntegration(ctx, run.Integration.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product mappings: %w", err)
	}

	levels, err := s.fetchLevels(ctx, run, mappings)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(mappings))
	for _, mapping := range mappings {
		mapping := mapping
		tasks = append(tasks, Task{
			Key: mapping.ExternalID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.syncOne(ctx, run, mapping, levels, direction)
			},
		})
	}

	return s.batches.Run(ctx, run.Limiter, tasks), nil
}

// fetchLevels pulls the current external quantities for every mapped item up
// front, one page-sized adapter call per chunk instead of one call per item.
func (s *InventorySyncService) fetchLevels(ctx context.Context, run *syncRun, mappings []*domain.ProductMapping) (map[string]int, error) {
	ids := make([]string, 0, len(mappings))
	for _, mapping := range mappings {
		ids = append(ids, mapping.ExternalID)
	}

	levels := make(map[string]int, len(ids))
	for start := 0; start < len(ids); start += inventoryFetchPageSize {
		end := start + inventoryFetchPageSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := run.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		page, err := run.Adapter.FetchInventoryLevels(ctx, run.Integration, run.AccessToken, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch inventory levels: %w", err)
		}
		for id, qty := range page {
			levels[id] = qty
		}
	}
	return levels, nil
}

func (s *InventorySyncService) syncOne(ctx context.Context, run *syncRun, mapping *domain.ProductMapping, levels map[string]int, direction string) (domain.ItemResult, error) {
	result := domain.ItemResult{
		Key:        mapping.ExternalID,
		ExternalID: mapping.ExternalID,
		PlatformID: mapping.PlatformID,
	}

	product, err := s.catalog.GetProduct(ctx, run.Integration.TenantID, mapping.PlatformID)
	if err != nil {
		return domain.ItemResult{}, &domain.RepositoryError{Op: "get platform product", Err: err}
	}
	if product == nil {
		result.Outcome = domain.ItemOutcomeSkipped
		result.Reason = "mapping points at a removed platform product"
		return result, nil
	}

	externalQty, known := levels[mapping.ExternalID]
	if !known {
		result.Outcome = domain.ItemOutcomeSkipped
		result.Reason = "mapping points at a removed external item"
		return result, nil
	}

	if externalQty == product.QuantityOnHand {
		result.Outcome = domain.ItemOutcomeSkipped
		result.Reason = "quantities already equal"
		return result, nil
	}

	platformWins := direction == domain.DirectionExport
	if direction == domain.DirectionBidirectional {
		platformWins = product.UpdatedAt.After(mapping.LastSyncedAt)
	}

	if run.DryRun {
		result.Outcome = domain.ItemOutcomeUpdated
		result.Reason = "dry run"
		return result, nil
	}

	if platformWins {
		if err := run.Adapter.SetInventoryLevel(ctx, run.Integration, run.AccessToken, mapping.ExternalID, product.QuantityOnHand); err != nil {
			return domain.ItemResult{}, err
		}
	} else {
		if err := s.catalog.SetQuantity(ctx, run.Integration.TenantID, mapping.PlatformID, externalQty); err != nil {
			return domain.ItemResult{}, &domain.RepositoryError{Op: "set platform quantity", Err: err}
		}
	}

	result.Outcome = domain.ItemOutcomeUpdated
	return result, nil
}
