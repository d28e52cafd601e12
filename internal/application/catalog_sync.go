package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// syncRun carries the per-run environment resolved by the orchestrator:
// the integration, its adapter, its own rate limiter, a fresh decrypted
// access token, and the dry-run flag that suppresses all writes on both
// sides.
type syncRun struct {
	Integration *domain.Integration
	Adapter     ports.PosAdapter
	Limiter     ports.RateLimiter
	AccessToken string
	DryRun      bool
}

// CatalogSyncService converts between the external catalog schema and the
// platform schema and decides create/update/no-op per record. When both
// sides changed the same record since the last sync, the conflict resolver
// arbitrates field by field.
type CatalogSyncService struct {
	mappings ports.ProductMappingRepository
	catalog  ports.PlatformCatalog
	resolver *ConflictResolver
	batches  *BatchProcessor
	logger   zerolog.Logger
}

// NewCatalogSyncService creates a catalog sync service.
func NewCatalogSyncService(
	mappings ports.ProductMappingRepository,
	catalog ports.PlatformCatalog,
	resolver *ConflictResolver,
	batches *BatchProcessor,
	logger zerolog.Logger,
) *CatalogSyncService {
	return &CatalogSyncService{
		mappings: mappings,
		catalog:  catalog,
		resolver: resolver,
		batches:  batches,
		logger:   logger,
	}
}

// SyncFromExternal imports the external catalog into the platform store.
// External records with no mapping become new platform products; mapped
// records are updated unless the sync hash shows nothing changed.
func (s *CatalogSyncService) SyncFromExternal(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	items, err := s.fetchExternalCatalog(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch external catalog: %w", err)
	}

	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		item := item
		tasks = append(tasks, Task{
			Key: item.ExternalID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.importItem(ctx, run, item)
			},
		})
	}

	return s.batches.Run(ctx, run.Limiter, tasks), nil
}

// SyncToExternal exports platform products to the external catalog.
func (s *CatalogSyncService) SyncToExternal(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	products, err := s.catalog.ListProducts(ctx, run.Integration.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform products: %w", err)
	}

	tasks := make([]Task, 0, len(products))
	for _, product := range products {
		product := product
		tasks = append(tasks, Task{
			Key: product.PlatformID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.exportItem(ctx, run, product)
			},
		})
	}

	return s.batches.Run(ctx, run.Limiter, tasks), nil
}

// SyncBidirectional reconciles both directions in one pass. Records
// touched on only one side since the last sync propagate as in a plain
// import or export; records touched on both sides go through the conflict
// resolver. Unmapped records on either side are created on the other.
func (s *CatalogSyncService) SyncBidirectional(ctx context.Context, run *syncRun) (*domain.BatchResult, error) {
	external, err := s.fetchExternalCatalog(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch external catalog: %w", err)
	}
	products, err := s.catalog.ListProducts(ctx, run.Integration.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform products: %w", err)
	}
	mappings, err := s.mappings.ListByIntegration(ctx, run.Integration.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product mappings: %w", err)
	}

	externalByID := make(map[string]domain.CatalogItem, len(external))
	for _, item := range external {
		externalByID[item.ExternalID] = item
	}
	platformByID := make(map[string]domain.CatalogItem, len(products))
	for _, product := range products {
		platformByID[product.PlatformID] = product
	}
	mappedExternal := make(map[string]bool, len(mappings))
	mappedPlatform := make(map[string]bool, len(mappings))

	var tasks []Task
	for _, mapping := range mappings {
		mapping := mapping
		mappedExternal[mapping.ExternalID] = true
		mappedPlatform[mapping.PlatformID] = true

		extItem, haveExt := externalByID[mapping.ExternalID]
		platItem, havePlat := platformByID[mapping.PlatformID]
		if !haveExt && !havePlat {
			// Dangling on both sides; nothing to reconcile.
			continue
		}
		tasks = append(tasks, Task{
			Key: mapping.ExternalID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.reconcileMapped(ctx, run, mapping, extItem, haveExt, platItem, havePlat)
			},
		})
	}

	for _, item := range external {
		if mappedExternal[item.ExternalID] {
			continue
		}
		item := item
		tasks = append(tasks, Task{
			Key: item.ExternalID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.importItem(ctx, run, item)
			},
		})
	}
	for _, product := range products {
		if mappedPlatform[product.PlatformID] {
			continue
		}
		product := product
		tasks = append(tasks, Task{
			Key: product.PlatformID,
			Do: func(ctx context.Context) (domain.ItemResult, error) {
				return s.exportItem(ctx, run, product)
			},
		})
	}

	return s.batches.Run(ctx, run.Limiter, tasks), nil
}

// fetchExternalCatalog pages through the adapter until the cursor runs
// out. Page fetches are run-level reads, not per-item work, so they are
// not batched; the adapter still sees the run's cancellation.
func (s *CatalogSyncService) fetchExternalCatalog(ctx context.Context, run *syncRun) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	cursor := ""
	for {
		page, err := run.Adapter.FetchCatalogPage(ctx, run.Integration, run.AccessToken, cursor)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextCursor == "" {
			return items, nil
		}
		cursor = page.NextCursor
	}
}

// importItem applies one external record to the platform store.
func (s *CatalogSyncService) importItem(ctx context.Context, run *syncRun, item domain.CatalogItem) (domain.ItemResult, error) {
	mapping, err := s.mappings.GetByExternalID(ctx, run.Integration.ID, item.ExternalID)
	if err != nil {
		return domain.ItemResult{}, &domain.RepositoryError{Op: "get mapping", Err: err}
	}

	hash := item.SyncHash()
	if mapping != nil && mapping.LastKnownHash == hash {
		return domain.ItemResult{
			Key:        item.ExternalID,
			ExternalID: item.ExternalID,
			PlatformID: mapping.PlatformID,
			Outcome:    domain.ItemOutcomeSkipped,
			Reason:     "unchanged since last sync",
		}, nil
	}

	if mapping == nil {
		return s.createPlatformProduct(ctx, run, item, hash)
	}

	existing, err := s.catalog.GetProduct(ctx, run.Integration.TenantID, mapping.PlatformID)
	if err != nil {
		return domain.ItemResult{}, &domain.RepositoryError{Op: "get platform product", Err: err}
	}
	if existing == nil {
		// Dangling mapping: the platform product was removed. Recreate and
		// repoint the mapping rather than failing the item.
		return s.createPlatformProduct(ctx, run, item, hash)
	}

	updated := item
	updated.PlatformID = existing.PlatformID
	if !run.DryRun {
		if err := s.catalog.UpdateProduct(ctx, run.Integration.TenantID, updated); err != nil {
			return domain.ItemResult{}, &domain.RepositoryError{Op: "update platform product", Err: err}
		}
		if err := s.saveMapping(ctx, run, item.ExternalID, existing.PlatformID, hash); err != nil {
			return domain.ItemResult{}, err
		}
	}

	return domain.ItemResult{
		Key:        item.ExternalID,
		ExternalID: item.ExternalID,
		PlatformID: existing.PlatformID,
		Outcome:    domain.ItemOutcomeUpdated,
	}, nil
}

// createPlatformProduct creates the platform side of a new external record
// and establishes the mapping together with the create, so a retry finds
// the mapping instead of duplicating the product.
func (s *CatalogSyncService) createPlatformProduct(ctx context.Context, run *syncRun, item domain.CatalogItem, hash string) (domain.ItemResult, error) {
	if run.DryRun {
		return domain.ItemResult{
			Key:        item.ExternalID,
			ExternalID: item.ExternalID,
			Outcome:    domain.ItemOutcomeCreated,
			Reason:     "dry run",
		}, nil
	}

	platformID, err := s.catalog.CreateProduct(ctx, run.Integration.TenantID, item)
	if err != nil {
		return domain.ItemResult{}, &domain.RepositoryError{Op: "create platform product", Err: err}
	}
	if err := s.saveMapping(ctx, run, item.ExternalID, platformID, hash); err != nil {
		return domain.ItemResult{}, err
	}

	return domain.ItemResult{
		Key:        item.ExternalID,
		ExternalID: item.ExternalID,
		PlatformID: platformID,
		Outcome:    domain.ItemOutcomeCreated,
	}, nil
}

// exportItem applies one platform product to the external catalog.
func (s *CatalogSyncService) exportItem(ctx context.Context, run *syncRun, product domain.CatalogItem) (domain.ItemResult, error) {
	mapping, err := s.mappings.GetByPlatformID(ctx, run.Integration.ID, product.PlatformID)
	if err != nil {
		return domain.ItemResult{}, &domain.RepositoryError{Op: "get mapping", Err: err}
	}

	hash := product.SyncHash()
	if mapping != nil && mapping.LastKnownHash == hash {
		return domain.ItemResult{
			Key:        product.PlatformID,
			ExternalID: mapping.ExternalID,
			PlatformID: product.PlatformID,
			Outcome:    domain.ItemOutcomeSkipped,
			Reason:     "unchanged since last sync",
		}, nil
	}

	if run.DryRun {
		outcome := domain.ItemOutcomeUpdated
		if mapping == nil {
			outcome = domain.ItemOutcomeCreated
		}
		return domain.ItemResult{
			Key:        product.PlatformID,
			PlatformID: product.PlatformID,
			Outcome:    outcome,
			Reason:     "dry run",
		}, nil
	}

	if mapping != nil {
		product.ExternalID = mapping.ExternalID
	}
	externalID, err := run.Adapter.UpsertCatalogItem(ctx, run.Integration, run.AccessToken, product)
	if err != nil {
		return domain.ItemResult{}, err
	}
	if err := s.saveMapping(ctx, run, externalID, product.PlatformID, hash); err != nil {
		return domain.ItemResult{}, err
	}

	outcome := domain.ItemOutcomeUpdated
	if mapping == nil {
		outcome = domain.ItemOutcomeCreated
	}
	return domain.ItemResult{
		Key:        product.PlatformID,
		ExternalID: externalID,
		PlatformID: product.PlatformID,
		Outcome:    outcome,
	}, nil
}

// reconcileMapped handles one mapped record during a bidirectional run.
func (s *CatalogSyncService) reconcileMapped(
	ctx context.Context,
	run *syncRun,
	mapping *domain.ProductMapping,
	extItem domain.CatalogItem, haveExt bool,
	platItem domain.CatalogItem, havePlat bool,
) (domain.ItemResult, error) {
	switch {
	case haveExt && !havePlat:
		return s.importItem(ctx, run, extItem)
	case havePlat && !haveExt:
		return s.exportItem(ctx, run, platItem)
	}

	extHash := extItem.SyncHash()
	platHash := platItem.SyncHash()
	last := mapping.LastKnownHash

	switch {
	case extHash == last && platHash == last:
		return domain.ItemResult{
			Key:        mapping.ExternalID,
			ExternalID: mapping.ExternalID,
			PlatformID: mapping.PlatformID,
			Outcome:    domain.ItemOutcomeSkipped,
			Reason:     "unchanged on both sides",
		}, nil
	case extHash != last && platHash == last:
		return s.importItem(ctx, run, extItem)
	case platHash != last && extHash == last:
		return s.exportItem(ctx, run, platItem)
	}

	mergedExt, mergedPlat, conflicts := s.mergeItems(mapping, extItem, platItem)
	pending := false
	for _, c := range conflicts {
		if c.Resolution == domain.ResolutionPendingReview {
			pending = true
		}
	}

	if !run.DryRun {
		if err := s.catalog.UpdateProduct(ctx, run.Integration.TenantID, mergedPlat); err != nil {
			return domain.ItemResult{}, &domain.RepositoryError{Op: "update platform product", Err: err}
		}
		if _, err := run.Adapter.UpsertCatalogItem(ctx, run.Integration, run.AccessToken, mergedExt); err != nil {
			return domain.ItemResult{}, err
		}
		// The hash only advances past a fully resolved merge. A pending
		// field leaves the sides disagreeing, and a stale hash is what
		// makes the next run surface the same conflict again.
		if !pending {
			if err := s.saveMapping(ctx, run, mapping.ExternalID, mapping.PlatformID, mergedPlat.SyncHash()); err != nil {
				return domain.ItemResult{}, err
			}
		}
	}

	result := domain.ItemResult{
		Key:        mapping.ExternalID,
		ExternalID: mapping.ExternalID,
		PlatformID: mapping.PlatformID,
		Outcome:    domain.ItemOutcomeUpdated,
		Conflicts:  conflicts,
	}
	if pending {
		result.Outcome = domain.ItemOutcomeConflicted
		result.Reason = "one or more fields deferred to manual review"
	} else if len(conflicts) > 0 {
		result.Reason = summarizeConflicts(conflicts)
	}
	return result, nil
}

// summarizeConflicts renders field-level decisions so the sync log
// explains, per item, which field was resolved how.
func summarizeConflicts(conflicts []domain.ConflictRecord) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Field, c.Resolution))
	}
	return "resolved: " + strings.Join(parts, ", ")
}

// mergeItems runs the conflict resolver over every synced field and builds
// one merged view per side. Resolved fields are applied to both views;
// pending-review fields keep each side's own value on that side, so neither
// system loses the value a reviewer still has to arbitrate.
func (s *CatalogSyncService) mergeItems(mapping *domain.ProductMapping, ext, plat domain.CatalogItem) (domain.CatalogItem, domain.CatalogItem, []domain.ConflictRecord) {
	mergedExt := ext
	mergedPlat := plat
	var conflicts []domain.ConflictRecord

	apply := func(field, extVal, platVal string, set func(item *domain.CatalogItem, resolved string)) {
		if extVal == platVal {
			return
		}
		res := s.resolver.Resolve(field, extVal, ext.UpdatedAt, platVal, plat.UpdatedAt)
		record := domain.ConflictRecord{
			MappingID:     mapping.ID,
			ExternalID:    mapping.ExternalID,
			PlatformID:    mapping.PlatformID,
			Field:         field,
			ExternalValue: extVal,
			PlatformValue: platVal,
			Resolution:    string(res.Source),
			Reason:        res.Reason,
		}
		if res.PendingReview {
			record.Resolution = domain.ResolutionPendingReview
		} else {
			set(&mergedExt, res.Value)
			set(&mergedPlat, res.Value)
		}
		conflicts = append(conflicts, record)
	}

	apply(domain.FieldSKU, ext.SKU, plat.SKU, func(item *domain.CatalogItem, v string) { item.SKU = v })
	apply(domain.FieldName, ext.Name, plat.Name, func(item *domain.CatalogItem, v string) { item.Name = v })
	apply(domain.FieldDescription, ext.Description, plat.Description, func(item *domain.CatalogItem, v string) { item.Description = v })
	apply(domain.FieldImages, strings.Join(ext.ImageURLs, "|"), strings.Join(plat.ImageURLs, "|"), func(item *domain.CatalogItem, v string) {
		if v == "" {
			item.ImageURLs = nil
			return
		}
		item.ImageURLs = strings.Split(v, "|")
	})
	apply(domain.FieldPrice, ext.Price.String(), plat.Price.String(), func(item *domain.CatalogItem, v string) {
		if d, err := decimal.NewFromString(v); err == nil {
			item.Price = d
		}
	})
	apply(domain.FieldQuantity, strconv.Itoa(ext.QuantityOnHand), strconv.Itoa(plat.QuantityOnHand), func(item *domain.CatalogItem, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			item.QuantityOnHand = n
		}
	})

	// Currency is not a resolved field; the platform owns it, and keeping
	// the views identical on it lets a fully resolved merge converge to one
	// hash.
	mergedExt.Currency = mergedPlat.Currency
	now := time.Now()
	mergedExt.UpdatedAt = now
	mergedPlat.UpdatedAt = now
	return mergedExt, mergedPlat, conflicts
}

// saveMapping upserts the mapping with a fresh hash and sync time.
func (s *CatalogSyncService) saveMapping(ctx context.Context, run *syncRun, externalID, platformID, hash string) error {
	err := s.mappings.Upsert(ctx, &domain.ProductMapping{
		IntegrationID: run.Integration.ID,
		ExternalID:    externalID,
		PlatformID:    platformID,
		LastSyncedAt:  time.Now(),
		LastKnownHash: hash,
	})
	if err != nil {
		return &domain.RepositoryError{Op: "upsert mapping", Err: err}
	}
	return nil
}
