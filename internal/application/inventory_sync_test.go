package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poslink-core/internal/domain"
)

func newTestInventorySync(mappings *memMappings, catalog *memCatalog) *InventorySyncService {
	batches := testBatchProcessor(BatchConfig{BatchSize: 50, MaxConcurrency: 2})
	return NewInventorySyncService(mappings, catalog, batches, zerolog.Nop())
}

func seedMapping(t *testing.T, mappings *memMappings, externalID, platformID string, lastSynced time.Time) {
	t.Helper()
	err := mappings.Upsert(context.Background(), &domain.ProductMapping{
		IntegrationID: "int-1",
		ExternalID:    externalID,
		PlatformID:    platformID,
		LastSyncedAt:  lastSynced,
	})
	require.NoError(t, err)
}

func stockedProduct(platformID string, qty int, updatedAt time.Time) domain.CatalogItem {
	return domain.CatalogItem{
		PlatformID:     platformID,
		SKU:            "SKU-" + platformID,
		Name:           "Stocked " + platformID,
		Price:          decimal.NewFromInt(10),
		QuantityOnHand: qty,
		UpdatedAt:      updatedAt,
	}
}

func TestInventorySync_ImportPullsExternalQuantity(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(stockedProduct("plat-1", 9, time.Now()))
	seedMapping(t, mappings, "ext-1", "plat-1", time.Now())
	adapter := newFakeAdapter()
	adapter.levels["ext-1"] = 5
	service := newTestInventorySync(mappings, catalog)

	result, err := service.SyncFromExternal(ctx, testRun(adapter))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.Updated)

	product, err := catalog.GetProduct(ctx, "tenant-1", "plat-1")
	require.NoError(t, err)
	assert.Equal(t, 5, product.QuantityOnHand)
	assert.Empty(t, adapter.setLevels, "import never writes the external side")
}

func TestInventorySync_ExportPushesPlatformQuantity(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(stockedProduct("plat-1", 9, time.Now()))
	seedMapping(t, mappings, "ext-1", "plat-1", time.Now())
	adapter := newFakeAdapter()
	adapter.levels["ext-1"] = 5
	service := newTestInventorySync(mappings, catalog)

	result, err := service.SyncToExternal(ctx, testRun(adapter))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.Updated)
	assert.Equal(t, 9, adapter.setLevels["ext-1"])

	product, _ := catalog.GetProduct(ctx, "tenant-1", "plat-1")
	assert.Equal(t, 9, product.QuantityOnHand, "export never writes the platform side")
}

func TestInventorySync_EqualQuantitiesSkip(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(stockedProduct("plat-1", 5, time.Now()))
	seedMapping(t, mappings, "ext-1", "plat-1", time.Now())
	adapter := newFakeAdapter()
	adapter.levels["ext-1"] = 5
	service := newTestInventorySync(mappings, catalog)

	result, err := service.SyncBidirectional(ctx, testRun(adapter))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.Skipped)
	assert.Empty(t, adapter.setLevels)
}

func TestInventorySync_BidirectionalRecency(t *testing.T) {
	ctx := context.Background()
	lastSynced := time.Now().Add(-time.Hour)

	t.Run("platform edited since last sync wins", func(t *testing.T) {
		mappings := newMemMappings()
		catalog := newMemCatalog(stockedProduct("plat-1", 9, time.Now()))
		seedMapping(t, mappings, "ext-1", "plat-1", lastSynced)
		adapter := newFakeAdapter()
		adapter.levels["ext-1"] = 5
		service := newTestInventorySync(mappings, catalog)

		result, err := service.SyncBidirectional(ctx, testRun(adapter))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Counts.Updated)
		assert.Equal(t, 9, adapter.setLevels["ext-1"])
	})

	t.Run("platform untouched since last sync defers to external", func(t *testing.T) {
		mappings := newMemMappings()
		catalog := newMemCatalog(stockedProduct("plat-1", 9, lastSynced.Add(-time.Hour)))
		seedMapping(t, mappings, "ext-1", "plat-1", lastSynced)
		adapter := newFakeAdapter()
		adapter.levels["ext-1"] = 5
		service := newTestInventorySync(mappings, catalog)

		result, err := service.SyncBidirectional(ctx, testRun(adapter))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Counts.Updated)
		assert.Empty(t, adapter.setLevels)

		product, _ := catalog.GetProduct(ctx, "tenant-1", "plat-1")
		assert.Equal(t, 5, product.QuantityOnHand)
	})
}

func TestInventorySync_LevelsFetchedInOnePage(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(
		stockedProduct("plat-1", 9, time.Now()),
		stockedProduct("plat-2", 4, time.Now()),
		stockedProduct("plat-3", 1, time.Now()),
	)
	adapter := newFakeAdapter()
	for i, ext := range []string{"ext-1", "ext-2", "ext-3"} {
		seedMapping(t, mappings, ext, fmt.Sprintf("plat-%d", i+1), time.Now())
		adapter.levels[ext] = 7
	}
	service := newTestInventorySync(mappings, catalog)

	result, err := service.SyncFromExternal(ctx, testRun(adapter))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Counts.Updated)
	assert.Equal(t, 1, adapter.fetchLevelCalls, "levels fetched once for the whole run, not per item")
}

func TestInventorySync_DanglingMappingsAreSkipped(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(stockedProduct("plat-2", 3, time.Now()))
	seedMapping(t, mappings, "ext-1", "plat-gone", time.Now())
	seedMapping(t, mappings, "ext-gone", "plat-2", time.Now())
	adapter := newFakeAdapter()
	service := newTestInventorySync(mappings, catalog)

	result, err := service.SyncFromExternal(ctx, testRun(adapter))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.Skipped)
	assert.Zero(t, result.Counts.Failed, "dangling references are not errors")
}

func TestInventorySync_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	mappings := newMemMappings()
	catalog := newMemCatalog(stockedProduct("plat-1", 9, time.Now()))
	seedMapping(t, mappings, "ext-1", "plat-1", time.Now())
	adapter := newFakeAdapter()
	adapter.levels["ext-1"] = 5
	service := newTestInventorySync(mappings, catalog)

	run := testRun(adapter)
	run.DryRun = true
	result, err := service.SyncToExternal(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Counts.Updated, "outcome reported as if applied")
	assert.Empty(t, adapter.setLevels)
}
