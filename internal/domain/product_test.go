package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCatalogItem_SyncHash(t *testing.T) {
	item := CatalogItem{
		SKU:            "SKU-1",
		Name:           "Widget",
		Description:    "A widget",
		Price:          decimal.NewFromFloat(19.99),
		Currency:       "USD",
		ImageURLs:      []string{"a.jpg", "b.jpg"},
		QuantityOnHand: 5,
	}

	t.Run("stable for identical content", func(t *testing.T) {
		same := item
		same.ExternalID = "different-id"
		same.PlatformID = "also-different"
		assert.Equal(t, item.SyncHash(), same.SyncHash(), "identifiers do not feed the hash")
	})

	t.Run("sensitive to every synced field", func(t *testing.T) {
		base := item.SyncHash()

		changed := item
		changed.SKU = "SKU-2"
		assert.NotEqual(t, base, changed.SyncHash())

		changed = item
		changed.Description = "A different widget"
		assert.NotEqual(t, base, changed.SyncHash())

		changed = item
		changed.Price = decimal.NewFromFloat(20.00)
		assert.NotEqual(t, base, changed.SyncHash())

		changed = item
		changed.QuantityOnHand = 6
		assert.NotEqual(t, base, changed.SyncHash())

		changed = item
		changed.ImageURLs = []string{"a.jpg"}
		assert.NotEqual(t, base, changed.SyncHash())
	})
}

func TestMinorUnitConversion(t *testing.T) {
	assert.True(t, decimal.NewFromFloat(19.99).Equal(MinorUnitsToDecimal(1999)))
	assert.True(t, decimal.NewFromInt(0).Equal(MinorUnitsToDecimal(0)))
	assert.True(t, decimal.NewFromFloat(-0.01).Equal(MinorUnitsToDecimal(-1)))

	assert.Equal(t, int64(1999), DecimalToMinorUnits(decimal.NewFromFloat(19.99)))
	assert.Equal(t, int64(2000), DecimalToMinorUnits(decimal.NewFromFloat(19.995)), "rounds half up")
	assert.Equal(t, int64(0), DecimalToMinorUnits(decimal.Zero))
}

func TestIntegration_TokenExpiresWithin(t *testing.T) {
	margin := 5 * time.Minute

	var zero Integration
	assert.False(t, zero.TokenExpiresWithin(margin), "zero expiry means non-expiring")

	soon := Integration{TokenExpiresAt: time.Now().Add(time.Minute)}
	assert.True(t, soon.TokenExpiresWithin(margin))

	later := Integration{TokenExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, later.TokenExpiresWithin(margin))
}
