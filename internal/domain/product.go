package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is the normalized product record both sides of a sync are
// converted into. Money is a decimal major-unit amount; adapters convert
// from minor-unit integers exactly once, at the wire boundary.
type CatalogItem struct {
	ExternalID     string          `json:"external_id" bson:"external_id"`
	PlatformID     string          `json:"platform_id" bson:"platform_id"`
	SKU            string          `json:"sku" bson:"sku"`
	Name           string          `json:"name" bson:"name"`
	Description    string          `json:"description" bson:"description"`
	Price          decimal.Decimal `json:"price" bson:"price"`
	Currency       string          `json:"currency" bson:"currency"`
	ImageURLs      []string        `json:"image_urls" bson:"image_urls"`
	QuantityOnHand int             `json:"quantity_on_hand" bson:"quantity_on_hand"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}

// SyncHash returns a stable digest of the fields the sync engine cares
// about. Two records with equal hashes need no reconciliation.
func (c *CatalogItem) SyncHash() string {
	canonical := strings.Join([]string{
		c.SKU,
		c.Name,
		c.Description,
		c.Price.String(),
		c.Currency,
		strings.Join(c.ImageURLs, "|"),
		fmt.Sprintf("%d", c.QuantityOnHand),
	}, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ProductMapping links one external catalog item to exactly one platform
// product within an integration. The mapping survives product deletion on
// either side; the engine tolerates dangling references.
type ProductMapping struct {
	ID            string    `json:"id" bson:"_id"`
	IntegrationID string    `json:"integration_id" bson:"integration_id"`
	ExternalID    string    `json:"external_id" bson:"external_id"`
	PlatformID    string    `json:"platform_id" bson:"platform_id"`
	LastSyncedAt  time.Time `json:"last_synced_at" bson:"last_synced_at"`
	LastKnownHash string    `json:"last_known_hash" bson:"last_known_hash"`
}

// MinorUnitsToDecimal converts a minor-unit integer amount (e.g. cents) to
// its decimal major-unit representation.
func MinorUnitsToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// DecimalToMinorUnits converts a major-unit decimal amount to minor units,
// rounding half up to the nearest unit.
func DecimalToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
