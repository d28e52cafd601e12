package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"poslink-core/internal/domain"
)

// ProductDoc represents one platform product in MongoDB. Price is stored as
// its canonical decimal string so no precision is lost in transit.
type ProductDoc struct {
	ID             string    `bson:"_id"`
	TenantID       string    `bson:"tenantId"`
	SKU            string    `bson:"sku"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description"`
	Price          string    `bson:"price"`
	Currency       string    `bson:"currency"`
	ImageURLs      []string  `bson:"imageUrls,omitempty"`
	QuantityOnHand int       `bson:"quantityOnHand"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a normalized catalog item.
func (d *ProductDoc) ToDomain() domain.CatalogItem {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		price = decimal.Zero
	}
	return domain.CatalogItem{
		PlatformID:     d.ID,
		SKU:            d.SKU,
		Name:           d.Name,
		Description:    d.Description,
		Price:          price,
		Currency:       d.Currency,
		ImageURLs:      d.ImageURLs,
		QuantityOnHand: d.QuantityOnHand,
		UpdatedAt:      d.UpdatedAt,
	}
}

// ProductDocFromDomain converts a catalog item to a MongoDB document.
func ProductDocFromDomain(tenantID string, item domain.CatalogItem) *ProductDoc {
	return &ProductDoc{
		ID:             item.PlatformID,
		TenantID:       tenantID,
		SKU:            item.SKU,
		Name:           item.Name,
		Description:    item.Description,
		Price:          item.Price.String(),
		Currency:       item.Currency,
		ImageURLs:      item.ImageURLs,
		QuantityOnHand: item.QuantityOnHand,
		UpdatedAt:      item.UpdatedAt,
	}
}
