package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"poslink-core/internal/domain"
	"poslink-core/internal/infrastructure/repository/entity"
	"poslink-core/internal/ports"
)

// MongoPlatformCatalog implements PlatformCatalog using MongoDB. It is the
// platform's store of record seen through the narrow surface the sync
// engine needs.
type MongoPlatformCatalog struct {
	collection *mongo.Collection
}

// NewMongoPlatformCatalog creates a new MongoDB platform catalog.
func NewMongoPlatformCatalog(db *mongo.Database) ports.PlatformCatalog {
	return &MongoPlatformCatalog{
		collection: db.Collection("products"),
	}
}

// GetProduct retrieves one product, or nil when absent.
func (r *MongoPlatformCatalog) GetProduct(ctx context.Context, tenantID, platformID string) (*domain.CatalogItem, error) {
	var doc entity.ProductDoc
	filter := bson.M{"_id": platformID, "tenantId": tenantID}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	item := doc.ToDomain()
	return &item, nil
}

// ListProducts retrieves all products for one tenant.
func (r *MongoPlatformCatalog) ListProducts(ctx context.Context, tenantID string) ([]domain.CatalogItem, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var items []domain.CatalogItem
	for cursor.Next(ctx) {
		var doc entity.ProductDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		items = append(items, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return items, nil
}

// CreateProduct inserts a product and returns its platform ID.
func (r *MongoPlatformCatalog) CreateProduct(ctx context.Context, tenantID string, item domain.CatalogItem) (string, error) {
	if item.PlatformID == "" {
		item.PlatformID = uuid.NewString()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	doc := entity.ProductDocFromDomain(tenantID, item)

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	return item.PlatformID, nil
}

// UpdateProduct overwrites a product's synced fields.
func (r *MongoPlatformCatalog) UpdateProduct(ctx context.Context, tenantID string, item domain.CatalogItem) error {
	filter := bson.M{"_id": item.PlatformID, "tenantId": tenantID}
	update := bson.M{"$set": bson.M{
		"sku":            item.SKU,
		"name":           item.Name,
		"description":    item.Description,
		"price":          item.Price.String(),
		"currency":       item.Currency,
		"imageUrls":      item.ImageURLs,
		"quantityOnHand": item.QuantityOnHand,
		"updatedAt":      time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("product %s not found", item.PlatformID)
	}
	return nil
}

// SetQuantity writes quantity-on-hand without touching other fields.
func (r *MongoPlatformCatalog) SetQuantity(ctx context.Context, tenantID, platformID string, quantity int) error {
	filter := bson.M{"_id": platformID, "tenantId": tenantID}
	update := bson.M{"$set": bson.M{
		"quantityOnHand": quantity,
		"updatedAt":      time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set product quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("product %s not found", platformID)
	}
	return nil
}
