package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"poslink-core/internal/domain"
	"poslink-core/internal/infrastructure/repository/entity"
	"poslink-core/internal/ports"
)

// MongoProductMappingRepository implements ProductMappingRepository using
// MongoDB.
type MongoProductMappingRepository struct {
	collection *mongo.Collection
}

// NewMongoProductMappingRepository creates a new MongoDB mapping repository.
func NewMongoProductMappingRepository(db *mongo.Database) ports.ProductMappingRepository {
	return &MongoProductMappingRepository{
		collection: db.Collection("product_mappings"),
	}
}

// Upsert saves a mapping keyed on (integrationId, externalId). A concurrent
// retry of the same mapping lands on the same row.
func (r *MongoProductMappingRepository) Upsert(ctx context.Context, mapping *domain.ProductMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	doc := entity.ProductMappingDocFromDomain(mapping)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "integrationId", Value: 1},
			{Key: "externalId", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	_, _ = r.collection.Indexes().CreateOne(ctx, indexModel)

	filter := bson.M{
		"integrationId": mapping.IntegrationID,
		"externalId":    mapping.ExternalID,
	}
	update := bson.M{
		"$set": bson.M{
			"platformId":    doc.PlatformID,
			"lastSyncedAt":  doc.LastSyncedAt,
			"lastKnownHash": doc.LastKnownHash,
		},
		"$setOnInsert": bson.M{"_id": doc.ID},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert product mapping: %w", err)
	}
	return nil
}

// GetByExternalID retrieves a mapping by external ID, or nil when absent.
func (r *MongoProductMappingRepository) GetByExternalID(ctx context.Context, integrationID, externalID string) (*domain.ProductMapping, error) {
	var doc entity.ProductMappingDoc
	filter := bson.M{
		"integrationId": integrationID,
		"externalId":    externalID,
	}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product mapping: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetByPlatformID retrieves a mapping by platform ID, or nil when absent.
func (r *MongoProductMappingRepository) GetByPlatformID(ctx context.Context, integrationID, platformID string) (*domain.ProductMapping, error) {
	var doc entity.ProductMappingDoc
	filter := bson.M{
		"integrationId": integrationID,
		"platformId":    platformID,
	}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product mapping: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByIntegration retrieves all mappings for one integration.
func (r *MongoProductMappingRepository) ListByIntegration(ctx context.Context, integrationID string) ([]*domain.ProductMapping, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"integrationId": integrationID})
	if err != nil {
		return nil, fmt.Errorf("failed to list product mappings: %w", err)
	}
	defer cursor.Close(ctx)

	var mappings []*domain.ProductMapping
	for cursor.Next(ctx) {
		var doc entity.ProductMappingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product mapping: %w", err)
		}
		mappings = append(mappings, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return mappings, nil
}
