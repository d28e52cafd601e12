// Package repository contains the MongoDB persistence implementations.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"poslink-core/internal/domain"
	"poslink-core/internal/infrastructure/repository/entity"
	"poslink-core/internal/ports"
)

// MongoIntegrationRepository implements IntegrationRepository using MongoDB.
type MongoIntegrationRepository struct {
	collection *mongo.Collection
}

// NewMongoIntegrationRepository creates a new MongoDB integration repository.
func NewMongoIntegrationRepository(db *mongo.Database) ports.IntegrationRepository {
	return &MongoIntegrationRepository{
		collection: db.Collection("integrations"),
	}
}

// Create inserts a new integration. Any previously active integration for
// the same (tenant, provider) pair is deactivated first so at most one
// stays active.
func (r *MongoIntegrationRepository) Create(ctx context.Context, integration *domain.Integration) error {
	doc := entity.IntegrationDocFromDomain(integration)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "provider", Value: 1},
			{Key: "active", Value: 1},
		},
	}
	_, _ = r.collection.Indexes().CreateOne(ctx, indexModel)

	deactivate := bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}}
	filter := bson.M{
		"tenantId": integration.TenantID,
		"provider": integration.Provider,
		"active":   true,
	}
	if _, err := r.collection.UpdateMany(ctx, filter, deactivate); err != nil {
		return fmt.Errorf("failed to deactivate previous integrations: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}
	return nil
}

// GetByID retrieves an integration by its identifier.
func (r *MongoIntegrationRepository) GetByID(ctx context.Context, id string) (*domain.Integration, error) {
	var doc entity.IntegrationDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetActiveByTenantAndProvider retrieves the active integration for a
// tenant and provider, or nil when none exists.
func (r *MongoIntegrationRepository) GetActiveByTenantAndProvider(ctx context.Context, tenantID, provider string) (*domain.Integration, error) {
	var doc entity.IntegrationDoc
	filter := bson.M{
		"tenantId": tenantID,
		"provider": provider,
		"active":   true,
	}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return doc.ToDomain(), nil
}

// UpdateTokens persists a refreshed token set.
func (r *MongoIntegrationRepository) UpdateTokens(ctx context.Context, id string, tokens domain.TokenSet) error {
	update := bson.M{"$set": bson.M{
		"accessToken":    tokens.AccessToken,
		"refreshToken":   tokens.RefreshToken,
		"tokenExpiresAt": tokens.ExpiresAt,
		"updatedAt":      time.Now(),
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}

// Deactivate marks an integration inactive, preserving it for audit.
func (r *MongoIntegrationRepository) Deactivate(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}
