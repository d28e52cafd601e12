package entity

import (
	"time"

	"poslink-core/internal/domain"
)

// ProductMappingDoc represents an external-to-platform product link in
// MongoDB. Uniqueness is enforced on (integrationId, externalId).
type ProductMappingDoc struct {
	ID            string    `bson:"_id"`
	IntegrationID string    `bson:"integrationId"`
	ExternalID    string    `bson:"externalId"`
	PlatformID    string    `bson:"platformId"`
	LastSyncedAt  time.Time `bson:"lastSyncedAt"`
	LastKnownHash string    `bson:"lastKnownHash"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *ProductMappingDoc) ToDomain() *domain.ProductMapping {
	return &domain.ProductMapping{
		ID:            d.ID,
		IntegrationID: d.IntegrationID,
		ExternalID:    d.ExternalID,
		PlatformID:    d.PlatformID,
		LastSyncedAt:  d.LastSyncedAt,
		LastKnownHash: d.LastKnownHash,
	}
}

// ProductMappingDocFromDomain converts a domain entity to a MongoDB document.
func ProductMappingDocFromDomain(mapping *domain.ProductMapping) *ProductMappingDoc {
	return &ProductMappingDoc{
		ID:            mapping.ID,
		IntegrationID: mapping.IntegrationID,
		ExternalID:    mapping.ExternalID,
		PlatformID:    mapping.PlatformID,
		LastSyncedAt:  mapping.LastSyncedAt,
		LastKnownHash: mapping.LastKnownHash,
	}
}
