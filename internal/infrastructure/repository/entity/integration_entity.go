// Package entity holds the MongoDB document shapes and their conversions
// to and from domain types. Documents use camelCase keys; domain types
// never leak storage tags into the rest of the engine.
package entity

import (
	"time"

	"poslink-core/internal/domain"
)

// IntegrationDoc represents an integration in MongoDB.
type IntegrationDoc struct {
	ID             string    `bson:"_id"`
	TenantID       string    `bson:"tenantId"`
	Provider       string    `bson:"provider"`
	AccessToken    string    `bson:"accessToken"`
	RefreshToken   string    `bson:"refreshToken"`
	TokenExpiresAt time.Time `bson:"tokenExpiresAt"`
	MerchantID     string    `bson:"merchantId"`
	Active         bool      `bson:"active"`
	Environment    string    `bson:"environment"`
	CreatedAt      time.Time `bson:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity.
func (d *IntegrationDoc) ToDomain() *domain.Integration {
	return &domain.Integration{
		ID:             d.ID,
		TenantID:       d.TenantID,
		Provider:       d.Provider,
		AccessToken:    d.AccessToken,
		RefreshToken:   d.RefreshToken,
		TokenExpiresAt: d.TokenExpiresAt,
		MerchantID:     d.MerchantID,
		Active:         d.Active,
		Environment:    d.Environment,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// IntegrationDocFromDomain converts a domain entity to a MongoDB document.
func IntegrationDocFromDomain(integration *domain.Integration) *IntegrationDoc {
	return &IntegrationDoc{
		ID:             integration.ID,
		TenantID:       integration.TenantID,
		Provider:       integration.Provider,
		AccessToken:    integration.AccessToken,
		RefreshToken:   integration.RefreshToken,
		TokenExpiresAt: integration.TokenExpiresAt,
		MerchantID:     integration.MerchantID,
		Active:         integration.Active,
		Environment:    integration.Environment,
		CreatedAt:      integration.CreatedAt,
		UpdatedAt:      integration.UpdatedAt,
	}
}
