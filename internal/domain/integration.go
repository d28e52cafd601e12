package domain

import "time"

// Environment identifies which provider environment an integration talks to.
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// Integration represents the persisted OAuth connection between one tenant
// and one external POS account. At most one active integration exists per
// (tenant, provider) pair; disconnects deactivate rather than delete so the
// sync history stays attached to something.
type Integration struct {
	ID             string    `json:"id" bson:"_id"`
	TenantID       string    `json:"tenant_id" bson:"tenant_id"`
	Provider       string    `json:"provider" bson:"provider"`
	AccessToken    string    `json:"-" bson:"access_token"`  // encrypted at rest
	RefreshToken   string    `json:"-" bson:"refresh_token"` // encrypted at rest
	TokenExpiresAt time.Time `json:"token_expires_at" bson:"token_expires_at"`
	MerchantID     string    `json:"merchant_id" bson:"merchant_id"`
	Active         bool      `json:"active" bson:"active"`
	Environment    string    `json:"environment" bson:"environment"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// TokenExpiresWithin reports whether the access token expires inside the
// given safety margin. A zero expiry means the provider issued a
// non-expiring token.
func (i *Integration) TokenExpiresWithin(margin time.Duration) bool {
	if i.TokenExpiresAt.IsZero() {
		return false
	}
	return time.Until(i.TokenExpiresAt) < margin
}

// TokenSet is the credential triple returned by a provider's token endpoint.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ProviderConfig carries the per-(tenant, provider) OAuth client settings.
// It is passed explicitly into each OAuth service instance so tests can
// inject fakes without touching process-wide state.
type ProviderConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Environment  string
}

// AuthState is the pending OAuth authorization state, created when an
// authorization URL is built and consumed exactly once by the callback.
// States that are never consumed expire in the state store.
type AuthState struct {
	State      string    `json:"state"`
	TenantID   string    `json:"tenant_id"`
	Provider   string    `json:"provider"`
	MerchantID string    `json:"merchant_id"`
	ReturnURL  string    `json:"return_url"`
	CreatedAt  time.Time `json:"created_at"`
}
