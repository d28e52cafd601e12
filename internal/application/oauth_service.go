package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// OAuthConfig tunes the credential lifecycle.
type OAuthConfig struct {
	// RefreshMargin is the safety window before expiry inside which a
	// token is refreshed rather than used.
	RefreshMargin time.Duration
}

// DefaultOAuthConfig refreshes tokens within five minutes of expiry.
func DefaultOAuthConfig() OAuthConfig {
	return OAuthConfig{RefreshMargin: 5 * time.Minute}
}

// OAuthService manages the authorization-code flow, token exchange,
// refresh, and revocation for external POS accounts. Tokens are encrypted
// before the repository sees them.
type OAuthService struct {
	adapters     ports.AdapterRegistry
	integrations ports.IntegrationRepository
	states       ports.OAuthStateStore
	encryption   ports.EncryptionService
	config       OAuthConfig
	logger       zerolog.Logger
}

// NewOAuthService creates an OAuth service.
func NewOAuthService(
	adapters ports.AdapterRegistry,
	integrations ports.IntegrationRepository,
	states ports.OAuthStateStore,
	encryption ports.EncryptionService,
	config OAuthConfig,
	logger zerolog.Logger,
) *OAuthService {
	if config.RefreshMargin <= 0 {
		config = DefaultOAuthConfig()
	}
	return &OAuthService{
		adapters:     adapters,
		integrations: integrations,
		states:       states,
		encryption:   encryption,
		config:       config,
		logger:       logger,
	}
}

// BuildAuthorizationURL generates a CSRF-resistant opaque state bound to
// the tenant and returns the provider authorization URL to redirect the
// user to. The state expires in the store if no callback arrives.
func (s *OAuthService) BuildAuthorizationURL(ctx context.Context, tenantID, provider, merchantID, returnURL string) (string, string, error) {
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return "", "", err
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	authState := &domain.AuthState{
		State:      state,
		TenantID:   tenantID,
		Provider:   provider,
		MerchantID: merchantID,
		ReturnURL:  returnURL,
		CreatedAt:  time.Now(),
	}
	if err := s.states.Save(ctx, authState); err != nil {
		return "", "", fmt.Errorf("failed to save auth state: %w", err)
	}

	url := adapter.AuthorizationURL(merchantID, state)
	s.logger.Info().
		Str("tenantID", tenantID).
		Str("provider", provider).
		Str("merchantID", merchantID).
		Msg("Built authorization URL")
	return url, state, nil
}

// HandleCallback completes the authorization-code flow: it consumes the
// state exactly once, exchanges the code for tokens, and persists a new
// active integration. Any previously active integration for the same
// (tenant, provider) pair is deactivated by the repository.
func (s *OAuthService) HandleCallback(ctx context.Context, state, code string) (*domain.Integration, error) {
	authState, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}

	adapter, err := s.adapters.Adapter(authState.Provider)
	if err != nil {
		return nil, err
	}

	tokens, err := adapter.ExchangeCode(ctx, authState.MerchantID, code)
	if err != nil {
		s.logger.Error().Err(err).
			Str("tenantID", authState.TenantID).
			Str("provider", authState.Provider).
			Msg("Failed to exchange authorization code")
		return nil, err
	}

	encryptedAccess, err := s.encryption.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encryptedRefresh := ""
	if tokens.RefreshToken != "" {
		encryptedRefresh, err = s.encryption.Encrypt(tokens.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	integration := &domain.Integration{
		ID:             uuid.NewString(),
		TenantID:       authState.TenantID,
		Provider:       authState.Provider,
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: tokens.ExpiresAt,
		MerchantID:     authState.MerchantID,
		Active:         true,
		Environment:    domain.EnvironmentProduction,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := s.integrations.Create(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	s.logger.Info().
		Str("tenantID", authState.TenantID).
		Str("provider", authState.Provider).
		Str("integrationID", integration.ID).
		Msg("Integration connected")
	return integration, nil
}

// EnsureFreshToken returns a usable decrypted token set, refreshing via the
// provider only when expiry falls inside the safety margin. A rejected
// refresh deactivates the integration so subsequent triggers fail fast
// instead of repeatedly attempting a doomed refresh.
func (s *OAuthService) EnsureFreshToken(ctx context.Context, integration *domain.Integration) (*domain.TokenSet, error) {
	if !integration.TokenExpiresWithin(s.config.RefreshMargin) {
		access, err := s.encryption.Decrypt(integration.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		return &domain.TokenSet{
			AccessToken: access,
			ExpiresAt:   integration.TokenExpiresAt,
		}, nil
	}

	if integration.RefreshToken == "" {
		s.logger.Warn().
			Str("integrationID", integration.ID).
			Msg("Token expiring with no refresh token, deactivating integration")
		if deactivateErr := s.integrations.Deactivate(ctx, integration.ID); deactivateErr != nil {
			s.logger.Error().Err(deactivateErr).
				Str("integrationID", integration.ID).
				Msg("Failed to deactivate integration without refresh token")
		}
		return nil, domain.ErrRefreshFailed
	}
	refresh, err := s.encryption.Decrypt(integration.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	adapter, err := s.adapters.Adapter(integration.Provider)
	if err != nil {
		return nil, err
	}

	tokens, err := adapter.RefreshToken(ctx, integration.MerchantID, refresh)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshFailed) {
			s.logger.Warn().
				Str("integrationID", integration.ID).
				Msg("Refresh token rejected, deactivating integration")
			if deactivateErr := s.integrations.Deactivate(ctx, integration.ID); deactivateErr != nil {
				s.logger.Error().Err(deactivateErr).
					Str("integrationID", integration.ID).
					Msg("Failed to deactivate integration after refresh rejection")
			}
		}
		return nil, err
	}

	encryptedAccess, err := s.encryption.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encryptedRefresh := integration.RefreshToken
	if tokens.RefreshToken != "" {
		encryptedRefresh, err = s.encryption.Encrypt(tokens.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	stored := domain.TokenSet{
		AccessToken:  encryptedAccess,
		RefreshToken: encryptedRefresh,
		ExpiresAt:    tokens.ExpiresAt,
	}
	if err := s.integrations.UpdateTokens(ctx, integration.ID, stored); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	integration.AccessToken = encryptedAccess
	integration.RefreshToken = encryptedRefresh
	integration.TokenExpiresAt = tokens.ExpiresAt

	s.logger.Info().
		Str("integrationID", integration.ID).
		Time("expiresAt", tokens.ExpiresAt).
		Msg("Access token refreshed")
	return tokens, nil
}

// Disconnect revokes the token at the provider (best effort) and
// deactivates the integration locally. Revocation failures are logged but
// never block deactivation.
func (s *OAuthService) Disconnect(ctx context.Context, integration *domain.Integration) error {
	adapter, err := s.adapters.Adapter(integration.Provider)
	if err == nil {
		if access, decErr := s.encryption.Decrypt(integration.AccessToken); decErr == nil {
			if revokeErr := adapter.RevokeToken(ctx, integration.MerchantID, access); revokeErr != nil {
				s.logger.Warn().Err(revokeErr).
					Str("integrationID", integration.ID).
					Msg("Provider token revocation failed, deactivating anyway")
			}
		}
	}

	if err := s.integrations.Deactivate(ctx, integration.ID); err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}

	s.logger.Info().
		Str("integrationID", integration.ID).
		Str("tenantID", integration.TenantID).
		Msg("Integration disconnected")
	return nil
}
