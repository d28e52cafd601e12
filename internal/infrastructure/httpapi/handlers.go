package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"poslink-core/internal/application"
	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// Handlers holds the REST handler dependencies.
type Handlers struct {
	oauth        *application.OAuthService
	orchestrator *application.SyncOrchestrator
	integrations ports.IntegrationRepository
	logs         ports.SyncLogRepository
	logger       zerolog.Logger
}

// NewHandlers creates the REST handlers.
func NewHandlers(
	oauth *application.OAuthService,
	orchestrator *application.SyncOrchestrator,
	integrations ports.IntegrationRepository,
	logs ports.SyncLogRepository,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		oauth:        oauth,
		orchestrator: orchestrator,
		integrations: integrations,
		logs:         logs,
		logger:       logger,
	}
}

// Connect initiates the OAuth flow for a provider.
// POST /pos/{provider}/connect
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	tenantID := domain.GetTenantIDFromContext(ctx)

	var body struct {
		MerchantID string `json:"merchant_id"`
		ReturnURL  string `json:"return_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.MerchantID == "" {
		http.Error(w, "merchant_id is required", http.StatusBadRequest)
		return
	}

	authURL, state, err := h.oauth.BuildAuthorizationURL(ctx, tenantID, provider, body.MerchantID, body.ReturnURL)
	if err != nil {
		h.logger.Error().Err(err).Str("provider", provider).Msg("Failed to build authorization URL")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": authURL,
		"state":             state,
	})
}

// Callback completes the OAuth flow.
// GET /pos/callback?state=...&code=...
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "state and code parameters are required", http.StatusBadRequest)
		return
	}

	integration, err := h.oauth.HandleCallback(ctx, state, code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAuthorizationExpired):
			http.Error(w, "authorization expired, restart the connect flow", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrInvalidGrant):
			http.Error(w, "authorization code expired or already used", http.StatusUnauthorized)
		default:
			h.logger.Error().Err(err).Msg("OAuth callback failed")
			http.Error(w, "failed to complete authorization", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"integration_id": integration.ID,
		"provider":       integration.Provider,
		"merchant_id":    integration.MerchantID,
	})
}

// Disconnect revokes and deactivates the active integration.
// POST /pos/{provider}/disconnect
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	tenantID := domain.GetTenantIDFromContext(ctx)

	integration, err := h.integrations.GetActiveByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get integration")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if integration == nil {
		http.Error(w, "no active integration for provider", http.StatusNotFound)
		return
	}

	if err := h.oauth.Disconnect(ctx, integration); err != nil {
		h.logger.Error().Err(err).Msg("Failed to disconnect integration")
		http.Error(w, "failed to disconnect", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// TriggerSync queues a sync run and returns its log immediately.
// POST /pos/{provider}/sync
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	tenantID := domain.GetTenantIDFromContext(ctx)

	body := struct {
		Direction string `json:"direction"`
		Scope     string `json:"scope"`
		DryRun    bool   `json:"dry_run"`
	}{
		Direction: domain.DirectionBidirectional,
		Scope:     domain.ScopeFull,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	log, err := h.orchestrator.Start(ctx, tenantID, provider, body.Direction, body.Scope, body.DryRun)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrationNotFound) {
			http.Error(w, "no active integration for provider", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("provider", provider).Msg("Failed to start sync run")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, log)
}

// GetSyncLog returns one sync log with its item results.
// GET /sync/logs/{id}
func (h *Handlers) GetSyncLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	tenantID := domain.GetTenantIDFromContext(ctx)

	log, err := h.logs.GetByID(ctx, id)
	if err != nil {
		h.logger.Error().Err(err).Str("syncLogID", id).Msg("Failed to get sync log")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if log == nil || log.TenantID != tenantID {
		http.Error(w, "sync log not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, log)
}

// ListSyncLogs returns one page of the tenant's sync history, newest first.
// GET /sync/logs?page=1&per_page=20
func (h *Handlers) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := domain.GetTenantIDFromContext(ctx)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	logs, total, err := h.logs.ListByTenant(ctx, tenantID, page, perPage)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sync logs")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
