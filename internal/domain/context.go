package domain

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	tenantIDKey contextKey = "tenant_id"
	providerKey contextKey = "provider"
)

// WithTenantID returns a context carrying the tenant identifier.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantIDFromContext returns the tenant identifier, or "" if absent.
func GetTenantIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tenantIDKey).(string); ok {
		return v
	}
	return ""
}

// WithProvider returns a context carrying the POS provider identifier.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// GetProviderFromContext returns the provider identifier, or "" if absent.
func GetProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey).(string); ok {
		return v
	}
	return ""
}
