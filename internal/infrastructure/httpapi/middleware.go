// Package httpapi exposes the sync engine over REST.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
)

// TenantMiddleware extracts the tenant from the X-Tenant-ID header and
// stores it on the request context. Public routes and the OAuth callback
// pass through untouched; the callback carries its tenant in the signed
// state instead of a header.
func TenantMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" ||
				path == "/metrics" ||
				path == "/pos/callback" ||
				path == "/swagger/doc.json" ||
				strings.HasPrefix(path, "/swagger/") {
				next.ServeHTTP(w, r)
				return
			}

			tenantID := r.Header.Get("X-Tenant-ID")
			if tenantID == "" {
				logger.Warn().
					Str("path", path).
					Msg("Request missing tenant header")
				http.Error(w, "X-Tenant-ID header is required", http.StatusUnauthorized)
				return
			}

			ctx := domain.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
