package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/keygate/keygate/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated admin.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// RequireAdmin guards admin routes with a Bearer JWT. When no signing secret
// is configured every admin request is refused with 503, so admin routes are
// never open by accident.
func RequireAdmin(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authSvc.Enabled() {
				writeJSONError(w, http.StatusServiceUnavailable,
					"Admin API disabled: set auth.jwt_secret to enable it")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}

			p, err := authSvc.ValidateJWT(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal returns the admin attached by RequireAdmin, or nil.
func GetPrincipal(ctx context.Context) *service.AdminPrincipal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*service.AdminPrincipal); ok {
		return p
	}
	return nil
}

// writeJSONError writes the standard error envelope. The handler package owns
// the shared helpers, so this small copy avoids an import cycle.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": message,
		},
	})
}
