package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

// ProviderIDHeader is set on authenticated requests; any client supplied value is dropped.
const ProviderIDHeader = "X-Provider-Id"

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok
}

// ProviderIDFromContext returns the authenticated provider, or "".
func ProviderIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.ProviderID
	}
	return ""
}

// RequireProvider admits requests carrying a valid HS256 bearer token with the provider role.
func RequireProvider(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(ProviderIDHeader)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			claims, err := ParseAndVerifyHS256(token, secret)
			if err != nil || claims.ProviderID == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != RoleProvider {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			r.Header.Set(ProviderIDHeader, claims.ProviderID)
			ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
