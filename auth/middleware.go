package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tribehub/contract"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// HTTPMiddleware resolves the optional Authorization header on plain HTTP
// routes and injects the identity into the request context. Anonymous
// requests pass through untouched; the cache layer keys on
// identity-or-anonymous.
func HTTPMiddleware(verifier contract.ITokenVerifier) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token != "" {
				if identity, err := verifier.Verify(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), UserIDKey, identity))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the authenticated user ID or an empty string.
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(UserIDKey).(string)
	return identity
}
