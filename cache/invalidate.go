package cache

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tribehub/auth"
	"tribehub/repositories"
)

// placeholders are substituted from the triggering write request, longest
// first so ":id" never clips a longer name.
var placeholders = []string{":eventId", ":tribeId", ":userId", ":id"}

// Invalidate wraps a write handler and, only after it responds with a
// success status, deletes every cached entry whose name matches one of the
// resolved patterns. A failed write invalidates nothing.
func (c *Cache) Invalidate(patterns ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := newRecorder(w)
			next.ServeHTTP(recorder, r)

			if recorder.status < 200 || recorder.status >= 300 {
				return
			}

			for _, pattern := range patterns {
				resolved := ResolvePattern(pattern, r)
				// Keys are "cache:<name>:<fingerprint>"; the trailing separator
				// pins the name segment so "event:42" never matches "event:421".
				deleted, err := c.store.DeletePrefix(repositories.CachePrefix + resolved + ":")
				if err != nil {
					c.log.Warn("Cache invalidation failed", "pattern", resolved, "error", err)
					continue
				}
				if deleted > 0 {
					c.log.Debug("Cache invalidated", "pattern", resolved, "deleted", deleted)
				}
			}
		})
	}
}

// ResolvePattern substitutes each placeholder with the corresponding value
// found on the request: a path parameter when routed, the authenticated
// identity for :userId otherwise. Placeholders without a value stay
// unsubstituted.
func ResolvePattern(pattern string, r *http.Request) string {
	vars := mux.Vars(r)
	identity := auth.IdentityFromContext(r.Context())

	for _, placeholder := range placeholders {
		name := strings.TrimPrefix(placeholder, ":")
		value := vars[name]
		if value == "" && name == "userId" {
			value = identity
		}
		if value == "" {
			continue
		}
		pattern = strings.ReplaceAll(pattern, placeholder, value)
	}
	return pattern
}
