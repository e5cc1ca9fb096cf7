// Package cache fronts read endpoints with a fingerprint-keyed, TTL-bounded
// response cache and gives write endpoints pattern-based bulk invalidation.
// It never changes the response shape; on store trouble it degrades to
// pass-through.
package cache

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"tribehub/repositories"
)

const (
	DefaultTTL = 300 * time.Second
	MaxTTL     = 86400 * time.Second
)

type Cache struct {
	store repositories.IKeyValue
	log   *slog.Logger
}

func New(store repositories.IKeyValue, log *slog.Logger) *Cache {
	return &Cache{store: store, log: log}
}

// responseRecorder buffers the handler's output so the middleware can
// inspect status and body before deciding to cache.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

// Middleware serves idempotent reads from the cache when an unexpired
// entry exists, and stores successful structured responses otherwise.
// A caller asking for more than MaxTTL gets clamped, zero gets DefaultTTL.
func (c *Cache) Middleware(name KeyFunc, ttl time.Duration) mux.MiddlewareFunc {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("%s%s:%s", repositories.CachePrefix, name(r), Fingerprint(r))

			if body, err := c.store.Get(key); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			recorder := newRecorder(w)
			next.ServeHTTP(recorder, r)

			// Only successful structured responses are cached; opaque bodies
			// and failures pass through untouched.
			if recorder.status != http.StatusOK {
				return
			}
			if !strings.Contains(recorder.Header().Get("Content-Type"), "application/json") {
				return
			}
			if err := c.store.SetWithTTL(key, recorder.body.Bytes(), ttl); err != nil {
				c.log.Warn("Cache store failed, serving uncached", "key", key, "error", err)
			}
		})
	}
}
