package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"tribehub/auth"
	"tribehub/cache"
	"tribehub/contract"
)

// Routes wires the HTTP surface: identity resolution first, then the cache
// middleware on reads and pattern invalidation on writes.
func Routes(r *mux.Router, c *cache.Cache, h *Handlers, verifier contract.ITokenVerifier) {
	r.Use(auth.HTTPMiddleware(verifier))

	// Reads, fingerprint-cached.
	r.Handle("/api/events/{id}",
		c.Middleware(cache.ModelKey("event", "id"), 0)(h.GetDocument("event"))).
		Methods(http.MethodGet)
	r.Handle("/api/tribes/{id}",
		c.Middleware(cache.ModelKey("tribe", "id"), 0)(h.GetDocument("tribe"))).
		Methods(http.MethodGet)
	r.Handle("/api/users/{userId}/feed",
		c.Middleware(cache.UserKey("feed"), 0)(http.HandlerFunc(h.GetFeed))).
		Methods(http.MethodGet)
	r.Handle("/api/search",
		c.Middleware(cache.SearchKey(), 0)(http.HandlerFunc(h.Search))).
		Methods(http.MethodGet)
	r.Handle("/api/events",
		c.Middleware(cache.PageKey(), 0)(h.ListDocuments("event"))).
		Methods(http.MethodGet)
	r.Handle("/api/tribes",
		c.Middleware(cache.PageKey(), 0)(h.ListDocuments("tribe"))).
		Methods(http.MethodGet)

	// Writes invalidate only after a success status.
	r.Handle("/api/events/{id}",
		c.Invalidate("event::id", "page:/api/events", "user::userId:feed")(h.PutDocument("event"))).
		Methods(http.MethodPut)
	r.Handle("/api/tribes/{id}",
		c.Invalidate("tribe::id", "page:/api/tribes", "user::userId:feed")(h.PutDocument("tribe"))).
		Methods(http.MethodPut)

	// Notification backlog.
	r.HandleFunc("/api/notifications/drain", h.DrainNotifications).Methods(http.MethodPost)
	r.HandleFunc("/api/notifications", h.Deliver).Methods(http.MethodPost)
}
