// Package api exposes the HTTP surface of the realtime layer: cached read
// routes over stored documents, write routes that invalidate, and the
// notification backlog endpoints. Full CRUD and validation live in the
// platform's document services, not here.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tribehub/auth"
	"tribehub/domain"
	"tribehub/errors"
	"tribehub/repositories"
	"tribehub/services"
)

type Handlers struct {
	log           *slog.Logger
	store         repositories.IKeyValue
	notifications services.INotificationService
}

func NewHandlers(log *slog.Logger, store repositories.IKeyValue,
	notifications services.INotificationService) *Handlers {
	return &Handlers{log: log, store: store, notifications: notifications}
}

func docKey(model, id string) string {
	return fmt.Sprintf("doc:%s:%s", model, id)
}

// GetDocument serves a stored document by model and path parameter.
func (h *Handlers) GetDocument(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		body, err := h.store.Get(docKey(model, id))
		if err == errors.ErrKeyNotFound {
			writeError(w, http.StatusNotFound, fmt.Sprintf("%s %s not found", model, id))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		writeRaw(w, http.StatusOK, body)
	}
}

// PutDocument stores a document body verbatim. The invalidation middleware
// wrapped around this handler clears the matching cache entries afterwards.
func (h *Handlers) PutDocument(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		body, err := io.ReadAll(r.Body)
		if err != nil || !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "body must be valid JSON")
			return
		}
		if err := h.store.SetWithTTL(docKey(model, id), body, 0); err != nil {
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": id})
	}
}

// ListDocuments serves a listing of stored documents for a model. The page
// and limit query parameters bound the slice; the cache keys per page.
func (h *Handlers) ListDocuments(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pairs, err := h.store.ScanPrefix(docKey(model, ""))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}

		page, limit := pagination(r)
		start := (page - 1) * limit
		if start > len(pairs) {
			start = len(pairs)
		}
		end := start + limit
		if end > len(pairs) {
			end = len(pairs)
		}

		items := make([]json.RawMessage, 0, end-start)
		for _, pair := range pairs[start:end] {
			items = append(items, json.RawMessage(pair.Value))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"page":  page,
			"total": len(pairs),
		})
	}
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// GetFeed serves the per-user feed document.
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	body, err := h.store.Get(docKey("feed", userID))
	if err == errors.ErrKeyNotFound {
		writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "items": []any{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeRaw(w, http.StatusOK, body)
}

// Search is a placeholder search over stored documents; real search belongs
// to the platform's query services. It exists so per-query cache keys are
// exercised end to end.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": []any{}})
}

// DrainNotifications returns the authenticated recipient's backlog and
// clears it. This is how an offline user catches up after reconnecting.
func (h *Handlers) DrainNotifications(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == "" {
		writeError(w, http.StatusUnauthorized, errors.ErrMustAuthenticate.Error())
		return
	}

	notifications, err := h.notifications.DrainQueued(identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to drain notifications")
		return
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

type deliverRequest struct {
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
}

// Deliver lets collaborator services push a notification through the
// delivery pipeline: persisted, pushed live when possible, always queued.
func (h *Handlers) Deliver(w http.ResponseWriter, r *http.Request) {
	var req deliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	err := h.notifications.Deliver(r.Context(), req.Recipient, domain.Notification{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Payload:   req.Payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("Notification delivery failed", "recipient", req.Recipient, "error", err)
		writeError(w, http.StatusInternalServerError, "delivery failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
