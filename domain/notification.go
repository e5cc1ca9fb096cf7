package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a message a recipient should receive, live when possible,
// queued otherwise. Message history is out of scope; only notifications are
// queued for offline recipients.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Preferences is the per-recipient delivery tuning persisted with a 24h TTL.
// A muted recipient is still queued, never pushed live.
type Preferences struct {
	Muted bool `json:"muted"`
}
