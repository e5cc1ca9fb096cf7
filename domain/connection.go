package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// RateLimitWindow and RateLimitMax bound inbound messages per connection.
	// The window resets on wall-clock comparison, not a rolling window, so a
	// burst straddling a boundary can reach up to twice the limit.
	RateLimitWindow = 60 * time.Second
	RateLimitMax    = 100
)

// Connection is one open channel instance. It lives from channel open to
// channel close; all room memberships for it are released on close.
type Connection struct {
	ID            string
	Identity      string // empty until authenticated
	Authenticated bool

	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func NewConnection() *Connection {
	return &Connection{ID: uuid.NewString()}
}

// AllowMessage counts one inbound message against the connection's window.
// It returns false when the message exceeds RateLimitMax before the reset
// time; once the reset time passes, the counter starts a fresh window.
func (c *Connection) AllowMessage(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.After(c.resetAt) {
		c.count = 0
		c.resetAt = now.Add(RateLimitWindow)
	}
	c.count++
	return c.count <= RateLimitMax
}
