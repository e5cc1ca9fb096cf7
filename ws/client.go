package ws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"tribehub/domain"
	"tribehub/domain/event"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Client is one open channel: the websocket itself, the connection state,
// and a buffered outbound queue. It is the EventSink the registry holds
// for this connection.
type Client struct {
	conn       *websocket.Conn
	Connection *domain.Connection
	outbound   chan event.Outbound
	log        *slog.Logger
}

func NewClient(conn *websocket.Conn, connection *domain.Connection, bufferSize int, log *slog.Logger) *Client {
	return &Client{
		conn:       conn,
		Connection: connection,
		outbound:   make(chan event.Outbound, bufferSize),
		log:        log,
	}
}

// Consume is called by the router's fan-out. It must not block: a full
// buffer means this connection is slow, and dropping here keeps one slow
// recipient from stalling delivery to the rest.
func (c *Client) Consume(ctx context.Context, e event.Outbound) error {
	select {
	case c.outbound <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("outbound buffer full for connection %s", c.Connection.ID)
	}
}

// readPump processes inbound frames in receipt order until the channel
// closes. Abrupt network loss surfaces here as a read error and goes
// through the same teardown as a graceful close.
func (c *Client) readPump(ctx context.Context, handle func(raw []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Connection closed abruptly", "connection_id", c.Connection.ID, "error", err)
			}
			return
		}
		handle(raw)
	}
}

// writePump owns all writes to the socket: outbound events and liveness
// pings. One writer per connection keeps gorilla's single-writer rule.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.outbound:
			frame, err := event.EncodeOutbound(evt)
			if err != nil {
				c.log.Error("Failed to encode outbound event", "event", evt.OutboundName(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
