// Package runtime hosts the per-instance realtime state: the connection
// registry, the event router, and the supervised workers around them.
// It orchestrates delivery without containing storage or transport logic.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tribehub/auth"
	"tribehub/contract"
	"tribehub/domain"
	"tribehub/domain/event"
	"tribehub/errors"
	"tribehub/repositories"
)

// SubjectBroadcast is the bus subject every instance publishes on and
// subscribes to for cross-instance fan-out.
const SubjectBroadcast = "rooms.broadcast"

// Envelope is the bus frame. An empty Room addresses every connection on
// the receiving instance (presence events); NodeID suppresses re-delivery
// on the instance that already delivered locally.
type Envelope struct {
	NodeID string          `json:"node_id"`
	Room   string          `json:"room,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Router dispatches decoded inbound events for one connection at a time,
// in receipt order. Failures local to a connection become an error reply
// on that same connection and never affect the others.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	bus       contract.IBus
	store     repositories.IKeyValue
	admission auth.IAdmission
	nodeID    string
	now       func() time.Time
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, bus contract.IBus,
	store repositories.IKeyValue, admission auth.IAdmission) *Router {
	return &Router{
		log:       log,
		registry:  registry,
		bus:       bus,
		store:     store,
		admission: admission,
		nodeID:    uuid.NewString(),
		now:       time.Now,
	}
}

func (r *Router) NodeID() string { return r.nodeID }

// HandleOpen wires an admitted connection into the registry, auto-joins
// the personal room for authenticated identities, and sends the welcome.
// The first connection of an identity triggers a presence broadcast.
func (r *Router) HandleOpen(ctx context.Context, conn *domain.Connection, sink contract.EventSink) {
	r.registry.Attach(conn.ID, sink)

	if !conn.Authenticated {
		r.send(ctx, sink, event.WelcomeAnonymous{ConnectionID: conn.ID})
		return
	}

	wasOnline := r.registry.IsOnline(conn.Identity)
	r.registry.Register(conn.Identity, conn.ID)

	personal := domain.IdentityRoom(conn.Identity)
	r.registry.JoinRoom(conn.Identity, personal)

	r.send(ctx, sink, event.Welcome{UserID: conn.Identity, Room: personal})

	if !wasOnline {
		r.broadcastAll(ctx, event.UserOnline{UserID: conn.Identity}, conn.ID)
	}
}

// HandleFrame processes one raw inbound frame: rate limit first, then
// decode and dispatch. Every rejection is answered with an explicit error
// event; nothing is silently dropped except anonymous typing indicators.
func (r *Router) HandleFrame(ctx context.Context, conn *domain.Connection, sink contract.EventSink, raw []byte) {
	if err := r.admission.AllowMessage(conn); err != nil {
		r.send(ctx, sink, event.Error{Message: err.Error()})
		return
	}

	in, err := event.DecodeInbound(raw)
	if err != nil {
		r.send(ctx, sink, event.Error{Message: err.Error()})
		return
	}
	r.Dispatch(ctx, conn, sink, in)
}

// Dispatch routes a decoded inbound event. Stateful operations require the
// authenticated state; typing indicators from anonymous connections are
// best-effort UX signals and drop without a reply.
func (r *Router) Dispatch(ctx context.Context, conn *domain.Connection, sink contract.EventSink, in event.Inbound) {
	switch in.(type) {
	case event.TypingStart, event.TypingStop:
		if !conn.Authenticated {
			return
		}
	default:
		if !conn.Authenticated {
			r.send(ctx, sink, event.Error{Message: errors.ErrMustAuthenticate.Error()})
			return
		}
	}

	switch e := in.(type) {
	case event.JoinEvent:
		room := domain.EventRoom(e.EventID)
		r.registry.JoinRoom(conn.Identity, room)
		r.send(ctx, sink, event.JoinedEvent{EventID: e.EventID})
		r.broadcastRoom(ctx, room, event.UserJoinedEvent{EventID: e.EventID, UserID: conn.Identity}, conn.ID)

	case event.LeaveEvent:
		room := domain.EventRoom(e.EventID)
		r.registry.LeaveRoom(conn.Identity, room)
		r.send(ctx, sink, event.LeftEvent{EventID: e.EventID})
		r.broadcastRoom(ctx, room, event.UserLeftEvent{EventID: e.EventID, UserID: conn.Identity}, conn.ID)

	case event.JoinTribe:
		room := domain.TribeRoom(e.TribeID)
		r.registry.JoinRoom(conn.Identity, room)
		r.send(ctx, sink, event.JoinedTribe{TribeID: e.TribeID})
		r.broadcastRoom(ctx, room, event.UserJoinedTribe{TribeID: e.TribeID, UserID: conn.Identity}, conn.ID)

	case event.LeaveTribe:
		room := domain.TribeRoom(e.TribeID)
		r.registry.LeaveRoom(conn.Identity, room)
		r.send(ctx, sink, event.LeftTribe{TribeID: e.TribeID})
		r.broadcastRoom(ctx, room, event.UserLeftTribe{TribeID: e.TribeID, UserID: conn.Identity}, conn.ID)

	case event.SendMessage:
		sentAt := r.now().UTC()
		r.broadcastRoom(ctx, domain.RoomID(e.RoomID), event.NewMessage{
			RoomID:  e.RoomID,
			Message: e.Message,
			Type:    e.Type,
			Sender:  conn.Identity,
			SentAt:  sentAt,
		}, conn.ID)
		// Distinct send: the ack is not the broadcast.
		r.send(ctx, sink, event.MessageSent{
			RoomID:  e.RoomID,
			Message: e.Message,
			Type:    e.Type,
			Status:  "sent",
			SentAt:  sentAt,
		})

	case event.TypingStart:
		r.broadcastRoom(ctx, domain.RoomID(e.RoomID),
			event.UserTyping{RoomID: e.RoomID, UserID: conn.Identity}, conn.ID)

	case event.TypingStop:
		r.broadcastRoom(ctx, domain.RoomID(e.RoomID),
			event.UserStoppedTyping{RoomID: e.RoomID, UserID: conn.Identity}, conn.ID)

	case event.UserActivity:
		r.persist(repositories.ActivityKey(conn.Identity), e, repositories.ActivityTTL)
		switch e.Activity {
		case "online", "away", "busy":
			r.broadcastAll(ctx, event.UserOnline{UserID: conn.Identity, Status: e.Activity}, conn.ID)
		}

	case event.LocationUpdate:
		r.persist(repositories.LocationKey(conn.Identity), e, repositories.LocationTTL)

	case event.NotificationPreferences:
		r.persist(repositories.PreferencesKey(conn.Identity), e.Preferences, repositories.PreferencesTTL)
	}
}

// HandleClose is the single teardown path for graceful and abrupt closes.
// Memberships go first, then the presence broadcast if the identity has no
// connection left anywhere on this instance.
func (r *Router) HandleClose(ctx context.Context, conn *domain.Connection) {
	r.registry.Detach(conn.ID)
	if !conn.Authenticated {
		return
	}

	offline := r.registry.Unregister(conn.Identity, conn.ID)
	r.registry.LeaveAllRooms(conn.Identity)

	if offline {
		r.broadcastAll(ctx, event.UserOffline{UserID: conn.Identity}, conn.ID)
	}
}

// DeliverBusMessage hands a bus frame to locally connected members. Frames
// published by this instance were already delivered locally and are skipped.
func (r *Router) DeliverBusMessage(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.log.Warn("Dropping malformed bus frame", "error", err)
		return
	}
	if env.NodeID == r.nodeID {
		return
	}

	remote := event.Remote{Name: env.Event, Data: env.Data}
	var sinks []contract.EventSink
	if env.Room == "" {
		sinks = r.registry.AllSinks("")
	} else {
		sinks = r.registry.SinksForRoom(domain.RoomID(env.Room), "")
	}
	for _, sink := range sinks {
		r.send(ctx, sink, remote)
	}
}

// broadcastRoom delivers to every locally connected member except one
// connection, then publishes on the bus for peer instances.
func (r *Router) broadcastRoom(ctx context.Context, room domain.RoomID, evt event.Outbound, exceptConnID string) {
	for _, sink := range r.registry.SinksForRoom(room, exceptConnID) {
		r.send(ctx, sink, evt)
	}
	r.publish(room, evt)
}

// broadcastAll delivers a presence-style event to every local connection,
// then publishes it with an empty room so peers do the same.
func (r *Router) broadcastAll(ctx context.Context, evt event.Outbound, exceptConnID string) {
	for _, sink := range r.registry.AllSinks(exceptConnID) {
		r.send(ctx, sink, evt)
	}
	r.publish("", evt)
}

func (r *Router) publish(room domain.RoomID, evt event.Outbound) {
	data, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("Failed to marshal event for bus", "event", evt.OutboundName(), "error", err)
		return
	}
	frame, err := json.Marshal(Envelope{
		NodeID: r.nodeID,
		Room:   string(room),
		Event:  evt.OutboundName(),
		Data:   data,
	})
	if err != nil {
		r.log.Error("Failed to marshal bus envelope", "error", err)
		return
	}
	if err := r.bus.Publish(SubjectBroadcast, frame); err != nil {
		// Best effort: local delivery already happened, peers catch up on
		// the next broadcast.
		r.log.Warn("Bus publish failed", "event", evt.OutboundName(), "error", err)
	}
}

// send pushes one event to one sink. Errors are isolated per recipient:
// a full or broken channel never affects delivery to the others.
func (r *Router) send(ctx context.Context, sink contract.EventSink, evt event.Outbound) {
	if err := sink.Consume(ctx, evt); err != nil {
		r.log.Debug(fmt.Sprintf("Delivery failed for %s event", evt.OutboundName()), "error", err)
	}
}

func (r *Router) persist(key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		r.log.Error("Failed to marshal record", "key", key, "error", err)
		return
	}
	if err := r.store.SetWithTTL(key, data, ttl); err != nil {
		// Store trouble degrades to no persistence, the connection stays up.
		r.log.Warn("Failed to persist record", "key", key, "error", err)
	}
}
