package event

import (
	"encoding/json"
	"time"

	"tribehub/domain"
)

// Outbound events pushed to connected clients.
type Outbound interface {
	OutboundName() string
}

type Welcome struct {
	UserID string        `json:"userId"`
	Room   domain.RoomID `json:"room"`
}

type WelcomeAnonymous struct {
	ConnectionID string `json:"connectionId"`
}

type UserOnline struct {
	UserID string `json:"userId"`
	Status string `json:"status,omitempty"`
}

type UserOffline struct {
	UserID string `json:"userId"`
}

type JoinedEvent struct {
	EventID string `json:"eventId"`
}

type LeftEvent struct {
	EventID string `json:"eventId"`
}

type UserJoinedEvent struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
}

type UserLeftEvent struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
}

type JoinedTribe struct {
	TribeID string `json:"tribeId"`
}

type LeftTribe struct {
	TribeID string `json:"tribeId"`
}

type UserJoinedTribe struct {
	TribeID string `json:"tribeId"`
	UserID  string `json:"userId"`
}

type UserLeftTribe struct {
	TribeID string `json:"tribeId"`
	UserID  string `json:"userId"`
}

type NewMessage struct {
	RoomID  string    `json:"roomId"`
	Message string    `json:"message"`
	Type    string    `json:"type,omitempty"`
	Sender  string    `json:"sender"`
	SentAt  time.Time `json:"sentAt"`
}

// MessageSent acknowledges the sender with the same payload plus a status
// field. It is a distinct send from the NewMessage broadcast.
type MessageSent struct {
	RoomID  string    `json:"roomId"`
	Message string    `json:"message"`
	Type    string    `json:"type,omitempty"`
	Status  string    `json:"status"`
	SentAt  time.Time `json:"sentAt"`
}

type UserTyping struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type UserStoppedTyping struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type Notification struct {
	Notification domain.Notification `json:"notification"`
}

type Error struct {
	Message string `json:"message"`
}

// Remote carries an event received from the shared bus. The payload stays
// opaque here; it is re-encoded verbatim for local connections.
type Remote struct {
	Name string
	Data json.RawMessage
}

func (r Remote) MarshalJSON() ([]byte, error) {
	// A peer frame without a payload must still encode as valid JSON.
	if len(r.Data) == 0 {
		return []byte("null"), nil
	}
	return r.Data, nil
}

func (Welcome) OutboundName() string           { return "welcome" }
func (WelcomeAnonymous) OutboundName() string  { return "welcome_anonymous" }
func (UserOnline) OutboundName() string        { return "user_online" }
func (UserOffline) OutboundName() string       { return "user_offline" }
func (JoinedEvent) OutboundName() string       { return "joined_event" }
func (LeftEvent) OutboundName() string         { return "left_event" }
func (UserJoinedEvent) OutboundName() string   { return "user_joined_event" }
func (UserLeftEvent) OutboundName() string     { return "user_left_event" }
func (JoinedTribe) OutboundName() string       { return "joined_tribe" }
func (LeftTribe) OutboundName() string         { return "left_tribe" }
func (UserJoinedTribe) OutboundName() string   { return "user_joined_tribe" }
func (UserLeftTribe) OutboundName() string     { return "user_left_tribe" }
func (NewMessage) OutboundName() string        { return "new_message" }
func (MessageSent) OutboundName() string       { return "message_sent" }
func (UserTyping) OutboundName() string        { return "user_typing" }
func (UserStoppedTyping) OutboundName() string { return "user_stopped_typing" }
func (Notification) OutboundName() string      { return "notification" }
func (Error) OutboundName() string             { return "error" }
func (r Remote) OutboundName() string          { return r.Name }
