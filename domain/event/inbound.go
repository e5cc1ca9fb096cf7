package event

// Inbound application messages, one variant per wire event name. Payloads
// are decoded and validated once at the boundary; handlers never see an
// untyped blob.
type Inbound interface {
	InboundName() string
}

const (
	NameJoinEvent    = "join_event"
	NameLeaveEvent   = "leave_event"
	NameJoinTribe    = "join_tribe"
	NameLeaveTribe   = "leave_tribe"
	NameSendMessage  = "send_message"
	NameTypingStart  = "typing_start"
	NameTypingStop   = "typing_stop"
	NameUserActivity = "user_activity"
	NameLocation     = "location_update"
	NamePreferences  = "notification_preferences"
)

type JoinEvent struct {
	EventID string `json:"eventId" validate:"required"`
}

type LeaveEvent struct {
	EventID string `json:"eventId" validate:"required"`
}

type JoinTribe struct {
	TribeID string `json:"tribeId" validate:"required"`
}

type LeaveTribe struct {
	TribeID string `json:"tribeId" validate:"required"`
}

type SendMessage struct {
	RoomID  string `json:"roomId" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type"`
}

type TypingStart struct {
	RoomID string `json:"roomId" validate:"required"`
}

type TypingStop struct {
	RoomID string `json:"roomId" validate:"required"`
}

type UserActivity struct {
	Activity string         `json:"activity" validate:"required"`
	Details  map[string]any `json:"details"`
}

// LocationUpdate uses pointers so that a legitimate zero coordinate is not
// rejected by the required check.
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Accuracy  float64  `json:"accuracy"`
}

type NotificationPreferences struct {
	Preferences map[string]any `json:"preferences" validate:"required"`
}

func (JoinEvent) InboundName() string               { return NameJoinEvent }
func (LeaveEvent) InboundName() string              { return NameLeaveEvent }
func (JoinTribe) InboundName() string               { return NameJoinTribe }
func (LeaveTribe) InboundName() string              { return NameLeaveTribe }
func (SendMessage) InboundName() string             { return NameSendMessage }
func (TypingStart) InboundName() string             { return NameTypingStart }
func (TypingStop) InboundName() string              { return NameTypingStop }
func (UserActivity) InboundName() string            { return NameUserActivity }
func (LocationUpdate) InboundName() string          { return NameLocation }
func (NotificationPreferences) InboundName() string { return NamePreferences }
