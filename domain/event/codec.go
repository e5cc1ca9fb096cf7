// Package event defines the closed set of wire events exchanged over a
// realtime channel. Envelopes are decoded exactly once, at the boundary.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"tribehub/errors"
)

var validate = validator.New()

// Envelope is the wire framing: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses a raw frame into its typed variant and checks
// required fields. A missing field or unknown event name is a validation
// error for the caller to answer with an explicit error reply.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	var in Inbound
	switch env.Event {
	case NameJoinEvent:
		in = &JoinEvent{}
	case NameLeaveEvent:
		in = &LeaveEvent{}
	case NameJoinTribe:
		in = &JoinTribe{}
	case NameLeaveTribe:
		in = &LeaveTribe{}
	case NameSendMessage:
		in = &SendMessage{}
	case NameTypingStart:
		in = &TypingStart{}
	case NameTypingStop:
		in = &TypingStop{}
	case NameUserActivity:
		in = &UserActivity{}
	case NameLocation:
		in = &LocationUpdate{}
	case NamePreferences:
		in = &NotificationPreferences{}
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, in); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Event, err)
	}
	return deref(in), nil
}

// EncodeOutbound wraps an outbound event in the wire envelope.
func EncodeOutbound(out Outbound) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: out.OutboundName(), Data: data})
}

// deref returns the value form so handlers can switch on concrete types.
func deref(in Inbound) Inbound {
	switch v := in.(type) {
	case *JoinEvent:
		return *v
	case *LeaveEvent:
		return *v
	case *JoinTribe:
		return *v
	case *LeaveTribe:
		return *v
	case *SendMessage:
		return *v
	case *TypingStart:
		return *v
	case *TypingStop:
		return *v
	case *UserActivity:
		return *v
	case *LocationUpdate:
		return *v
	case *NotificationPreferences:
		return *v
	default:
		return in
	}
}
