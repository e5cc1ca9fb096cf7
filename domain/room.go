// Package domain contains core concepts of the realtime layer.
// This file defines Room identifiers and their namespaces.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"strings"
)

// RoomID is a namespaced broadcast group name, e.g. "event:42" or "tribe:7".
type RoomID string

const (
	RoomKindIdentity = "identity"
	RoomKindEvent    = "event"
	RoomKindTribe    = "tribe"
)

func IdentityRoom(userID string) RoomID {
	return RoomID(fmt.Sprintf("%s:%s", RoomKindIdentity, userID))
}

func EventRoom(eventID string) RoomID {
	return RoomID(fmt.Sprintf("%s:%s", RoomKindEvent, eventID))
}

func TribeRoom(tribeID string) RoomID {
	return RoomID(fmt.Sprintf("%s:%s", RoomKindTribe, tribeID))
}

// Kind returns the namespace of the room, or an empty string for
// generic public groups without a namespace prefix.
func (r RoomID) Kind() string {
	kind, _, found := strings.Cut(string(r), ":")
	if !found {
		return ""
	}
	return kind
}
