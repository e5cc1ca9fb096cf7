package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomID_Constructors_Namespace_The_Identifier(t *testing.T) {
	req := require.New(t)

	req.Equal(RoomID("event:42"), EventRoom("42"))
	req.Equal(RoomID("tribe:7"), TribeRoom("7"))
	req.Equal(RoomID("identity:alice"), IdentityRoom("alice"))
}

func TestRoomID_Kind(t *testing.T) {
	req := require.New(t)

	req.Equal(RoomKindEvent, EventRoom("42").Kind())
	req.Equal(RoomKindTribe, TribeRoom("7").Kind())
	req.Equal(RoomKindIdentity, IdentityRoom("alice").Kind())
	req.Empty(RoomID("lobby").Kind())
}
