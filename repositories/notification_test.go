package repositories

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tribehub/domain"
)

func TestNotificationRepository_Save_Assigns_An_ID_And_Persists(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	repo := NewNotificationRepository(db, slog.Default())
	kv := NewKV(db, slog.Default())

	id, err := repo.Save(domain.Notification{
		Recipient: "alice",
		Type:      "event_invite",
		Title:     "You're invited",
	})
	req.NoError(err)
	req.NotEmpty(id)

	value, err := kv.Get(NotificationPrefix + id)
	req.NoError(err)

	var stored domain.Notification
	req.NoError(json.Unmarshal(value, &stored))
	req.Equal("alice", stored.Recipient)
	req.Equal(id, stored.ID.String())
}

func TestNotificationRepository_Save_Keeps_A_Provided_ID(t *testing.T) {
	req := require.New(t)
	repo := NewNotificationRepository(openDB(t), slog.Default())

	provided := uuid.New()
	id, err := repo.Save(domain.Notification{ID: provided, Recipient: "alice"})
	req.NoError(err)
	req.Equal(provided.String(), id)
}
