//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"tribehub/domain"
)

type INotificationRepository interface {
	Save(notification domain.Notification) (string, error)
}

// NotificationRepository persists notification records and hands back their
// stable identifier. Delivery is aborted when this write fails; the queue
// and live paths are best-effort, this one is not.
type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

func (r NotificationRepository) Save(notification domain.Notification) (string, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	value, err := json.Marshal(notification)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	key := []byte(NotificationPrefix + notification.ID.String())
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value).WithTTL(QueueRetention))
	})
	if err != nil {
		return "", err
	}
	return notification.ID.String(), nil
}
