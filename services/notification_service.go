//go:generate go run go.uber.org/mock/mockgen -source=notification_service.go -destination=../mocks/mock_notification_service.go -package=mocks
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tribehub/contract"
	"tribehub/domain"
	"tribehub/domain/event"
	"tribehub/errors"
	"tribehub/repositories"
)

type INotificationService interface {
	Deliver(ctx context.Context, recipient string, notification domain.Notification) error
	DrainQueued(recipient string) ([]domain.Notification, error)
}

// NotificationService persists every notification, pushes it live to each
// of the recipient's open connections, and always queues it for later
// retrieval. Durability never depends on the live path and a live push is
// never blocked by a slow durable store.
type NotificationService struct {
	log      *slog.Logger
	records  repositories.INotificationRepository
	queue    repositories.IQueueRepository
	store    repositories.IKeyValue
	registry contract.IRegistry
	now      func() time.Time
}

func NewNotificationService(log *slog.Logger, records repositories.INotificationRepository,
	queue repositories.IQueueRepository, store repositories.IKeyValue,
	registry contract.IRegistry) *NotificationService {
	return &NotificationService{
		log:      log,
		records:  records,
		queue:    queue,
		store:    store,
		registry: registry,
		now:      time.Now,
	}
}

// Deliver persists the notification, fans it out to every open connection
// of an online recipient, and appends it to the queued backlog regardless.
// Only the persistence step can fail the call; live-send and queue-append
// problems are logged, never surfaced to the triggering actor.
func (s *NotificationService) Deliver(ctx context.Context, recipient string, notification domain.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	notification.Recipient = recipient
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}

	if _, err := s.records.Save(notification); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, err)
	}

	if s.registry.IsOnline(recipient) && !s.muted(recipient) {
		evt := event.Notification{Notification: notification}
		for _, sink := range s.registry.SinksForIdentity(recipient) {
			if err := sink.Consume(ctx, evt); err != nil {
				s.log.Warn("Live notification push failed",
					"recipient", recipient,
					"notification_id", notification.ID,
					"error", err)
			}
		}
	}

	if err := s.queue.Append(notification); err != nil {
		s.log.Warn("Queue append failed",
			"recipient", recipient,
			"notification_id", notification.ID,
			"error", err)
	}
	return nil
}

// DrainQueued is the consuming read an offline recipient performs on
// reconnect: the backlog comes back once and is cleared atomically.
func (s *NotificationService) DrainQueued(recipient string) ([]domain.Notification, error) {
	return s.queue.Drain(recipient)
}

// muted checks the recipient's stored preferences; a muted recipient is
// still queued, never pushed live. Missing or unreadable preferences mean
// not muted.
func (s *NotificationService) muted(recipient string) bool {
	data, err := s.store.Get(repositories.PreferencesKey(recipient))
	if err != nil {
		return false
	}
	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return false
	}
	return prefs.Muted
}
