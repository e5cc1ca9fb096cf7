//go:generate go run go.uber.org/mock/mockgen -source=queue.go -destination=../mocks/mock_queue.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"tribehub/domain"
)

const (
	// QueueLimit caps each recipient's backlog to the most recent entries.
	QueueLimit = 50
	// QueueRetention is the store-enforced expiry of queued notifications.
	QueueRetention = 7 * 24 * time.Hour
)

type IQueueRepository interface {
	Append(notification domain.Notification) error
	Drain(identity string) ([]domain.Notification, error)
}

// QueueRepository holds the per-recipient offline backlog in BadgerDB.
// The key is formatted as "nq:{identity}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     notifications arrive at the same nanosecond.
type QueueRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewQueueRepository(db *badger.DB, log *slog.Logger) QueueRepository {
	return QueueRepository{db: db, log: log}
}

func queueKey(n domain.Notification) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		QueuePrefix,
		n.Recipient,
		n.CreatedAt.UnixNano(),
		n.ID,
	))
}

// Append stores the notification with the retention TTL, then trims the
// recipient's backlog to the most recent QueueLimit entries in the same
// transaction. Oldest entries go first: the padded timestamp sorts them to
// the front of the prefix scan.
func (q QueueRepository) Append(notification domain.Notification) error {
	value, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	prefix := []byte(QueuePrefix + notification.Recipient + ":")
	return q.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(queueKey(notification), value).WithTTL(QueueRetention)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}

		// Collect before deleting: badger iterators must be closed before
		// the same transaction mutates the keys they cover.
		var keys [][]byte
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for len(keys) > QueueLimit {
			if err := txn.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// Drain returns the recipient's backlog in chronological order and clears
// it atomically. This is a consuming read: a second call before new
// notifications arrive returns empty.
func (q QueueRepository) Drain(identity string) ([]domain.Notification, error) {
	var notifications []domain.Notification
	prefix := []byte(QueuePrefix + identity + ":")

	err := q.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var n domain.Notification
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &n)
			})
			if err != nil {
				it.Close()
				return err
			}
			notifications = append(notifications, n)
			keys = append(keys, item.KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}
