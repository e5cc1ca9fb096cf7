//go:generate go run go.uber.org/mock/mockgen -source=kv.go -destination=../mocks/mock_kv.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"tribehub/errors"
)

type IKeyValue interface {
	Get(key string) ([]byte, error)
	SetWithTTL(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	DeletePrefix(prefix string) (int, error)
	ScanPrefix(prefix string) ([]KeyValuePair, error)
}

type KeyValuePair struct {
	Key   string
	Value []byte
}

// KV wraps BadgerDB as the shared key/value store with store-enforced
// expiry. Expired entries disappear without any sweeping from this layer.
type KV struct {
	db  *badger.DB
	log *slog.Logger
}

func NewKV(db *badger.DB, log *slog.Logger) KV {
	return KV{db: db, log: log}
}

func (s KV) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return value, nil
}

// SetWithTTL writes the entry with an expiry. A zero ttl stores the entry
// without expiration.
func (s KV) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s KV) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// DeletePrefix removes every key under the prefix as one batch and returns
// how many entries were deleted. Deleting a prefix with no matches deletes
// nothing and is not an error.
func (s KV) DeletePrefix(prefix string) (int, error) {
	var deleted int
	err := s.db.Update(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)

		prefixBytes := []byte(prefix)
		var keys [][]byte
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return deleted, nil
}

// ScanPrefix returns all live entries under the prefix in key order.
func (s KV) ScanPrefix(prefix string) ([]KeyValuePair, error) {
	var pairs []KeyValuePair
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, KeyValuePair{Key: string(item.Key()), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return pairs, nil
}
