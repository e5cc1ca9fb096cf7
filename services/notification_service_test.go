package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tribehub/domain"
	"tribehub/domain/event"
	"tribehub/errors"
	"tribehub/repositories"
	"tribehub/runtime"
)

type fakeRecords struct {
	saved []domain.Notification
	fail  bool
}

func (f *fakeRecords) Save(n domain.Notification) (string, error) {
	if f.fail {
		return "", fmt.Errorf("disk full")
	}
	f.saved = append(f.saved, n)
	return n.ID.String(), nil
}

type fakeQueue struct {
	appended []domain.Notification
	backlog  []domain.Notification
	fail     bool
}

func (f *fakeQueue) Append(n domain.Notification) error {
	if f.fail {
		return fmt.Errorf("disk full")
	}
	f.appended = append(f.appended, n)
	return nil
}

func (f *fakeQueue) Drain(string) ([]domain.Notification, error) {
	drained := f.backlog
	f.backlog = nil
	return drained, nil
}

type fakeStore struct {
	data map[string][]byte
}

func (f *fakeStore) Get(key string) ([]byte, error) {
	value, ok := f.data[key]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return value, nil
}

func (f *fakeStore) SetWithTTL(key string, value []byte, _ time.Duration) error {
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[key] = value
	return nil
}

func (f *fakeStore) Delete(string) error { return nil }

func (f *fakeStore) DeletePrefix(string) (int, error) { return 0, nil }

func (f *fakeStore) ScanPrefix(string) ([]repositories.KeyValuePair, error) { return nil, nil }

type captureSink struct {
	mu     sync.Mutex
	events []event.Outbound
}

func (s *captureSink) Consume(_ context.Context, e event.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

type fixture struct {
	service  *NotificationService
	records  *fakeRecords
	queue    *fakeQueue
	store    *fakeStore
	registry *runtime.Registry
}

func newFixture() fixture {
	records := &fakeRecords{}
	queue := &fakeQueue{}
	store := &fakeStore{}
	registry := runtime.NewRegistry()
	service := NewNotificationService(slog.Default(), records, queue, store, registry)
	return fixture{service: service, records: records, queue: queue, store: store, registry: registry}
}

func connect(f fixture, identity string) *captureSink {
	sink := &captureSink{}
	connID := uuid.NewString()
	f.registry.Attach(connID, sink)
	f.registry.Register(identity, connID)
	return sink
}

func TestDeliver_Persists_Pushes_Live_And_Queues(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sink := connect(f, "alice")

	err := f.service.Deliver(context.Background(), "alice", domain.Notification{
		Type:  "friend_request",
		Title: "Bob",
	})
	req.NoError(err)

	// Persisted with an assigned identity and timestamp
	req.Len(f.records.saved, 1)
	saved := f.records.saved[0]
	req.NotEqual(uuid.Nil, saved.ID)
	req.Equal("alice", saved.Recipient)
	req.False(saved.CreatedAt.IsZero())

	// Pushed live to the open connection
	req.Len(sink.events, 1)
	pushed, ok := sink.events[0].(event.Notification)
	req.True(ok)
	req.Equal(saved.ID, pushed.Notification.ID)

	// And queued regardless, for retrieval on a later device
	req.Len(f.queue.appended, 1)
}

func TestDeliver_Fans_Out_To_Every_Device(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	phone := connect(f, "alice")
	laptop := connect(f, "alice")

	req.NoError(f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"}))

	req.Len(phone.events, 1)
	req.Len(laptop.events, 1)
}

func TestDeliver_Offline_Recipient_Is_Queued_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	req.NoError(f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"}))

	req.Len(f.records.saved, 1)
	req.Len(f.queue.appended, 1)
}

func TestDeliver_Persistence_Failure_Aborts_Delivery(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.records.fail = true
	sink := connect(f, "alice")

	err := f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"})

	req.ErrorIs(err, errors.ErrPersistenceFailure)
	req.Empty(sink.events)
	req.Empty(f.queue.appended)
}

func TestDeliver_Queue_Failure_Does_Not_Fail_The_Call(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.queue.fail = true
	sink := connect(f, "alice")

	// Live delivery already happened; the backlog append is best-effort
	req.NoError(f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"}))
	req.Len(sink.events, 1)
}

func TestDeliver_Muted_Recipient_Is_Queued_Not_Pushed(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sink := connect(f, "alice")
	req.NoError(f.store.SetWithTTL(repositories.PreferencesKey("alice"), []byte(`{"muted":true}`), 0))

	req.NoError(f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"}))

	req.Empty(sink.events)
	req.Len(f.queue.appended, 1)
}

func TestDeliver_Unreadable_Preferences_Mean_Not_Muted(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	sink := connect(f, "alice")
	req.NoError(f.store.SetWithTTL(repositories.PreferencesKey("alice"), []byte(`not json`), 0))

	req.NoError(f.service.Deliver(context.Background(), "alice", domain.Notification{Type: "mention"}))

	req.Len(sink.events, 1)
}

func TestDrainQueued_Hands_The_Backlog_Through(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.queue.backlog = []domain.Notification{{Title: "while you were away"}}

	notifications, err := f.service.DrainQueued("alice")
	req.NoError(err)
	req.Len(notifications, 1)

	notifications, err = f.service.DrainQueued("alice")
	req.NoError(err)
	req.Empty(notifications)
}
