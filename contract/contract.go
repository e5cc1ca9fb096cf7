//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"tribehub/domain"
	"tribehub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one open channel's outbound side. Consume must never block
// the caller: a slow connection drops instead of stalling the fan-out.
type EventSink interface {
	Consume(ctx context.Context, e event.Outbound) error
}

// IRegistry tracks open connections, identity presence, and room membership
// local to this instance. It is a cache of "which of my connections care
// about this room", not the source of truth across the fleet.
type IRegistry interface {
	Attach(connectionID string, sink EventSink)
	Detach(connectionID string)
	Register(identity, connectionID string)
	Unregister(identity, connectionID string) (offline bool)
	JoinRoom(identity string, roomID domain.RoomID)
	LeaveRoom(identity string, roomID domain.RoomID)
	LeaveAllRooms(identity string) []domain.RoomID
	IsOnline(identity string) bool
	SinksForRoom(roomID domain.RoomID, exceptConnectionID string) []EventSink
	SinksForIdentity(identity string) []EventSink
	AllSinks(exceptConnectionID string) []EventSink
}

// IBus is the shared broker used to fan broadcasts out to peer instances.
type IBus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string) (<-chan BusMessage, func(), error)
}

type BusMessage struct {
	Subject string
	Data    []byte
}

// ITokenVerifier resolves an opaque bearer credential into an identity.
// Issuance belongs to the auth service, not to this layer.
type ITokenVerifier interface {
	Verify(token string) (identity string, err error)
}
