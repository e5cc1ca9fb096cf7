package runtime

import (
	"sync"

	"github.com/samber/lo"

	"tribehub/contract"
	"tribehub/domain"
)

type Set map[string]struct{}

// Registry tracks the connections open on this instance, the identities
// behind them, and room membership in both directions. An identity with at
// least one connection is online; removing the last one transitions it to
// offline. A room with zero members is deleted, never left dangling.
type Registry struct {
	mu            sync.RWMutex
	sinks         map[string]contract.EventSink // connection -> outbound side
	identityConns map[string]Set                // identity -> connection ids
	roomMembers   map[domain.RoomID]Set         // room -> member identities
	identityRooms map[string]Set                // identity -> joined rooms
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:         make(map[string]contract.EventSink),
		identityConns: make(map[string]Set),
		roomMembers:   make(map[domain.RoomID]Set),
		identityRooms: make(map[string]Set),
	}
}

// Attach records the outbound side of a connection. Anonymous connections
// are attached too: they receive public broadcasts without any membership.
func (r *Registry) Attach(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connectionID] = sink
}

func (r *Registry) Detach(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, connectionID)
}

// Register adds a connection to the identity's set. Idempotent: registering
// the same pair twice has the effect of registering it once.
func (r *Registry) Register(identity, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.identityConns[identity]; !ok {
		r.identityConns[identity] = make(Set)
	}
	r.identityConns[identity][connectionID] = struct{}{}
}

// Unregister removes the connection and reports whether the identity is now
// fully offline, in which case the caller must broadcast a presence change.
func (r *Registry) Unregister(identity, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.identityConns[identity]
	if !ok {
		return false
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(r.identityConns, identity)
		return true
	}
	return false
}

func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identityConns[identity]) > 0
}

// JoinRoom maintains room -> members and identity -> rooms in lock-step.
// Idempotent under retry.
func (r *Registry) JoinRoom(identity string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][identity] = struct{}{}

	if _, ok := r.identityRooms[identity]; !ok {
		r.identityRooms[identity] = make(Set)
	}
	r.identityRooms[identity][string(roomID)] = struct{}{}
}

// LeaveRoom removes the identity from both indices. Leaving a room the
// identity never joined is a no-op, not an error. The last member leaving
// deletes the room entry entirely.
func (r *Registry) LeaveRoom(identity string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveRoomLocked(identity, roomID)
}

func (r *Registry) leaveRoomLocked(identity string, roomID domain.RoomID) {
	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, identity)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	if rooms, ok := r.identityRooms[identity]; ok {
		delete(rooms, string(roomID))
		if len(rooms) == 0 {
			delete(r.identityRooms, identity)
		}
	}
}

// LeaveAllRooms releases every membership of the identity, used on
// disconnect. The inverse index makes this O(rooms-for-identity).
// It returns the rooms that were left.
func (r *Registry) LeaveAllRooms(identity string) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []domain.RoomID
	for room := range r.identityRooms[identity] {
		roomID := domain.RoomID(room)
		left = append(left, roomID)
		r.leaveRoomLocked(identity, roomID)
	}
	return left
}

// SinksForRoom resolves the room's member identities into the sinks of
// their locally open connections, excluding one connection (typically the
// sender's own channel).
func (r *Registry) SinksForRoom(roomID domain.RoomID, exceptConnectionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for identity := range members {
		for connID := range r.identityConns[identity] {
			if connID == exceptConnectionID {
				continue
			}
			if sink, exists := r.sinks[connID]; exists {
				sinks = append(sinks, sink)
			}
		}
	}
	return sinks
}

// SinksForIdentity returns the sinks of every open connection of one
// identity, for multi-device fan-out.
func (r *Registry) SinksForIdentity(identity string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for connID := range r.identityConns[identity] {
		if sink, exists := r.sinks[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// AllSinks returns every attached sink except one connection, used for
// presence broadcasts to the whole instance.
func (r *Registry) AllSinks(exceptConnectionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for connID, sink := range r.sinks {
		if connID == exceptConnectionID {
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

// Members returns the identities currently joined to the room.
func (r *Registry) Members(roomID domain.RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.roomMembers[roomID])
}

// RoomCount is exposed for tests and the health worker.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}

// HasRoom reports whether the room still exists in the index.
func (r *Registry) HasRoom(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roomMembers[roomID]
	return ok
}
