// Package pubsub provides the shared bus used to fan room broadcasts out
// to peer instances. The in-memory bus serves tests and single-node runs;
// NATS backs multi-instance deployments.
package pubsub

import (
	"sync"

	"tribehub/contract"
)

// MemoryBus is a process-local bus implementing the same contract as NATS.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan contract.BusMessage
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]chan contract.BusMessage)}
}

func (m *MemoryBus) Publish(subject string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[subject] {
		msg := contract.BusMessage{Subject: subject, Data: append([]byte(nil), data...)}
		select {
		case ch <- msg:
		default:
			// Non-blocking send so one slow subscriber cannot stall publishers.
		}
	}
	return nil
}

func (m *MemoryBus) Subscribe(subject string) (<-chan contract.BusMessage, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[subject]; !ok {
		m.subs[subject] = make(map[int]chan contract.BusMessage)
	}
	id := m.nextID
	m.nextID++
	ch := make(chan contract.BusMessage, 64)
	m.subs[subject][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if bySubject, ok := m.subs[subject]; ok {
			if sub, exists := bySubject[id]; exists {
				delete(bySubject, id)
				close(sub)
			}
			if len(bySubject) == 0 {
				delete(m.subs, subject)
			}
		}
	}
	return ch, cancel, nil
}
