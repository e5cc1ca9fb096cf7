package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tribehub/pubsub"
)

type recordingDeliverer struct {
	mu     sync.Mutex
	frames [][]byte
}

func (d *recordingDeliverer) DeliverBusMessage(_ context.Context, raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, raw)
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func TestBusFanout_Forwards_Every_Frame_To_The_Deliverer(t *testing.T) {
	req := require.New(t)
	bus := pubsub.NewMemoryBus()
	deliverer := &recordingDeliverer{}
	worker := NewBusFanoutWorker(slog.Default(), bus, "rooms.broadcast", deliverer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	// Give the subscription a moment to land before publishing
	req.Eventually(func() bool {
		return bus.Publish("rooms.broadcast", []byte(`{"event":"user_online"}`)) == nil &&
			deliverer.count() > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		req.Fail("worker should stop once the context is cancelled")
	}

	req.GreaterOrEqual(deliverer.count(), 1)
	req.JSONEq(`{"event":"user_online"}`, string(deliverer.frames[0]))
}

func TestBusFanout_Ignores_Other_Subjects(t *testing.T) {
	req := require.New(t)
	bus := pubsub.NewMemoryBus()
	deliverer := &recordingDeliverer{}
	worker := NewBusFanoutWorker(slog.Default(), bus, "rooms.broadcast", deliverer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	req.NoError(bus.Publish("other.subject", []byte(`{}`)))
	time.Sleep(50 * time.Millisecond)

	req.Zero(deliverer.count())
}
