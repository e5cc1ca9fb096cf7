package workers

import (
	"context"
	"log/slog"

	"tribehub/contract"
)

// Deliverer is the piece of the router the fan-out worker needs.
type Deliverer interface {
	DeliverBusMessage(ctx context.Context, raw []byte)
}

// BusFanoutWorker subscribes to the shared broadcast subject and hands
// every frame to the router for local delivery. This is what lets peer
// instances deliver a room broadcast to their own connected members.
type BusFanoutWorker struct {
	log     *slog.Logger
	bus     contract.IBus
	subject string
	router  Deliverer
}

func NewBusFanoutWorker(log *slog.Logger, bus contract.IBus, subject string, router Deliverer) *BusFanoutWorker {
	return &BusFanoutWorker{log: log, bus: bus, subject: subject, router: router}
}

func (w *BusFanoutWorker) Run(ctx context.Context) error {
	messages, cancel, err := w.bus.Subscribe(w.subject)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping bus fan-out")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.router.DeliverBusMessage(ctx, msg.Data)
		}
	}
}
