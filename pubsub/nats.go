package pubsub

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"tribehub/contract"
)

// NatsBus carries broadcasts between instances over a shared NATS server.
type NatsBus struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNatsBus(url string, log *slog.Logger) (*NatsBus, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NatsBus{conn: conn, log: log}, nil
}

func (b *NatsBus) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

func (b *NatsBus) Subscribe(subject string) (<-chan contract.BusMessage, func(), error) {
	ch := make(chan contract.BusMessage, 64)
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		select {
		case ch <- contract.BusMessage{Subject: msg.Subject, Data: msg.Data}:
		default:
			b.log.Debug("Bus message dropped, subscriber channel full", "subject", msg.Subject)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		_ = sub.Unsubscribe()
		close(ch)
	}
	return ch, cancel, nil
}

func (b *NatsBus) Close() {
	b.conn.Close()
}
