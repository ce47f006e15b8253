package queue

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// EventHandler receives the raw payload of one validation event.
type EventHandler func(data []byte)

// Listener subscribes to validation events so the API can fan them out to
// connected WebSocket observers.
type Listener struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

func NewListener(natsURL string) (*Listener, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Listener{nc: nc}, nil
}

// Listen invokes handler for each validation event until Close.
func (l *Listener) Listen(handler EventHandler) error {
	sub, err := l.nc.Subscribe(ValidationSubject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ValidationSubject, err)
	}
	l.sub = sub
	return nil
}

func (l *Listener) Close() {
	if l.sub != nil {
		_ = l.sub.Unsubscribe()
	}
	l.nc.Close()
}
