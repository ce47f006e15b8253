// Package queue carries the "pending set changed" announcement over NATS.
// Core pub/sub, deliberately not JetStream: delivery is best-effort with no
// replay, so an observer that connects after an event never sees it.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/your-org/attend/internal/models"
)

// ValidationSubject is published on every pending-set mutation.
const ValidationSubject = "attend.validation.updated"

// Notifier publishes validation events. Publishing only enqueues the
// message on the client; it never blocks on subscribers, so a slow or
// absent observer cannot stall the mutation that triggered the event.
type Notifier struct {
	nc *nats.Conn
}

func NewNotifier(natsURL string) (*Notifier, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Notifier{nc: nc}, nil
}

// PendingChanged announces that the pending set was mutated. Call it only
// after the mutation is durably committed. Absence of subscribers is not
// an error.
func (n *Notifier) PendingChanged() error {
	payload, err := json.Marshal(models.ValidationEvent{Message: "Validation data updated!"})
	if err != nil {
		return fmt.Errorf("marshal validation event: %w", err)
	}
	if err := n.nc.Publish(ValidationSubject, payload); err != nil {
		return fmt.Errorf("publish validation event: %w", err)
	}
	return nil
}

func (n *Notifier) Ping() error {
	if !n.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (n *Notifier) Close() {
	n.nc.Close()
}
