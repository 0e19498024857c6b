package app

import (
	"log/slog"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

//go:generate go run go.uber.org/mock/mockgen -source=dispatcher.go -destination=mocks/sink_mock.go -package=mocks

// Envelope is one outbound named event.
type Envelope struct {
	Event   string
	ID      string // set on acknowledgments
	Payload any
}

// Sink is the outbound side of one connection. Send must enqueue and return without waiting on
// the network; it reports domain.ErrConnectionClosed or domain.ErrSlowConsumer when it cannot.
type Sink interface {
	Send(env Envelope) error
}

// Dispatcher fans events out to connections through the registry's sinks.
type Dispatcher struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(registry *Registry, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, log: log, metrics: m}
}

// Broadcast delivers to every member of the snapshot and returns how many sinks accepted it.
// Callers hold the room lock so that a room's events are enqueued in mutation order.
func (d *Dispatcher) Broadcast(roomID string, members []domain.Member, event string, payload any) int {
	d.metrics.Broadcast(event)
	env := Envelope{Event: event, Payload: payload}
	delivered := 0
	for _, m := range members {
		if err := d.deliver(m.ConnectionID, env); err != nil {
			d.log.Warn("delivery failed",
				"room", roomID, "event", event, "conn", m.ConnectionID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Send delivers a single event to one connection.
func (d *Dispatcher) Send(connID, event, id string, payload any) error {
	err := d.deliver(connID, Envelope{Event: event, ID: id, Payload: payload})
	if err != nil {
		d.log.Warn("delivery failed", "event", event, "conn", connID, "error", err)
	}
	return err
}

func (d *Dispatcher) deliver(connID string, env Envelope) error {
	sink, ok := d.registry.Sink(connID)
	if !ok {
		d.metrics.DeliveryFailed(domain.ErrConnectionClosed)
		return domain.ErrConnectionClosed
	}
	if err := sink.Send(env); err != nil {
		d.metrics.DeliveryFailed(err)
		return err
	}
	return nil
}
