// Package metrics exposes the engine's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can be built without a registry in tests.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"live-quiz-service/internal/domain"
)

const namespace = "quiz"

type Metrics struct {
	events           *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	rooms            prometheus.Gauge
	connections      prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events by type and outcome (applied or dropped).",
		}, []string{"event", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Outbound room broadcasts by event name.",
		}, []string{"event"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Per-connection delivery failures by reason.",
		}, []string{"reason"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently held in memory.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Registered connections.",
		}),
	}
	reg.MustRegister(m.events, m.broadcasts, m.deliveryFailures, m.rooms, m.connections)
	return m
}

func (m *Metrics) EventHandled(event string, err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "dropped"
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Broadcast(event string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(event).Inc()
}

func (m *Metrics) DeliveryFailed(err error) {
	if m == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrSlowConsumer):
		reason = "slow"
	case errors.Is(err, domain.ErrConnectionClosed):
		reason = "closed"
	}
	m.deliveryFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
