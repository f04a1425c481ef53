// Package metrics holds the prometheus collectors for reconciliation,
// booking and notification outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	mutations     *prometheus.CounterVec
	bookings      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_mutations_total",
		Help: "Availability mutations applied, by kind and outcome",
	}, []string{"kind", "outcome"})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Booking lifecycle transitions, by event and result",
	}, []string{"event", "result"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification deliveries, by event and result",
	}, []string{"event", "result"})

	registry.MustRegister(mutations, bookings, notifications,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		mutations:     mutations,
		bookings:      bookings,
		notifications: notifications,
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveMutation counts one reconciliation mutation by kind and outcome.
func (m *Metrics) ObserveMutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

// ObserveBooking counts one booking transition attempt.
func (m *Metrics) ObserveBooking(event, result string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(event, result).Inc()
}

// ObserveNotification counts one notification delivery.
func (m *Metrics) ObserveNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}
