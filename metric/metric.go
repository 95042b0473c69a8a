// Package metric provides Prometheus metrics for the feed service.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service-level metrics
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	EventsPublished   prometheus.Counter
	ActiveSubscribers prometheus.Gauge
}

// New creates a Metrics instance backed by its own registry, with Go
// runtime and process collectors attached
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feed",
				Subsystem: "graphql",
				Name:      "operations_total",
				Help:      "Total number of GraphQL operations handled",
			},
			[]string{"operation", "status"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "feed",
				Subsystem: "graphql",
				Name:      "operation_duration_seconds",
				Help:      "GraphQL operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feed",
				Subsystem: "graphql",
				Name:      "errors_total",
				Help:      "Total number of errors by class",
			},
			[]string{"class"},
		),

		EventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "feed",
				Subsystem: "hub",
				Name:      "events_published_total",
				Help:      "Total number of new-post events announced to the hub",
			},
		),

		ActiveSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "feed",
				Subsystem: "hub",
				Name:      "active_subscribers",
				Help:      "Number of live subscription streams",
			},
		),
	}

	registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.ErrorsTotal,
		m.EventsPublished,
		m.ActiveSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns an HTTP handler exposing the registry in Prometheus
// text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordOperation records one handled operation with its outcome
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError records an error by classification
func (m *Metrics) RecordError(class string) {
	m.ErrorsTotal.WithLabelValues(class).Inc()
}

// RecordPublish records a hub announcement
func (m *Metrics) RecordPublish() {
	m.EventsPublished.Inc()
}

// SetActiveSubscribers updates the live subscriber gauge
func (m *Metrics) SetActiveSubscribers(n int) {
	m.ActiveSubscribers.Set(float64(n))
}
