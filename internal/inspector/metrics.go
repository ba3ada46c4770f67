package inspector

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/glit/internal/scenario"
)

const namespace = "glit"

// Metrics exposes render statistics in Prometheus format. Each Metrics owns
// its registry.
type Metrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	stepDuration prometheus.Histogram
	clients      prometheus.Gauge
}

// NewMetrics creates and registers the inspector metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of scenario steps rendered",
			},
			[]string{"scenario", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_errors_total",
				Help:      "Total number of engine errors by code",
			},
			[]string{"code"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of DOM mutations by type",
			},
			[]string{"type"},
		),
		stepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of one render step in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		clients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inspector_clients",
				Help:      "Current number of connected inspector clients",
			},
		),
	}

	registry.MustRegister(m.steps, m.failures, m.mutations, m.stepDuration, m.clients)
	return m
}

// Observe records one frame.
func (m *Metrics) Observe(f scenario.Frame) {
	outcome := "passed"
	if !f.Passed {
		outcome = "failed"
	}
	m.steps.WithLabelValues(f.Scenario, outcome).Inc()
	if f.Code != "" {
		m.failures.WithLabelValues(f.Code).Inc()
	}
	for _, mut := range f.Mutations {
		m.mutations.WithLabelValues(mut.Type).Inc()
	}
	m.stepDuration.Observe(f.Duration.Seconds())
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
