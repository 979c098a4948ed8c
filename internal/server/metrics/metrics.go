// Package metrics exposes Prometheus instrumentation for the command pipeline
// and its collaborators.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for command dispatch.
type Metrics struct {
	registry *prometheus.Registry

	// Command latency by command and outcome
	CommandLatency *prometheus.HistogramVec

	// Command outcomes by command and outcome
	CommandOutcome *prometheus.CounterVec

	// Push notifications that could not be delivered
	PushFailures prometheus.Counter
}

// New creates a Metrics instance on its own registry, including the process
// and Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CommandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contacttrace_command_duration_seconds",
			Help:    "Duration of command dispatch including validation and handling",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command", "outcome"}),

		CommandOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacttrace_commands_total",
			Help: "Total commands dispatched by command and outcome",
		}, []string{"command", "outcome"}),

		PushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "contacttrace_push_failures_total",
			Help: "Push notifications that failed to deliver",
		}),
	}
}

// ObserveCommand records one dispatched command.
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandLatency.WithLabelValues(command, outcome).Observe(elapsed.Seconds())
	m.CommandOutcome.WithLabelValues(command, outcome).Inc()
}

// IncrementPushFailures counts an undelivered push notification.
func (m *Metrics) IncrementPushFailures() {
	if m != nil {
		m.PushFailures.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
