// Package metrics exposes per-daemon Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one daemon.
type Metrics struct {
	registry *prometheus.Registry

	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	external *prometheus.CounterVec

	startTime time.Time
}

// New creates a registry for daemon with the tool call collectors and the
// Go runtime collectors registered.
func New(daemon string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"daemon": daemon}

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mcpd",
			Name:        "tool_calls_total",
			Help:        "Tool calls by tool and outcome.",
			ConstLabels: labels,
		}, []string{"tool", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "mcpd",
			Name:        "tool_call_duration_seconds",
			Help:        "Tool call latency.",
			ConstLabels: labels,
			Buckets:     []float64{.005, .025, .1, .5, 1, 5, 30, 120, 300},
		}, []string{"tool"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mcpd",
			Name:        "dispatcher_in_flight",
			Help:        "Tool calls currently executing.",
			ConstLabels: labels,
		}),
		external: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mcpd",
			Name:        "external_operations_total",
			Help:        "Calls made to the external system by operation and result.",
			ConstLabels: labels,
		}, []string{"operation", "result"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "mcpd",
		Name:        "uptime_seconds",
		Help:        "Time since the daemon started.",
		ConstLabels: labels,
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CallStarted marks a call as in flight.
func (m *Metrics) CallStarted() {
	m.inFlight.Inc()
}

// CallEnded clears a call that CallStarted marked.
func (m *Metrics) CallEnded() {
	m.inFlight.Dec()
}

// ObserveCall records a call outcome.
func (m *Metrics) ObserveCall(tool, outcome string, d time.Duration) {
	m.calls.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordExternal counts one call to the external system. A nil Metrics
// records nothing.
func (m *Metrics) RecordExternal(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.external.WithLabelValues(operation, result).Inc()
}
