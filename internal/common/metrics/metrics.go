package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// CommandMetrics counts order commands by outcome.
type CommandMetrics struct {
	Commands  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// RealtimeMetrics tracks sessions and what happened to routed events.
type RealtimeMetrics struct {
	Sessions  prometheus.Gauge
	Delivered prometheus.Counter
	Dropped   *prometheus.CounterVec
	Bridged   *prometheus.CounterVec
}

type Metrics struct {
	Command  *CommandMetrics
	Realtime *RealtimeMetrics
	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry() so instances never collide.
func New(reg *prometheus.Registry) *Metrics {
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "commands_total",
		Help:      "Order commands by command and result.",
	}, []string{"command", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "command_duration_ms",
		Help:      "Order command latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"command"})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "sessions",
		Help:      "Connected realtime sessions.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_delivered_total",
		Help:      "Events queued to a session.",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "events_dropped_total",
		Help:      "Events that were not delivered, by reason.",
	}, []string{"reason"})
	bridged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "bridge_messages_total",
		Help:      "Envelopes sent to or received from the broker.",
	}, []string{"direction", "result"})

	reg.MustRegister(commands, latency, sessions, delivered, dropped, bridged)
	return &Metrics{
		Command:  &CommandMetrics{Commands: commands, LatencyMS: latency},
		Realtime: &RealtimeMetrics{Sessions: sessions, Delivered: delivered, Dropped: dropped, Bridged: bridged},
		gatherer: reg,
	}
}

// NewNop returns metrics on a private registry, for tests and tools.
func NewNop() *Metrics { return New(prometheus.NewRegistry()) }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
