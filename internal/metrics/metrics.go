// Package metrics exports connection manager activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/apsta/internal/wifi"
)

const namespace = "apsta"

var states = []wifi.State{wifi.StateIdle, wifi.StateConnecting, wifi.StateConnected, wifi.StateDisconnected}

// Compile-time interface guard.
var _ wifi.Observer = (*Collector)(nil)

// Collector turns manager events into metrics. It owns its registry so
// several managers can run in one process.
type Collector struct {
	registry *prometheus.Registry

	roleStarts      *prometheus.CounterVec
	disassociations *prometheus.CounterVec
	reconnects      prometheus.Counter
	outcomes        *prometheus.CounterVec
	connectResults  *prometheus.CounterVec
	connectDuration prometheus.Histogram
	peers           prometheus.Gauge
	state           *prometheus.GaugeVec
}

// New creates a collector with Go runtime and process metrics included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		roleStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "role_starts_total",
				Help:      "Radio roles started, by role.",
			},
			[]string{"role"},
		),
		disassociations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_disassociations_total",
				Help:      "Station disassociations, by reason and whether a reconnect was scheduled.",
			},
			[]string{"reason", "retrying"},
		),
		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_reconnects_total",
				Help:      "Automatic reconnect attempts issued.",
			},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_outcomes_total",
				Help:      "Terminal station outcomes signalled by the state machine.",
			},
			[]string{"outcome"},
		),
		connectResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_connects_total",
				Help:      "Blocking connect calls, by returned outcome and whether the wait timed out.",
			},
			[]string{"outcome", "timed_out"},
		),
		connectDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "station_connect_duration_seconds",
				Help:      "Time spent waiting in blocking connect calls.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
		),
		peers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "access_point_clients",
				Help:      "Clients currently associated with the access point.",
			},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "station_state",
				Help:      "Current station connection state (1 for the active state).",
			},
			[]string{"state"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.roleStarts,
		c.disassociations,
		c.reconnects,
		c.outcomes,
		c.connectResults,
		c.connectDuration,
		c.peers,
		c.state,
	)
	c.setState(wifi.StateIdle)
	return c
}

// Observe implements wifi.Observer.
func (c *Collector) Observe(e wifi.Event) {
	switch e.Kind {
	case wifi.EventRoleStarted:
		c.roleStarts.WithLabelValues(e.Role.String()).Inc()
	case wifi.EventRoleStopped:
		c.peers.Set(0)
	case wifi.EventStateChanged:
		c.setState(e.State)
	case wifi.EventDisassociated:
		c.disassociations.WithLabelValues(e.Reason.String(), strconv.FormatBool(e.Retrying)).Inc()
	case wifi.EventReconnecting:
		c.reconnects.Inc()
	case wifi.EventOutcome:
		c.outcomes.WithLabelValues(e.Outcome).Inc()
	case wifi.EventConnectResult:
		c.connectResults.WithLabelValues(e.Outcome, strconv.FormatBool(e.TimedOut)).Inc()
		c.connectDuration.Observe(float64(e.DurationMS) / 1000)
	case wifi.EventPeerJoined:
		c.peers.Inc()
	case wifi.EventPeerLeft:
		c.peers.Dec()
	}
}

func (c *Collector) setState(current wifi.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
