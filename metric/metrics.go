// Package metric provides prometheus metrics for discovery sessions and the
// broker connection, plus the HTTP server that exposes them.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all homestream metrics.
type Metrics struct {
	// Discovery metrics
	ComponentsDiscovered *prometheus.CounterVec
	ConfigsRejected      prometheus.Counter
	MessagesIgnored      prometheus.Counter
	SessionsActive       prometheus.Gauge
	SessionsCompleted    *prometheus.CounterVec
	SessionDuration      prometheus.Histogram

	// Broker connection metrics
	BrokerConnected  prometheus.Gauge
	BrokerReconnects prometheus.Counter
}

// Session completion outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeStopped = "stopped"
	OutcomeError   = "error"
)

// NewMetrics creates a new Metrics instance with all collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentsDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "components_discovered_total",
				Help:      "Total number of components reported to observers",
			},
			[]string{"kind"},
		),

		ConfigsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "configs_rejected_total",
				Help:      "Total number of configuration messages rejected as invalid",
			},
		),

		MessagesIgnored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "messages_ignored_total",
				Help:      "Total number of delivered messages that were not configuration announcements",
			},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "sessions_active",
				Help:      "Number of discovery sessions currently running",
			},
		),

		SessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "sessions_completed_total",
				Help:      "Total number of completed discovery sessions by outcome (ok, stopped, error)",
			},
			[]string{"outcome"},
		),

		SessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "homestream",
				Subsystem: "discovery",
				Name:      "session_duration_seconds",
				Help:      "Discovery session duration from start to completion",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "homestream",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),

		BrokerReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "homestream",
				Subsystem: "broker",
				Name:      "reconnects_total",
				Help:      "Total number of broker reconnections",
			},
		),
	}
}

// Collectors returns all collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ComponentsDiscovered,
		m.ConfigsRejected,
		m.MessagesIgnored,
		m.SessionsActive,
		m.SessionsCompleted,
		m.SessionDuration,
		m.BrokerConnected,
		m.BrokerReconnects,
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
