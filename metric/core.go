package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains the core hub-connection metrics every client
// carries regardless of its subsystems. A nil *Metrics disables
// recording, so callers without a registry need no guards.
type Metrics struct {
	HubConnected  prometheus.Gauge
	HubReconnects prometheus.Counter
	LinesRead     prometheus.Counter
	LinesWritten  prometheus.Counter
	ErrorsTotal   *prometheus.CounterVec
}

// NewMetrics creates the core metrics, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		HubConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "actorcore",
			Subsystem: "hub",
			Name:      "connected",
			Help:      "Hub connection status (0=disconnected, 1=connected)",
		}),

		HubReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "hub",
			Name:      "reconnects_total",
			Help:      "Total hub reconnections",
		}),

		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "hub",
			Name:      "lines_read_total",
			Help:      "Total reply lines read from the hub",
		}),

		LinesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "hub",
			Name:      "lines_written_total",
			Help:      "Total command lines written to the hub",
		}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "errors",
			Name:      "total",
			Help:      "Total errors, by subsystem and type",
		}, []string{"subsystem", "type"}),
	}
}

// RecordHubStatus updates the connection status gauge.
func (m *Metrics) RecordHubStatus(connected bool) {
	if m == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	m.HubConnected.Set(value)
}

// RecordHubReconnect counts one reconnection.
func (m *Metrics) RecordHubReconnect() {
	if m == nil {
		return
	}
	m.HubReconnects.Inc()
}

// RecordLineRead counts one inbound reply line.
func (m *Metrics) RecordLineRead() {
	if m == nil {
		return
	}
	m.LinesRead.Inc()
}

// RecordLineWritten counts one outbound command line.
func (m *Metrics) RecordLineWritten() {
	if m == nil {
		return
	}
	m.LinesWritten.Inc()
}

// RecordError counts one error by subsystem and type.
func (m *Metrics) RecordError(subsystem, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(subsystem, errorType).Inc()
}
