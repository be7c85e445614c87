package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/metric"
)

// dispatcherMetrics holds Prometheus metrics for dispatcher traffic.
// A nil *dispatcherMetrics disables recording.
type dispatcherMetrics struct {
	replies     *prometheus.CounterVec // by reply code name
	parseErrors prometheus.Counter
	commands    *prometheus.CounterVec // by kind (user/refresh)
	timeouts    prometheus.Counter
	pending     prometheus.Gauge
}

// newDispatcherMetrics creates and registers dispatcher metrics with
// the provided registry.
func newDispatcherMetrics(registry *metric.Registry) (*dispatcherMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &dispatcherMetrics{
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "dispatch",
			Name:      "replies_total",
			Help:      "Total replies dispatched, by reply code",
		}, []string{"code"}),

		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "dispatch",
			Name:      "parse_errors_total",
			Help:      "Total reply lines that failed to parse",
		}),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Total commands sent to the hub",
		}, []string{"kind"}), // kind: user, refresh

		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "actorcore",
			Subsystem: "dispatch",
			Name:      "command_timeouts_total",
			Help:      "Total commands expired by the timeout scanner",
		}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "actorcore",
			Subsystem: "dispatch",
			Name:      "pending_commands",
			Help:      "Commands currently awaiting a terminal reply",
		}),
	}

	if err := registry.RegisterCounterVec("dispatch", "replies_total", m.replies); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("dispatch", "parse_errors_total", m.parseErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("dispatch", "commands_total", m.commands); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("dispatch", "command_timeouts_total", m.timeouts); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("dispatch", "pending_commands", m.pending); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *dispatcherMetrics) replyReceived(code message.MsgCode) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(code.Name()).Inc()
}

func (m *dispatcherMetrics) parseError() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

func (m *dispatcherMetrics) commandSent(isRefresh bool) {
	if m == nil {
		return
	}
	kind := "user"
	if isRefresh {
		kind = "refresh"
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *dispatcherMetrics) commandTimeout() {
	if m == nil {
		return
	}
	m.timeouts.Inc()
}

func (m *dispatcherMetrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
