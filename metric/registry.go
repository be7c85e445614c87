package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

// Registrar is the registration surface handed to subsystems that own
// their own metrics.
type Registrar interface {
	RegisterCounter(subsystem, name string, counter prometheus.Counter) error
	RegisterGauge(subsystem, name string, gauge prometheus.Gauge) error
	RegisterHistogram(subsystem, name string, histogram prometheus.Histogram) error
	RegisterCounterVec(subsystem, name string, vec *prometheus.CounterVec) error
	RegisterGaugeVec(subsystem, name string, vec *prometheus.GaugeVec) error
	RegisterHistogramVec(subsystem, name string, vec *prometheus.HistogramVec) error
	Unregister(subsystem, name string) bool
}

// Registry manages the registration and lifecycle of metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	core               *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a registry with the core connection metrics and
// Go runtime collectors pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		core:               NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(
		r.core.HubConnected,
		r.core.HubReconnects,
		r.core.LinesRead,
		r.core.LinesWritten,
		r.core.ErrorsTotal,
	)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Core returns the core connection metrics.
func (r *Registry) Core() *Metrics {
	return r.core
}

// register records a collector under "<subsystem>.<name>", rejecting
// duplicates at both the registry and Prometheus level.
func (r *Registry) register(subsystem, name, method string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for subsystem %s", name, subsystem),
			"metric.Registry", method, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "metric.Registry", method,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "metric.Registry", method, "register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// RegisterCounter registers a counter metric for a subsystem.
func (r *Registry) RegisterCounter(subsystem, name string, counter prometheus.Counter) error {
	return r.register(subsystem, name, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a subsystem.
func (r *Registry) RegisterGauge(subsystem, name string, gauge prometheus.Gauge) error {
	return r.register(subsystem, name, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a subsystem.
func (r *Registry) RegisterHistogram(subsystem, name string, histogram prometheus.Histogram) error {
	return r.register(subsystem, name, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a labelled counter for a subsystem.
func (r *Registry) RegisterCounterVec(subsystem, name string, vec *prometheus.CounterVec) error {
	return r.register(subsystem, name, "RegisterCounterVec", vec)
}

// RegisterGaugeVec registers a labelled gauge for a subsystem.
func (r *Registry) RegisterGaugeVec(subsystem, name string, vec *prometheus.GaugeVec) error {
	return r.register(subsystem, name, "RegisterGaugeVec", vec)
}

// RegisterHistogramVec registers a labelled histogram for a subsystem.
func (r *Registry) RegisterHistogramVec(subsystem, name string, vec *prometheus.HistogramVec) error {
	return r.register(subsystem, name, "RegisterHistogramVec", vec)
}

// Unregister removes a metric from the registry.
func (r *Registry) Unregister(subsystem, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", subsystem, name)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}
	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registered, key)
	return true
}
