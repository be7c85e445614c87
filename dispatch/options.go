package dispatch

import (
	"log/slog"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/metric"
)

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithCmdr sets the commander ID ("<program>.<user>") used to match
// inbound replies and to synthesize local ones. The hub assigns the
// real ID at login; SetCmdr installs it then.
func WithCmdr(cmdr string) Option {
	return func(d *Dispatcher) { d.cmdr = cmdr }
}

// WithIncludeName controls whether outgoing command lines carry the
// dispatcher name as a commander prefix. Required by the hub, optional
// when talking to a bare actor.
func WithIncludeName(include bool) Option {
	return func(d *Dispatcher) { d.includeName = include }
}

// WithDelayCallbacks defers KeyVar callbacks until the first full
// refresh cycle completes, so observers see a consistent snapshot
// instead of keywords trickling in one at a time.
func WithDelayCallbacks() Option {
	return func(d *Dispatcher) { d.delaying = true }
}

// WithRefreshInterval sets how often stale KeyVars are scanned for
// refresh.
func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.refreshInterval = interval }
}

// WithTimeoutInterval sets how often executing commands are checked
// against their deadlines.
func WithTimeoutInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.timeoutInterval = interval }
}

// WithRefreshTimeLimit bounds each refresh command.
func WithRefreshTimeLimit(limit time.Duration) Option {
	return func(d *Dispatcher) { d.refreshTimeLim = limit }
}

// WithMetrics enables Prometheus metrics on the given registry.
func WithMetrics(registry *metric.Registry) Option {
	return func(d *Dispatcher) { d.metricRegistry = registry }
}

// WithLogSink replaces the default reply log sink. The sink receives
// every dispatched reply with its severity, originating actor, and
// commander ID.
func WithLogSink(sink LogSink) Option {
	return func(d *Dispatcher) { d.logSink = sink }
}
