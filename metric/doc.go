// Package metric provides Prometheus-based metrics for actor clients.
//
// A Registry owns one Prometheus registry: core hub-connection metrics
// are registered at construction, and subsystems (the dispatcher, an
// actor's own instrumentation) register their metrics under a
// namespaced key so duplicates are caught early. The Server exposes
// the registry at /metrics plus a JSON health check at /health.
//
// All registration methods are safe for concurrent use; recording is
// lock-free per the Prometheus client guarantees.
package metric
