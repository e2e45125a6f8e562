// Package metrics defines the Prometheus collectors the proxy exposes on
// /metrics, registered against the default registry so promhttp.Handler()
// serves them without any further wiring at the call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapabilityConflictsTotal counts every tool/resource/prompt name
	// collision dropped while building the capability index, labeled by
	// kind ("tool", "resource", "prompt") and the colliding key.
	CapabilityConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_hub_capability_conflicts_total",
		Help: "Capability name collisions dropped while building the aggregated index.",
	}, []string{"kind", "name"})

	// DroppedNotificationsTotal counts notifications the router drops,
	// labeled by method. The router forwards no notification upstream, so
	// every notifications/* request it receives is counted here.
	DroppedNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_hub_dropped_notifications_total",
		Help: "Notifications that could not be forwarded to a backend.",
	}, []string{"method"})

	// ErrorsTotal counts failed forwarding attempts in the router,
	// labeled by error Kind (transport, protocol, application, deadline).
	// Not-found lookups, malformed requests, and health probe failures
	// are not counted.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_hub_errors_total",
		Help: "Errors observed by the proxy, labeled by classification.",
	}, []string{"kind"})

	// ProbeDurationSeconds observes the wall-clock time of each health
	// probe, labeled by backend and outcome.
	ProbeDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_hub_probe_duration_seconds",
		Help:    "Duration of a single backend health probe.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "outcome"})

	// BackendState reports each backend's current state as a gauge set to
	// 1 for the active state and 0 for the others, labeled by backend and
	// state, so a dashboard can graph state occupancy over time.
	BackendState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcp_hub_backend_state",
		Help: "1 if the backend is currently in this state, 0 otherwise.",
	}, []string{"backend", "state"})
)

// SetBackendState updates the BackendState gauge so exactly one state
// label for the given backend reads 1.
func SetBackendState(backend string, state string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		BackendState.WithLabelValues(backend, s).Set(v)
	}
}
