// Package registry is the canonical, single-writer store of Backends.
// All mutation goes through Registry methods; readers only ever see
// copies returned by Snapshot/Get, never a pointer into the live map, so
// the capability index builder and the management HTTP surface can never
// observe a torn record.
package registry

import (
	"sync"
	"time"

	"github.com/mcp-hub/proxy/pkg/hub"
)

// Registry is the in-memory store of Backends keyed by stable name.
type Registry struct {
	mu       sync.Mutex
	backends map[string]*hub.Backend
	now      func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		backends: make(map[string]*hub.Backend),
		now:      time.Now,
	}
}

// Upsert inserts a new backend or updates an existing one's base URL. A
// changed base URL forces the backend back to StateUnknown and zeroes its
// error counter and capabilities: the previous health result said
// nothing about whatever is now listening at the new address.
func (r *Registry) Upsert(name, baseURL string, labels hub.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.backends[name]
	if !ok {
		r.backends[name] = &hub.Backend{
			Name:    name,
			BaseURL: baseURL,
			State:   hub.StateUnknown,
			Labels:  labels,
		}
		return
	}

	existing.Labels = labels
	if existing.BaseURL != baseURL {
		existing.BaseURL = baseURL
		existing.State = hub.StateUnknown
		existing.ConsecutiveErrors = 0
		existing.Capabilities = hub.Capabilities{}
		existing.InitializedAt = time.Time{}
	}
}

// MarkProbing transitions a backend into the Probing state.
func (r *Registry) MarkProbing(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok || b.State == hub.StateRemoved {
		return
	}
	b.State = hub.StateProbing
	b.LastProbeAt = r.now()
}

// MarkHealthy transitions a backend to Healthy, resets its error counter,
// stores its capabilities, and stamps InitializedAt the first time it
// becomes healthy after not being healthy. Re-confirmations of an
// already-healthy backend do not rewind InitializedAt: the capability
// index's tie-break rule depends on the first time a backend became
// healthy, not the most recent probe success.
func (r *Registry) MarkHealthy(name string, caps hub.Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok || b.State == hub.StateRemoved {
		return
	}

	now := r.now()
	wasHealthy := b.State == hub.StateHealthy
	b.State = hub.StateHealthy
	b.ConsecutiveErrors = 0
	b.Capabilities = caps
	b.LastProbeAt = now
	b.LastError = ""
	if !wasHealthy {
		b.InitializedAt = now
	}
}

// MarkUnhealthy transitions a backend to Unhealthy and increments its
// error counter. Callers in the health monitor are responsible for the
// failThreshold hysteresis that keeps a Healthy backend Healthy until
// failThreshold consecutive failures (see RecordFailure and Demote);
// MarkUnhealthy is used for failures of a backend that is not Healthy.
func (r *Registry) MarkUnhealthy(name string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok || b.State == hub.StateRemoved {
		return
	}
	b.State = hub.StateUnhealthy
	b.ConsecutiveErrors++
	b.LastProbeAt = r.now()
	if cause != nil {
		b.LastError = cause.Error()
	}
}

// RecordFailure increments the error counter and timestamp without
// forcing a state transition, used by the health monitor while a Healthy
// backend is still within failThreshold: the backend stays Healthy as
// long as the incremented count is below the threshold.
func (r *Registry) RecordFailure(name string, cause error) (consecutiveErrors int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok || b.State == hub.StateRemoved {
		return 0
	}
	b.ConsecutiveErrors++
	b.LastProbeAt = r.now()
	if cause != nil {
		b.LastError = cause.Error()
	}
	return b.ConsecutiveErrors
}

// Demote transitions an already-counted failure into an Unhealthy state
// change, without incrementing the error counter again. Use after
// RecordFailure has already pushed the counter to or past failThreshold.
func (r *Registry) Demote(name string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok || b.State == hub.StateRemoved {
		return
	}
	b.State = hub.StateUnhealthy
	b.LastProbeAt = r.now()
	if cause != nil {
		b.LastError = cause.Error()
	}
}

// Remove transitions a backend to Removed. Subsequent accessors treat it
// as absent: Get returns ok=false and Snapshot omits it.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok {
		return
	}
	b.State = hub.StateRemoved
	delete(r.backends, name)
}

// Snapshot returns a consistent view of every non-Removed backend. The
// lock is never held across the caller's subsequent work: Snapshot
// copies every record before returning.
func (r *Registry) Snapshot() []hub.Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]hub.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, *b)
	}
	return out
}

// Get returns a copy of the named backend, if present and not Removed.
func (r *Registry) Get(name string) (hub.Backend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[name]
	if !ok {
		return hub.Backend{}, false
	}
	return *b, true
}

// Names returns the set of backend names currently tracked (excluding
// Removed ones, which are evicted immediately), used by a reload to diff
// against a fresh parse of the compose document.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	return out
}
