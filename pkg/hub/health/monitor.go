// Package health implements the periodic prober that drives each backend
// through its state machine: Unknown -> Probing -> Healthy / Unhealthy,
// with failThreshold hysteresis so a transiently flapping backend does
// not oscillate the capability index.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
	"github.com/mcp-hub/proxy/pkg/hub"
	"github.com/mcp-hub/proxy/pkg/hub/mcpclient"
	"github.com/mcp-hub/proxy/pkg/hub/metrics"
	"github.com/mcp-hub/proxy/pkg/logger"
)

// trackedStates lists every label value the backend_state gauge carries,
// so SetBackendState can zero out the states a backend just left.
var trackedStates = []string{
	string(hub.StateUnknown),
	string(hub.StateProbing),
	string(hub.StateHealthy),
	string(hub.StateUnhealthy),
}

// Registry is the subset of *registry.Registry the monitor needs. Defined
// here (consumer side) so tests can supply a fake without importing the
// registry package.
type Registry interface {
	Snapshot() []hub.Backend
	Get(name string) (hub.Backend, bool)
	MarkProbing(name string)
	MarkHealthy(name string, caps hub.Capabilities)
	MarkUnhealthy(name string, cause error)
	RecordFailure(name string, cause error) int
	Demote(name string, cause error)
}

// CapabilityRefresher performs the MCP initialize + list_* sequence used
// the first time a backend recovers to Healthy.
type CapabilityRefresher interface {
	Initialize(ctx context.Context, baseURL string) (hub.Capabilities, error)
}

// CircuitBreakerConfig adds a cooldown on top of the plain failThreshold
// counter: when a Healthy backend is demoted to Unhealthy, the monitor
// stops probing it for Timeout before trying again. A later promotion to
// Healthy clears the cooldown. Failed probes of a backend that is already
// Unhealthy do not start a new cooldown, and FailureThreshold is checked
// by Validate but not consulted when deciding to trip. Gated off by
// default.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	Timeout          time.Duration
}

// Config configures the scheduling and thresholds of the Monitor.
type Config struct {
	ProbeInterval     time.Duration
	ProbeTimeout      time.Duration
	CapabilityTimeout time.Duration
	FailThreshold     int
	CircuitBreaker    *CircuitBreakerConfig
}

// DefaultConfig returns the standard probe schedule and thresholds.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:     30 * time.Second,
		ProbeTimeout:      5 * time.Second,
		CapabilityTimeout: 5 * time.Second,
		FailThreshold:     3,
	}
}

// Validate rejects a Config that would make the monitor misbehave.
func (c Config) Validate() error {
	if c.ProbeInterval <= 0 {
		return huberrors.New(huberrors.KindConfig, "probe interval must be positive")
	}
	if c.FailThreshold < 1 {
		return huberrors.New(huberrors.KindConfig, "fail threshold must be >= 1")
	}
	if c.CircuitBreaker != nil && c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold < 1 {
			return huberrors.New(huberrors.KindConfig, "circuit breaker failure threshold must be >= 1")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return huberrors.New(huberrors.KindConfig, "circuit breaker timeout must be positive")
		}
	}
	return nil
}

// Monitor drives every non-Removed backend through its health state
// machine on a fixed schedule.
type Monitor struct {
	registry  Registry
	refresher CapabilityRefresher
	probeHTTP *http.Client
	cfg       Config
	onChange  func()

	inFlightMu sync.Mutex
	inFlight   map[string]bool

	tripMu sync.Mutex
	tripped map[string]time.Time
}

// NewMonitor constructs a Monitor. onChange is invoked (from a probe
// goroutine, so it must not block or itself call back into the monitor)
// whenever a backend's Healthy status or capability set changes, so the
// caller can trigger a capability index rebuild.
func NewMonitor(reg Registry, refresher CapabilityRefresher, cfg Config, onChange func()) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Monitor{
		registry:  reg,
		refresher: refresher,
		probeHTTP: &http.Client{Timeout: cfg.ProbeTimeout},
		cfg:       cfg,
		onChange:  onChange,
		inFlight:  make(map[string]bool),
		tripped:   make(map[string]time.Time),
	}, nil
}

// Run blocks, issuing a probe sweep immediately and then every
// ProbeInterval, until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.sweep(ctx)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	for _, b := range m.registry.Snapshot() {
		if b.State == hub.StateRemoved {
			continue
		}
		go m.probeOne(ctx, b.Name)
	}
}

func (m *Monitor) probeOne(ctx context.Context, name string) {
	if !m.acquire(name) {
		return
	}
	defer m.release(name)

	if m.circuitOpen(name) {
		return
	}

	b, ok := m.registry.Get(name)
	if !ok {
		return
	}

	wasHealthy := b.State == hub.StateHealthy
	if b.State == hub.StateUnknown {
		m.registry.MarkProbing(name)
	}

	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	healthy, err := m.probeHealth(probeCtx, b.BaseURL)
	cancel()
	outcome := "success"
	if !healthy {
		outcome = "failure"
	}
	metrics.ProbeDurationSeconds.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		// Cancellation is a non-event: no state transition.
		return
	}

	if !healthy {
		m.handleFailure(name, wasHealthy, err)
		return
	}

	if wasHealthy {
		m.registry.MarkHealthy(name, b.Capabilities)
		metrics.SetBackendState(name, string(hub.StateHealthy), trackedStates)
		return
	}

	// First success after a non-Healthy state: refresh capabilities
	// before announcing Healthy.
	capCtx, capCancel := context.WithTimeout(ctx, m.cfg.CapabilityTimeout)
	caps, err := m.refresher.Initialize(capCtx, b.BaseURL)
	capCancel()

	if err != nil {
		logger.Warnw("capability refresh failed, holding backend unhealthy",
			"backend", name, "error", err)
		m.registry.MarkUnhealthy(name, err)
		m.onChange()
		return
	}

	m.registry.MarkHealthy(name, caps)
	m.resetCircuit(name)
	metrics.SetBackendState(name, string(hub.StateHealthy), trackedStates)
	logger.Infow("backend promoted to healthy", "backend", name)
	m.onChange()
}

func (m *Monitor) handleFailure(name string, wasHealthy bool, cause error) {
	if wasHealthy {
		n := m.registry.RecordFailure(name, cause)
		if n >= m.cfg.FailThreshold {
			m.registry.Demote(name, cause)
			m.trip(name)
			metrics.SetBackendState(name, string(hub.StateUnhealthy), trackedStates)
			logger.Warnw("backend demoted to unhealthy",
				"backend", name, "from", hub.StateHealthy, "to", hub.StateUnhealthy, "cause", errString(cause))
			m.onChange()
		}
		return
	}
	m.registry.MarkUnhealthy(name, cause)
	metrics.SetBackendState(name, string(hub.StateUnhealthy), trackedStates)
}

func (m *Monitor) probeHealth(ctx context.Context, baseURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false, huberrors.Wrap(huberrors.KindTransport, "building probe request", err)
	}

	resp, err := m.probeHTTP.Do(req)
	if err != nil {
		return false, huberrors.Wrap(huberrors.KindTransport, "probe request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, huberrors.New(huberrors.KindTransport, fmt.Sprintf("probe returned status %d", resp.StatusCode))
	}
	return true, nil
}

func (m *Monitor) acquire(name string) bool {
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	if m.inFlight[name] {
		return false
	}
	m.inFlight[name] = true
	return true
}

func (m *Monitor) release(name string) {
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	delete(m.inFlight, name)
}

func (m *Monitor) trip(name string) {
	if m.cfg.CircuitBreaker == nil || !m.cfg.CircuitBreaker.Enabled {
		return
	}
	m.tripMu.Lock()
	defer m.tripMu.Unlock()
	m.tripped[name] = time.Now().Add(m.cfg.CircuitBreaker.Timeout)
}

func (m *Monitor) resetCircuit(name string) {
	m.tripMu.Lock()
	defer m.tripMu.Unlock()
	delete(m.tripped, name)
}

func (m *Monitor) circuitOpen(name string) bool {
	if m.cfg.CircuitBreaker == nil || !m.cfg.CircuitBreaker.Enabled {
		return false
	}
	m.tripMu.Lock()
	defer m.tripMu.Unlock()
	until, ok := m.tripped[name]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(m.tripped, name)
		return false
	}
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ CapabilityRefresher = mcpRefresherAdapter{}

// mcpRefresherAdapter adapts mcpclient.Client to CapabilityRefresher.
type mcpRefresherAdapter struct {
	client mcpclient.Client
}

// NewRefresher wraps an mcpclient.Client as a CapabilityRefresher.
func NewRefresher(client mcpclient.Client) CapabilityRefresher {
	return mcpRefresherAdapter{client: client}
}

func (a mcpRefresherAdapter) Initialize(ctx context.Context, baseURL string) (hub.Capabilities, error) {
	return a.client.Initialize(ctx, baseURL)
}
