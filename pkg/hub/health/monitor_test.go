package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mcp-hub/proxy/pkg/hub"
	"github.com/mcp-hub/proxy/pkg/hub/mcpclient"
)

// fakeRegistry is a minimal in-memory stand-in for *registry.Registry,
// recording every transition so tests can assert on the sequence without
// depending on the registry package.
type fakeRegistry struct {
	mu       sync.Mutex
	backends map[string]*hub.Backend
	events   []string
}

func newFakeRegistry(backends ...hub.Backend) *fakeRegistry {
	m := make(map[string]*hub.Backend, len(backends))
	for i := range backends {
		b := backends[i]
		m[b.Name] = &b
	}
	return &fakeRegistry{backends: m}
}

func (f *fakeRegistry) Snapshot() []hub.Backend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hub.Backend, 0, len(f.backends))
	for _, b := range f.backends {
		out = append(out, *b)
	}
	return out
}

func (f *fakeRegistry) Get(name string) (hub.Backend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.backends[name]
	if !ok {
		return hub.Backend{}, false
	}
	return *b, true
}

func (f *fakeRegistry) MarkProbing(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[name]; ok {
		b.State = hub.StateProbing
	}
	f.events = append(f.events, "probing:"+name)
}

func (f *fakeRegistry) MarkHealthy(name string, caps hub.Capabilities) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[name]; ok {
		b.State = hub.StateHealthy
		b.ConsecutiveErrors = 0
		b.Capabilities = caps
	}
	f.events = append(f.events, "healthy:"+name)
}

func (f *fakeRegistry) MarkUnhealthy(name string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[name]; ok {
		b.State = hub.StateUnhealthy
		b.ConsecutiveErrors++
	}
	f.events = append(f.events, "unhealthy:"+name)
}

func (f *fakeRegistry) RecordFailure(name string, _ error) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.backends[name]
	if !ok {
		return 0
	}
	b.ConsecutiveErrors++
	f.events = append(f.events, "failure:"+name)
	return b.ConsecutiveErrors
}

func (f *fakeRegistry) Demote(name string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[name]; ok {
		b.State = hub.StateUnhealthy
	}
	f.events = append(f.events, "demote:"+name)
}

type fakeRefresher struct {
	caps hub.Capabilities
	err  error
}

func (f fakeRefresher) Initialize(context.Context, string) (hub.Capabilities, error) {
	return f.caps, f.err
}

func TestNewMonitor_ValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewMonitor(newFakeRegistry(), fakeRefresher{}, Config{ProbeInterval: 0, FailThreshold: 1}, nil)
	require.Error(t, err)

	_, err = NewMonitor(newFakeRegistry(), fakeRefresher{}, Config{ProbeInterval: time.Second, FailThreshold: 0}, nil)
	require.Error(t, err)

	_, err = NewMonitor(newFakeRegistry(), fakeRefresher{}, Config{ProbeInterval: time.Second, FailThreshold: 1}, nil)
	require.NoError(t, err)
}

func TestProbeOne_UnknownToHealthyRefreshesCapabilities(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateUnknown})
	refresher := fakeRefresher{caps: hub.Capabilities{Tools: []hub.Tool{{Name: "scrape"}}}}

	changed := 0
	mon, err := NewMonitor(reg, refresher, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, CapabilityTimeout: time.Second, FailThreshold: 3}, func() { changed++ })
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateHealthy, b.State)
	assert.Len(t, b.Capabilities.Tools, 1)
	assert.Equal(t, 1, changed)
}

func TestProbeOne_CapabilityRefreshFailureKeepsUnhealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateUnknown})
	refresher := fakeRefresher{err: errors.New("initialize failed")}

	mon, err := NewMonitor(reg, refresher, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, CapabilityTimeout: time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateUnhealthy, b.State)
}

func TestProbeOne_HealthyStaysHealthyBelowThreshold(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateHealthy, ConsecutiveErrors: 0})
	mon, err := NewMonitor(reg, fakeRefresher{}, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateHealthy, b.State, "must stay healthy below failThreshold")
	assert.Equal(t, 1, b.ConsecutiveErrors)
}

func TestProbeOne_HealthyDemotesAtThreshold(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateHealthy, ConsecutiveErrors: 2})
	changed := 0
	mon, err := NewMonitor(reg, fakeRefresher{}, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, FailThreshold: 3}, func() { changed++ })
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateUnhealthy, b.State, "third consecutive failure must demote")
	assert.Equal(t, 1, changed)
}

func TestProbeOne_UnhealthyPromotesOnSingleSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateUnhealthy, ConsecutiveErrors: 5})
	refresher := fakeRefresher{caps: hub.Capabilities{Tools: []hub.Tool{{Name: "x"}}}}
	mon, err := NewMonitor(reg, refresher, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, CapabilityTimeout: time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateHealthy, b.State)
	assert.Equal(t, 0, b.ConsecutiveErrors)
}

func TestProbeOne_NoMoreThanOneInFlightPerBackend(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	block := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateHealthy})
	mon, err := NewMonitor(reg, fakeRefresher{}, Config{ProbeInterval: time.Hour, ProbeTimeout: 2 * time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); mon.probeOne(context.Background(), "a") }()
	go func() { defer wg.Done(); time.Sleep(10 * time.Millisecond); mon.probeOne(context.Background(), "a") }()

	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "second probe must be skipped while the first is in flight")
}

func TestProbeOne_CancellationIsNonEvent(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: "http://127.0.0.1:1", State: hub.StateHealthy})
	mon, err := NewMonitor(reg, fakeRefresher{}, Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mon.probeOne(ctx, "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateHealthy, b.State, "a canceled probe must not transition state")
}

func TestProbeOne_RefresherBackedByMockClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	mockClient := mcpclient.NewMockClient(ctrl)
	mockClient.EXPECT().
		Initialize(gomock.Any(), srv.URL).
		Return(hub.Capabilities{Tools: []hub.Tool{{Name: "fetch"}}}, nil)

	reg := newFakeRegistry(hub.Backend{Name: "a", BaseURL: srv.URL, State: hub.StateUnknown})
	mon, err := NewMonitor(reg, NewRefresher(mockClient), Config{ProbeInterval: time.Hour, ProbeTimeout: time.Second, CapabilityTimeout: time.Second, FailThreshold: 3}, nil)
	require.NoError(t, err)

	mon.probeOne(context.Background(), "a")

	b, _ := reg.Get("a")
	assert.Equal(t, hub.StateHealthy, b.State)
	assert.Len(t, b.Capabilities.Tools, 1)
}
