package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-hub/proxy/pkg/hub"
)

func backend(name string, initAt time.Time, tools ...string) hub.Backend {
	ts := make([]hub.Tool, 0, len(tools))
	for _, t := range tools {
		ts = append(ts, hub.Tool{Name: t})
	}
	return hub.Backend{
		Name:          name,
		State:         hub.StateHealthy,
		InitializedAt: initAt,
		Capabilities:  hub.Capabilities{Tools: ts},
	}
}

func TestBuild_SkipsNonHealthyBackends(t *testing.T) {
	t.Parallel()

	snapshot := []hub.Backend{
		backend("a", time.Unix(1, 0), "scrape"),
		{Name: "b", State: hub.StateUnhealthy, Capabilities: hub.Capabilities{Tools: []hub.Tool{{Name: "fetch"}}}},
	}
	idx := Build(snapshot)

	_, ok := idx.Tool("scrape")
	assert.True(t, ok)
	_, ok = idx.Tool("fetch")
	assert.False(t, ok)
}

func TestBuild_EarliestInitializedWinsOnCollision(t *testing.T) {
	t.Parallel()

	snapshot := []hub.Backend{
		backend("late", time.Unix(100, 0), "scrape"),
		backend("early", time.Unix(1, 0), "scrape"),
	}
	idx := Build(snapshot)

	entry, ok := idx.Tool("scrape")
	require.True(t, ok)
	assert.Equal(t, "early", entry.Backend)
}

func TestBuild_TiesBrokenByName(t *testing.T) {
	t.Parallel()

	same := time.Unix(5, 0)
	snapshot := []hub.Backend{
		backend("zzz", same, "scrape"),
		backend("aaa", same, "scrape"),
	}
	idx := Build(snapshot)

	entry, ok := idx.Tool("scrape")
	require.True(t, ok)
	assert.Equal(t, "aaa", entry.Backend)
}

func TestResource_ExactMatchWinsOverPrefix(t *testing.T) {
	t.Parallel()

	early := backend("prefix-owner", time.Unix(1, 0))
	early.Capabilities.Resources = []hub.Resource{{URI: "file:///logs/"}}

	exact := backend("exact-owner", time.Unix(2, 0))
	exact.Capabilities.Resources = []hub.Resource{{URI: "file:///logs/a.txt"}}

	idx := Build([]hub.Backend{early, exact})

	entry, ok := idx.Resource("file:///logs/a.txt")
	require.True(t, ok)
	assert.Equal(t, "exact-owner", entry.Backend)
}

func TestResource_LongestPrefixWinsWhenNoExactMatch(t *testing.T) {
	t.Parallel()

	short := backend("short", time.Unix(1, 0))
	short.Capabilities.Resources = []hub.Resource{{URI: "file:///"}}

	long := backend("long", time.Unix(2, 0))
	long.Capabilities.Resources = []hub.Resource{{URI: "file:///logs/"}}

	idx := Build([]hub.Backend{short, long})

	entry, ok := idx.Resource("file:///logs/a.txt")
	require.True(t, ok)
	assert.Equal(t, "long", entry.Backend)
}

func TestResource_NoMatchReturnsFalse(t *testing.T) {
	t.Parallel()

	idx := Build(nil)
	_, ok := idx.Resource("file:///nope")
	assert.False(t, ok)
}

func TestTools_BuildOrderOldestHealthyFirst(t *testing.T) {
	t.Parallel()

	idx := Build([]hub.Backend{
		backend("newer", time.Unix(2, 0), "search"),
		backend("older", time.Unix(1, 0), "zeta", "alpha"),
	})
	tools := idx.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "zeta", tools[0].Tool.Name)
	assert.Equal(t, "alpha", tools[1].Tool.Name)
	assert.Equal(t, "search", tools[2].Tool.Name)
}

func TestPublisher_CurrentReflectsLastRebuild(t *testing.T) {
	t.Parallel()

	fr := &fakeSnapshotter{backends: []hub.Backend{backend("a", time.Unix(1, 0), "scrape")}}
	pub := NewPublisher(fr)

	_, ok := pub.Current().Tool("scrape")
	assert.False(t, ok, "must not reflect registry state before the first Rebuild")

	pub.Rebuild()
	_, ok = pub.Current().Tool("scrape")
	assert.True(t, ok)
}

type fakeSnapshotter struct{ backends []hub.Backend }

func (f *fakeSnapshotter) Snapshot() []hub.Backend { return f.backends }
