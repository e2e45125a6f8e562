package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-hub/proxy/pkg/hub"
)

func TestUpsert_InsertsNewBackend(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{Service: "a"})

	b, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, hub.StateUnknown, b.State)
	assert.Equal(t, "http://localhost:8081", b.BaseURL)
}

func TestUpsert_URLChangeResetsState(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.MarkHealthy("a", hub.Capabilities{Tools: []hub.Tool{{Name: "t"}}})
	r.RecordFailure("a", errors.New("boom"))

	r.Upsert("a", "http://localhost:9091", hub.Labels{})

	b, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, hub.StateUnknown, b.State)
	assert.Equal(t, 0, b.ConsecutiveErrors)
	assert.Empty(t, b.Capabilities.Tools)
	assert.Equal(t, "http://localhost:9091", b.BaseURL)
}

func TestUpsert_SameURLPreservesState(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.MarkHealthy("a", hub.Capabilities{})

	r.Upsert("a", "http://localhost:8081", hub.Labels{Description: "updated"})

	b, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, hub.StateHealthy, b.State)
	assert.Equal(t, "updated", b.Labels.Description)
}

func TestMarkHealthy_SetsInitializedAtOnlyOnFirstPromotion(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.MarkHealthy("a", hub.Capabilities{})

	b, _ := r.Get("a")
	first := b.InitializedAt
	require.False(t, first.IsZero())

	time.Sleep(2 * time.Millisecond)
	r.MarkHealthy("a", hub.Capabilities{})

	b, _ = r.Get("a")
	assert.Equal(t, first, b.InitializedAt, "re-confirming health must not rewind InitializedAt")
}

func TestMarkHealthy_ResetsErrorCounter(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.RecordFailure("a", errors.New("x"))
	r.RecordFailure("a", errors.New("x"))

	r.MarkHealthy("a", hub.Capabilities{})

	b, _ := r.Get("a")
	assert.Equal(t, 0, b.ConsecutiveErrors)
}

func TestMarkUnhealthy_IncrementsErrorsAndSetsState(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.MarkUnhealthy("a", errors.New("connection refused"))

	b, _ := r.Get("a")
	assert.Equal(t, hub.StateUnhealthy, b.State)
	assert.Equal(t, 1, b.ConsecutiveErrors)
	assert.Equal(t, "connection refused", b.LastError)
}

func TestRemove_EvictsFromSnapshotAndGet(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})
	r.Remove("a")

	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Empty(t, r.Snapshot())
}

func TestOperationsOnRemovedOrAbsentBackendAreNoOps(t *testing.T) {
	t.Parallel()

	r := New()
	assert.NotPanics(t, func() {
		r.MarkProbing("ghost")
		r.MarkHealthy("ghost", hub.Capabilities{})
		r.MarkUnhealthy("ghost", errors.New("x"))
		r.RecordFailure("ghost", errors.New("x"))
		r.Remove("ghost")
	})
	assert.Empty(t, r.Snapshot())
}

func TestSnapshot_ReturnsCopiesNotLiveReferences(t *testing.T) {
	t.Parallel()

	r := New()
	r.Upsert("a", "http://localhost:8081", hub.Labels{})

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	snap[0].State = hub.StateHealthy

	b, _ := r.Get("a")
	assert.Equal(t, hub.StateUnknown, b.State, "mutating a snapshot value must not affect the registry")
}
