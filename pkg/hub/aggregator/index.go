// Package aggregator builds and serves the merged view of every healthy
// backend's tools, resources, and prompts: the capability index that the
// router consults on every incoming call.
package aggregator

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/mcp-hub/proxy/pkg/hub"
	"github.com/mcp-hub/proxy/pkg/hub/metrics"
)

// Registry is the subset of *registry.Registry the index needs to build a
// snapshot.
type Registry interface {
	Snapshot() []hub.Backend
}

// ToolEntry is one tool in the merged index, tagged with the backend that
// owns it.
type ToolEntry struct {
	Backend string
	Tool    hub.Tool
}

// ResourceEntry is one resource in the merged index, tagged with its
// owning backend.
type ResourceEntry struct {
	Backend  string
	Resource hub.Resource
}

// PromptEntry is one prompt in the merged index, tagged with its owning
// backend.
type PromptEntry struct {
	Backend string
	Prompt  hub.Prompt
}

// Index is an immutable, point-in-time merge of every Healthy backend's
// capabilities. Build a new one and publish it atomically; never mutate
// an Index in place.
type Index struct {
	tools     map[string]ToolEntry
	resources map[string]ResourceEntry
	prompts   map[string]PromptEntry

	// toolOrder, resourceOrder, promptOrder preserve insertion order —
	// oldest-Healthy-backend-first, the same order the build loop visited
	// them in — so List responses match the tie-break rule instead of an
	// arbitrary map-iteration or alphabetical order.
	toolOrder     []string
	resourceOrder []string
	promptOrder   []string

	// resourceKeys holds every registered resource URI, sorted
	// longest-first so lookup can do a linear longest-prefix scan. Kept
	// small in practice: one entry per distinct resource URI.
	resourceKeys []string
}

// Build merges the capabilities of every Healthy backend in snapshot,
// ordered by InitializedAt ascending so that on a name collision the
// backend that became Healthy earliest wins. Ties on InitializedAt (e.g.
// two backends promoted within the same probe sweep) are broken by
// backend name so the result is deterministic.
func Build(snapshot []hub.Backend) *Index {
	healthy := make([]hub.Backend, 0, len(snapshot))
	for _, b := range snapshot {
		if b.IsHealthy() {
			healthy = append(healthy, b)
		}
	}
	sort.SliceStable(healthy, func(i, j int) bool {
		if healthy[i].InitializedAt.Equal(healthy[j].InitializedAt) {
			return healthy[i].Name < healthy[j].Name
		}
		return healthy[i].InitializedAt.Before(healthy[j].InitializedAt)
	})

	idx := &Index{
		tools:     make(map[string]ToolEntry),
		resources: make(map[string]ResourceEntry),
		prompts:   make(map[string]PromptEntry),
	}

	for _, b := range healthy {
		for _, t := range b.Capabilities.Tools {
			if _, exists := idx.tools[t.Name]; exists {
				metrics.CapabilityConflictsTotal.WithLabelValues("tool", t.Name).Inc()
				continue
			}
			idx.tools[t.Name] = ToolEntry{Backend: b.Name, Tool: t}
			idx.toolOrder = append(idx.toolOrder, t.Name)
		}
		for _, r := range b.Capabilities.Resources {
			if _, exists := idx.resources[r.URI]; exists {
				metrics.CapabilityConflictsTotal.WithLabelValues("resource", r.URI).Inc()
				continue
			}
			idx.resources[r.URI] = ResourceEntry{Backend: b.Name, Resource: r}
			idx.resourceOrder = append(idx.resourceOrder, r.URI)
		}
		for _, p := range b.Capabilities.Prompts {
			if _, exists := idx.prompts[p.Name]; exists {
				metrics.CapabilityConflictsTotal.WithLabelValues("prompt", p.Name).Inc()
				continue
			}
			idx.prompts[p.Name] = PromptEntry{Backend: b.Name, Prompt: p}
			idx.promptOrder = append(idx.promptOrder, p.Name)
		}
	}

	idx.resourceKeys = make([]string, 0, len(idx.resources))
	for k := range idx.resources {
		idx.resourceKeys = append(idx.resourceKeys, k)
	}
	sort.Slice(idx.resourceKeys, func(i, j int) bool {
		return len(idx.resourceKeys[i]) > len(idx.resourceKeys[j])
	})

	return idx
}

// Tool looks up a tool by exact name.
func (idx *Index) Tool(name string) (ToolEntry, bool) {
	e, ok := idx.tools[name]
	return e, ok
}

// Resource looks up a resource by exact URI first, falling back to the
// longest registered URI that is a prefix of uri. This lets a backend
// advertise a resource as a prefix pattern (e.g. "file:///logs/") and
// still be matched by a concrete read request for "file:///logs/a.txt".
func (idx *Index) Resource(uri string) (ResourceEntry, bool) {
	if e, ok := idx.resources[uri]; ok {
		return e, true
	}
	for _, key := range idx.resourceKeys {
		if strings.HasPrefix(uri, key) {
			return idx.resources[key], true
		}
	}
	return ResourceEntry{}, false
}

// Prompt looks up a prompt by exact name.
func (idx *Index) Prompt(name string) (PromptEntry, bool) {
	e, ok := idx.prompts[name]
	return e, ok
}

// Tools returns every tool in the index in build order: oldest-Healthy
// backend first, matching the capability index's collision tie-break rule.
func (idx *Index) Tools() []ToolEntry {
	out := make([]ToolEntry, 0, len(idx.toolOrder))
	for _, name := range idx.toolOrder {
		out = append(out, idx.tools[name])
	}
	return out
}

// Resources returns every resource in the index in build order:
// oldest-Healthy backend first.
func (idx *Index) Resources() []ResourceEntry {
	out := make([]ResourceEntry, 0, len(idx.resourceOrder))
	for _, uri := range idx.resourceOrder {
		out = append(out, idx.resources[uri])
	}
	return out
}

// Prompts returns every prompt in the index in build order: oldest-Healthy
// backend first.
func (idx *Index) Prompts() []PromptEntry {
	out := make([]PromptEntry, 0, len(idx.promptOrder))
	for _, name := range idx.promptOrder {
		out = append(out, idx.prompts[name])
	}
	return out
}

// Publisher holds the currently-live Index behind an atomic pointer so
// readers never block on a rebuild and never observe a partially built
// Index.
type Publisher struct {
	registry Registry
	current  atomic.Pointer[Index]
}

// NewPublisher constructs a Publisher with an empty initial Index so
// Current never returns nil before the first Rebuild.
func NewPublisher(reg Registry) *Publisher {
	p := &Publisher{registry: reg}
	p.current.Store(Build(nil))
	return p
}

// Rebuild recomputes the index from the registry's current snapshot and
// publishes it atomically. Safe to call concurrently with Current from
// any number of goroutines.
func (p *Publisher) Rebuild() {
	p.current.Store(Build(p.registry.Snapshot()))
}

// Current returns the most recently published Index.
func (p *Publisher) Current() *Index {
	return p.current.Load()
}
