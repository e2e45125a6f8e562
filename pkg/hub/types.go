// Package hub holds the shared types for the MCP Hub proxy: the Backend
// record owned by the Registry, the capability types produced by the MCP
// Client and consumed by the Capability Index, and the small value types
// that flow between the Router and the rest of the system.
package hub

import (
	"encoding/json"
	"time"
)

// BackendState is the state-machine state of a Backend.
type BackendState string

// The states a Backend can be in. Unknown is the initial state; Removed
// is terminal.
const (
	StateUnknown   BackendState = "unknown"
	StateProbing   BackendState = "probing"
	StateHealthy   BackendState = "healthy"
	StateUnhealthy BackendState = "unhealthy"
	StateRemoved   BackendState = "removed"
)

// Tool is an MCP tool advertised by a backend.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource is an MCP resource advertised by a backend. URI may be a
// concrete address or a prefix pattern; the Capability Index's lookup
// rule determines which.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Prompt is an MCP prompt advertised by a backend.
type Prompt struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
}

// Capabilities is the opaque capability set last returned by a backend's
// initialize/list_* calls. Raw preserves the original initialize response
// as received; nothing in the proxy reads it back. Tools/Resources/Prompts
// are the lists returned by the list_* calls and are never introspected
// beyond those keys.
type Capabilities struct {
	Raw       json.RawMessage `json:"raw,omitempty"`
	Tools     []Tool          `json:"tools,omitempty"`
	Resources []Resource      `json:"resources,omitempty"`
	Prompts   []Prompt        `json:"prompts,omitempty"`
}

// Labels are the informational compose labels preserved verbatim on a
// Backend: mcp-hub.service, mcp-hub.type, mcp-hub.description.
type Labels struct {
	Service     string `json:"service,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Backend is one logical MCP server, owned exclusively by the Registry.
// Every field is a value the Registry's Snapshot copies out; callers
// never receive a pointer into the live record.
type Backend struct {
	Name              string       `json:"name"`
	BaseURL           string       `json:"base_url"`
	State             BackendState `json:"state"`
	LastProbeAt       time.Time    `json:"last_probe_at"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	Capabilities      Capabilities `json:"capabilities"`
	InitializedAt     time.Time    `json:"initialized_at"`
	Labels            Labels       `json:"labels"`
	LastError         string       `json:"last_error,omitempty"`
}

// IsHealthy reports whether the backend is currently eligible for
// inclusion in the Capability Index.
func (b Backend) IsHealthy() bool {
	return b.State == StateHealthy
}
