// Package status builds the one structured report served by both the
// HTTP /status page and the CLI's status subcommand, rendered two ways
// (JSON for tooling, plain text for terminals) from the same value.
package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mcp-hub/proxy/pkg/hub"
)

// Level summarizes the overall health of the fleet.
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelDegraded Level = "degraded"
	LevelDown     Level = "down"
)

// BackendStatus is one backend's entry in the report.
type BackendStatus struct {
	Name              string    `json:"name"`
	BaseURL           string    `json:"base_url"`
	State             string    `json:"state"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastProbeAt       time.Time `json:"last_probe_at,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	Tools             int       `json:"tools"`
	Resources         int       `json:"resources"`
	Prompts           int       `json:"prompts"`
}

// Status is the full report: overall level plus per-backend detail.
type Status struct {
	Level          Level           `json:"level"`
	TotalServers   int             `json:"total_servers"`
	HealthyServers int             `json:"healthy_servers"`
	Backends       []BackendStatus `json:"backends"`
}

// Build computes a Status from a registry snapshot. The overall Level is
// "healthy" when every backend is Healthy, "down" when none are, and
// "degraded" otherwise (including the empty-fleet case, since an operator
// probably wants to know no backends are configured at all without
// conflating that with a healthy empty proxy).
func Build(snapshot []hub.Backend) Status {
	out := Status{Backends: make([]BackendStatus, 0, len(snapshot))}

	healthy := 0
	for _, b := range snapshot {
		if b.IsHealthy() {
			healthy++
		}
		out.Backends = append(out.Backends, BackendStatus{
			Name:              b.Name,
			BaseURL:           b.BaseURL,
			State:             string(b.State),
			ConsecutiveErrors: b.ConsecutiveErrors,
			LastProbeAt:       b.LastProbeAt,
			LastError:         b.LastError,
			Tools:             len(b.Capabilities.Tools),
			Resources:         len(b.Capabilities.Resources),
			Prompts:           len(b.Capabilities.Prompts),
		})
	}
	sort.Slice(out.Backends, func(i, j int) bool { return out.Backends[i].Name < out.Backends[j].Name })

	out.TotalServers = len(snapshot)
	out.HealthyServers = healthy

	switch {
	case out.TotalServers == 0:
		out.Level = LevelDegraded
	case healthy == out.TotalServers:
		out.Level = LevelHealthy
	case healthy == 0:
		out.Level = LevelDown
	default:
		out.Level = LevelDegraded
	}

	return out
}

// JSON renders the report as indented JSON, for tooling that consumes
// it. The /status HTTP endpoint serves Text, not JSON.
func (s Status) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Text renders the report as a plain-text summary: the text/plain body of
// the /status endpoint, which the status CLI command prints.
func (s Status) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", s.Level)
	fmt.Fprintf(&b, "servers: %d healthy / %d total\n", s.HealthyServers, s.TotalServers)
	if len(s.Backends) == 0 {
		b.WriteString("no backends configured\n")
		return b.String()
	}
	b.WriteString("\n")
	for _, bs := range s.Backends {
		fmt.Fprintf(&b, "  %-20s %-10s errors=%-3d tools=%d resources=%d prompts=%d\n",
			bs.Name, bs.State, bs.ConsecutiveErrors, bs.Tools, bs.Resources, bs.Prompts)
		if bs.LastError != "" {
			fmt.Fprintf(&b, "      last error: %s\n", bs.LastError)
		}
	}
	return b.String()
}

// ExitCode maps the report's Level to the CLI's documented status exit
// codes: 0 running and healthy, 1 running and degraded, 2 not running.
// Build never returns an exit-2 case (that's the caller's "couldn't
// reach the proxy at all" branch, handled before Status is ever built).
func (s Status) ExitCode() int {
	switch s.Level {
	case LevelHealthy:
		return 0
	default:
		return 1
	}
}
