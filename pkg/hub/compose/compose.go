// Package compose parses a docker-compose document into the set of
// candidate MCP backends it describes.
package compose

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
	"github.com/mcp-hub/proxy/pkg/hub"
)

// proxyServiceValue is the label value a service declares to identify
// itself as the proxy, so the proxy never routes to itself.
const (
	labelService     = "mcp-hub.service"
	labelType        = "mcp-hub.type"
	labelDescription = "mcp-hub.description"

	proxyServiceValue = "proxy"
)

// Candidate is a backend yielded by the parser before it enters the
// Registry: a stable name, its HTTP origin, and the informational labels
// to preserve verbatim.
type Candidate struct {
	Name    string
	BaseURL string
	Labels  hub.Labels
}

// document mirrors the subset of docker-compose schema the parser reads.
type document struct {
	Services map[string]service `yaml:"services"`
}

type service struct {
	Ports  []portEntry `yaml:"ports"`
	Labels yaml.Node   `yaml:"labels"`
}

// portEntry accepts both the long "HOST:CONTAINER[/proto]" string form and
// the bare numeric container-only form (decoded as an int, carrying no
// host binding).
type portEntry struct {
	raw       string
	container bool
}

func (p *portEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!int" {
			p.container = true
			return nil
		}
		p.raw = node.Value
		return nil
	case yaml.MappingNode:
		// Long-form mapping syntax: {target: 8080, published: 8081}. Only
		// "published" yields a host port; "target" alone is container-only.
		var m struct {
			Published string `yaml:"published"`
			Target    string `yaml:"target"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Published == "" {
			p.container = true
			return nil
		}
		p.raw = m.Published + ":" + m.Target
		return nil
	default:
		p.container = true
		return nil
	}
}

// hostPort extracts the host-side port from a port entry, if any. Returns
// "" if the entry declares no host binding.
func (p portEntry) hostPort() string {
	if p.container || p.raw == "" {
		return ""
	}
	// Forms: "8081:8080", "8081:8080/tcp", "127.0.0.1:8081:8080", "8081".
	s := p.raw
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		s = s[:idx]
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		// Bare number with no colon: container-only, no host binding.
		return ""
	case 2:
		return parts[0]
	default:
		// host-ip:hostport:containerport
		return parts[len(parts)-2]
	}
}

// Parse decodes a compose document's bytes into candidate backends. The
// services are decoded into a map, so the order of returned candidates is
// unspecified; routing outcomes never depend on that order beyond the
// earliest-healthy-wins tie-break applied downstream in the capability
// index.
func Parse(data []byte) ([]Candidate, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, huberrors.Wrap(huberrors.KindConfig, "malformed compose document", err)
	}

	candidates := make([]Candidate, 0, len(doc.Services))
	for name, svc := range doc.Services {
		labels, err := decodeLabels(svc.Labels)
		if err != nil {
			return nil, huberrors.Wrap(huberrors.KindConfig, fmt.Sprintf("service %q has malformed labels", name), err)
		}

		if labels[labelService] == proxyServiceValue {
			continue
		}

		hostPort := ""
		for _, p := range svc.Ports {
			if hp := p.hostPort(); hp != "" {
				hostPort = hp
				break
			}
		}
		if hostPort == "" {
			continue
		}
		if _, err := strconv.Atoi(hostPort); err != nil {
			return nil, huberrors.Wrap(huberrors.KindConfig, fmt.Sprintf("service %q has non-numeric host port %q", name, hostPort), err)
		}

		candidates = append(candidates, Candidate{
			Name:    name,
			BaseURL: fmt.Sprintf("http://localhost:%s", hostPort),
			Labels: hub.Labels{
				Service:     labels[labelService],
				Type:        labels[labelType],
				Description: labels[labelDescription],
			},
		})
	}

	return candidates, nil
}

// ParseFile reads and parses a compose document from disk. A missing file
// is treated as an empty document rather than an error, consistent with
// the proxy starting with an empty registry when no compose file is
// present yet.
func ParseFile(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, huberrors.Wrap(huberrors.KindConfig, fmt.Sprintf("reading compose file %q", path), err)
	}
	return Parse(data)
}

// decodeLabels accepts both the mapping form (labels: {a: b}) and the list
// form (labels: ["a=b"]) that docker-compose allows.
func decodeLabels(node yaml.Node) (map[string]string, error) {
	out := map[string]string{}
	if node.Kind == 0 {
		return out, nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		for _, entry := range list {
			k, v, found := strings.Cut(entry, "=")
			if !found {
				continue
			}
			out[k] = v
		}
		return out, nil
	default:
		return out, nil
	}
}
