// Package topology loads the lattice node set the console starts with.
// A built-in layout is embedded; a YAML file can replace it.
package topology

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"neurosentinel/internal/sentinel"
)

//go:embed default.yaml
var defaultYAML []byte

// Topology is a node set plus the node the local incident targets.
type Topology struct {
	IncidentNode string                        `yaml:"incident_node"`
	Nodes        []sentinel.InfrastructureNode `yaml:"nodes"`
}

// Default returns the embedded layout.
func Default() Topology {
	topo, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded topology: %v", err))
	}
	return topo
}

// Load reads a topology file. An empty path returns Default.
func Load(path string) (Topology, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("read topology %s: %w", path, err)
	}
	topo, err := Parse(data)
	if err != nil {
		return Topology{}, fmt.Errorf("topology %s: %w", path, err)
	}
	return topo, nil
}

// Parse decodes and validates a YAML topology. Node ids must be
// non-empty and unique, positions finite; missing statuses default to healthy; the
// incident node defaults to the first node.
func Parse(data []byte) (Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return Topology{}, fmt.Errorf("decode yaml: %w", err)
	}
	if len(topo.Nodes) == 0 {
		return Topology{}, fmt.Errorf("no nodes defined")
	}

	seen := make(map[string]struct{}, len(topo.Nodes))
	for i := range topo.Nodes {
		node := &topo.Nodes[i]
		node.ID = strings.TrimSpace(node.ID)
		if node.ID == "" {
			return Topology{}, fmt.Errorf("node %d: missing id", i)
		}
		if _, dup := seen[node.ID]; dup {
			return Topology{}, fmt.Errorf("duplicate node id %q", node.ID)
		}
		seen[node.ID] = struct{}{}
		if !node.Position.Finite() {
			return Topology{}, fmt.Errorf("node %q: position must be finite", node.ID)
		}
		if node.Status == "" {
			node.Status = sentinel.StatusHealthy
		}
		if node.Connections == nil {
			node.Connections = []string{}
		}
	}

	topo.IncidentNode = strings.TrimSpace(topo.IncidentNode)
	if topo.IncidentNode == "" {
		topo.IncidentNode = topo.Nodes[0].ID
	}
	if _, ok := seen[topo.IncidentNode]; !ok {
		return Topology{}, fmt.Errorf("incident node %q is not defined", topo.IncidentNode)
	}
	return topo, nil
}
