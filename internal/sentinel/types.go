// Package sentinel defines the data model shared by every part of the
// console: agent state labels, thoughts, infrastructure nodes, the
// aggregate system state, and the payloads of inbound events.
package sentinel

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AgentState is the presentational label the monitored agent reports.
// Any state may follow any other; nothing here enforces transitions.
type AgentState string

const (
	StateIdle       AgentState = "IDLE"
	StateBreathe    AgentState = "BREATHE"
	StateRapidPulse AgentState = "RAPID_PULSE"
	StateStrobeRed  AgentState = "STROBE_RED"
	StateSuccess    AgentState = "SUCCESS"
)

// AgentStates lists every state in declaration order.
var AgentStates = []AgentState{StateIdle, StateBreathe, StateRapidPulse, StateStrobeRed, StateSuccess}

// Valid reports whether s is one of the known labels.
func (s AgentState) Valid() bool {
	switch s {
	case StateIdle, StateBreathe, StateRapidPulse, StateStrobeRed, StateSuccess:
		return true
	}
	return false
}

// UnmarshalText rejects labels outside the closed set so that a bad frame
// is dropped at the decoder instead of reaching the renderers.
func (s *AgentState) UnmarshalText(text []byte) error {
	candidate := AgentState(strings.ToUpper(strings.TrimSpace(string(text))))
	if !candidate.Valid() {
		return fmt.Errorf("unknown agent state %q", string(text))
	}
	*s = candidate
	return nil
}

// ThoughtKind classifies a thought for coloring.
type ThoughtKind string

const (
	ThoughtReasoning ThoughtKind = "reasoning"
	ThoughtAction    ThoughtKind = "action"
	ThoughtError     ThoughtKind = "error"
	ThoughtSystem    ThoughtKind = "system"
)

// Thought is one immutable entry of the thought log.
type Thought struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      ThoughtKind `json:"type"`
	Content   string      `json:"content"`
	Signature string      `json:"signature,omitempty"`
}

// NodeKind is the role of an infrastructure node.
type NodeKind string

const (
	KindFile       NodeKind = "file"
	KindService    NodeKind = "service"
	KindDatabase   NodeKind = "database"
	KindAPI        NodeKind = "api"
	KindDependency NodeKind = "dependency"
)

// NodeStatus is the health of an infrastructure node.
type NodeStatus string

const (
	StatusHealthy    NodeStatus = "healthy"
	StatusWarning    NodeStatus = "warning"
	StatusError      NodeStatus = "error"
	StatusProcessing NodeStatus = "processing"
)

// Vec3 is a fixed position in lattice space.
type Vec3 [3]float64

// Finite reports whether every coordinate is a real number.
func (v Vec3) Finite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// InfrastructureNode is a monitored entity drawn in the lattice.
// Connections are directed and may be asymmetric.
type InfrastructureNode struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Kind        NodeKind          `json:"type" yaml:"type"`
	Path        string            `json:"path,omitempty" yaml:"path,omitempty"`
	Status      NodeStatus        `json:"status" yaml:"status"`
	Position    Vec3              `json:"position" yaml:"position"`
	Connections []string          `json:"connections" yaml:"connections"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a deep copy.
func (n InfrastructureNode) Clone() InfrastructureNode {
	out := n
	out.Connections = append([]string(nil), n.Connections...)
	if n.Metadata != nil {
		out.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// TokenUsage tracks context consumption. Current is not clamped; only the
// display is.
type TokenUsage struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Fraction returns Current/Max clamped to [0, 1].
func (u TokenUsage) Fraction() float64 {
	if u.Max <= 0 || u.Current <= 0 {
		return 0
	}
	if u.Current >= u.Max {
		return 1
	}
	return float64(u.Current) / float64(u.Max)
}

// LastAction records the most recent remediation the agent performed.
type LastAction struct {
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemState is the aggregate rendered by the console.
type SystemState struct {
	AgentState   AgentState           `json:"agent_state"`
	Nodes        []InfrastructureNode `json:"nodes"`
	ActiveNodeID string               `json:"active_node_id,omitempty"`
	Thoughts     []Thought            `json:"recent_thoughts"`
	TokenUsage   TokenUsage           `json:"token_usage"`
	LastAction   *LastAction          `json:"last_action,omitempty"`
	CurrentTask  string               `json:"current_task,omitempty"`
	PendingFixes []string             `json:"pending_fixes,omitempty"`
}

// Clone returns a deep copy so readers never share slices with the store.
func (s SystemState) Clone() SystemState {
	out := s
	out.Nodes = make([]InfrastructureNode, len(s.Nodes))
	for i, node := range s.Nodes {
		out.Nodes[i] = node.Clone()
	}
	out.Thoughts = append([]Thought(nil), s.Thoughts...)
	out.PendingFixes = append([]string(nil), s.PendingFixes...)
	if s.LastAction != nil {
		action := *s.LastAction
		out.LastAction = &action
	}
	return out
}

// Node returns the node with the given id.
func (s SystemState) Node(id string) (InfrastructureNode, bool) {
	if id == "" {
		return InfrastructureNode{}, false
	}
	for _, node := range s.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return InfrastructureNode{}, false
}
