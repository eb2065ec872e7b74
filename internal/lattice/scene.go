// Package lattice turns the node set of a snapshot into a rotating 3D
// scene drawn on a character canvas.
package lattice

import (
	"math"
	"time"

	"neurosentinel/internal/presentation"
	"neurosentinel/internal/sentinel"
)

// BaseSize returns the relative radius of a node by kind.
func BaseSize(kind sentinel.NodeKind) float64 {
	switch kind {
	case sentinel.KindService:
		return 1.0
	case sentinel.KindDatabase:
		return 0.85
	case sentinel.KindAPI:
		return 0.7
	case sentinel.KindFile:
		return 0.55
	}
	return 0.45
}

// Glow returns the node color. Checks run in priority order and the first
// match wins.
func Glow(node sentinel.InfrastructureNode, state sentinel.AgentState) string {
	switch {
	case node.Status == sentinel.StatusError || state == sentinel.StateStrobeRed:
		return presentation.Red
	case node.Status == sentinel.StatusProcessing || state == sentinel.StateRapidPulse:
		return presentation.White
	case node.Status == sentinel.StatusWarning:
		return presentation.Amber
	case state == sentinel.StateSuccess:
		return presentation.Green
	}
	return presentation.Accent
}

// Pulse returns the glow intensity in [0,1] for state at elapsed time t
// on the shared animation clock.
func Pulse(state sentinel.AgentState, t time.Duration) float64 {
	style := presentation.ForState(state)
	switch style.Animation {
	case presentation.AnimationNone:
		return 0.55
	case presentation.AnimationStatic:
		return 1
	case presentation.AnimationStrobe:
		// Square wave.
		if math.Sin(2*math.Pi*style.PulseHz*t.Seconds()) >= 0 {
			return 1
		}
		return 0.25
	}
	phase := math.Sin(2 * math.Pi * style.PulseHz * t.Seconds())
	return 0.6 + 0.4*(phase+1)/2
}

// NodeView is a node prepared for drawing.
type NodeView struct {
	Node   sentinel.InfrastructureNode
	Size   float64
	Color  string
	Active bool
}

// Link is a resolved connection between two drawn nodes.
type Link struct {
	From, To string
	A, B     sentinel.Vec3
	Active   bool
	Color    string
}

// Scene is everything the renderer needs from one snapshot.
type Scene struct {
	State sentinel.AgentState
	Nodes []NodeView
	Links []Link
}

// Build derives the scene from a snapshot. A dangling active node id
// highlights nothing.
func Build(state sentinel.SystemState) Scene {
	scene := Scene{State: state.AgentState}
	scene.Nodes = make([]NodeView, 0, len(state.Nodes))
	for _, node := range state.Nodes {
		scene.Nodes = append(scene.Nodes, NodeView{
			Node:   node,
			Size:   BaseSize(node.Kind),
			Color:  Glow(node, state.AgentState),
			Active: node.ID != "" && node.ID == state.ActiveNodeID,
		})
	}
	scene.Links = ResolveLinks(state.Nodes, state.ActiveNodeID, state.AgentState)
	return scene
}

// ResolveLinks expands every node's connection list into drawable links.
// Targets that are not in nodes and self references are skipped. A pair
// listed in both directions is drawn once, in the order first seen.
func ResolveLinks(nodes []sentinel.InfrastructureNode, activeID string, state sentinel.AgentState) []Link {
	byID := make(map[string]sentinel.InfrastructureNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	type pair struct{ a, b string }
	drawn := make(map[pair]struct{})
	var links []Link
	for _, node := range nodes {
		for _, target := range node.Connections {
			other, ok := byID[target]
			if !ok || target == node.ID {
				continue
			}
			key := pair{node.ID, target}
			if key.b < key.a {
				key = pair{target, node.ID}
			}
			if _, seen := drawn[key]; seen {
				continue
			}
			drawn[key] = struct{}{}

			active := activeID != "" && (node.ID == activeID || target == activeID)
			links = append(links, Link{
				From:   node.ID,
				To:     target,
				A:      node.Position,
				B:      other.Position,
				Active: active,
				Color:  LinkColor(active, state),
			})
		}
	}
	return links
}

// LinkColor returns the connection color. Incident and resolution states
// override the active highlight.
func LinkColor(active bool, state sentinel.AgentState) string {
	switch {
	case state == sentinel.StateStrobeRed:
		return presentation.Red
	case state == sentinel.StateSuccess:
		return presentation.Green
	case active:
		return presentation.Accent
	}
	return presentation.Gray
}
