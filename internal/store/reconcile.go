package store

import (
	"neurosentinel/internal/sentinel"
)

// ApplyAgentState handles an agent_state event. The state is always
// overwritten. Thought text becomes an error thought under STROBE_RED and
// a reasoning thought otherwise. Only the first affected node is
// highlighted.
func (s *Store) ApplyAgentState(update sentinel.AgentStateUpdate) {
	var thought *sentinel.Thought
	if update.Thought != "" {
		kind := sentinel.ThoughtReasoning
		if update.State == sentinel.StateStrobeRed {
			kind = sentinel.ThoughtError
		}
		synthesized := s.NewThought(kind, update.Thought, update.Signature)
		if update.Timestamp != nil && !update.Timestamp.IsZero() {
			synthesized.Timestamp = *update.Timestamp
		}
		thought = &synthesized
	}

	s.Update(func(state *sentinel.SystemState) bool {
		state.AgentState = update.State
		if thought != nil {
			state.Thoughts = append(state.Thoughts, *thought)
		}
		if len(update.AffectedNodes) > 0 {
			state.ActiveNodeID = update.AffectedNodes[0]
		}
		return true
	})
}

// AppendThought handles a thought_update event. Duplicates are kept.
func (s *Store) AppendThought(thought sentinel.Thought) {
	s.Update(func(state *sentinel.SystemState) bool {
		state.Thoughts = append(state.Thoughts, thought)
		return true
	})
}

// ReplaceNode handles a node_update event. Nodes are never inserted at
// runtime; an update for an unknown id or with a non-finite position is
// dropped and false is returned.
func (s *Store) ReplaceNode(node sentinel.InfrastructureNode) bool {
	if !node.Position.Finite() {
		return false
	}
	replaced := false
	s.Update(func(state *sentinel.SystemState) bool {
		for i := range state.Nodes {
			if state.Nodes[i].ID == node.ID {
				state.Nodes[i] = node.Clone()
				replaced = true
				return true
			}
		}
		return false
	})
	return replaced
}

// ApplySnapshot handles a system_state event with partial snapshot
// semantics: agent state, active node and token usage always win; empty
// collections and absent optional fields leave the current value alone.
func (s *Store) ApplySnapshot(snapshot sentinel.SystemState) {
	incoming := snapshot.Clone()
	s.Update(func(state *sentinel.SystemState) bool {
		state.AgentState = incoming.AgentState
		state.ActiveNodeID = incoming.ActiveNodeID
		state.TokenUsage = incoming.TokenUsage
		if nodes := finiteNodes(incoming.Nodes); len(nodes) > 0 {
			state.Nodes = nodes
		}
		if len(incoming.Thoughts) > 0 {
			state.Thoughts = incoming.Thoughts
		}
		if incoming.LastAction != nil {
			state.LastAction = incoming.LastAction
		}
		if incoming.CurrentTask != "" {
			state.CurrentTask = incoming.CurrentTask
		}
		if len(incoming.PendingFixes) > 0 {
			state.PendingFixes = incoming.PendingFixes
		}
		return true
	})
}

// finiteNodes drops nodes whose position cannot be drawn.
func finiteNodes(nodes []sentinel.InfrastructureNode) []sentinel.InfrastructureNode {
	out := nodes[:0]
	for _, node := range nodes {
		if node.Position.Finite() {
			out = append(out, node)
		}
	}
	return out
}

// AddFixProposal records a pending fix by id.
func (s *Store) AddFixProposal(proposal sentinel.FixProposal) {
	if proposal.ID == "" {
		return
	}
	s.Update(func(state *sentinel.SystemState) bool {
		for _, id := range state.PendingFixes {
			if id == proposal.ID {
				return false
			}
		}
		state.PendingFixes = append(state.PendingFixes, proposal.ID)
		return true
	})
}
