package store

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/sentinel"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testNodes() []sentinel.InfrastructureNode {
	return []sentinel.InfrastructureNode{
		{ID: "api", Name: "core/api.py", Kind: sentinel.KindAPI, Status: sentinel.StatusHealthy, Connections: []string{"db"}},
		{ID: "db", Name: "users-db", Kind: sentinel.KindDatabase, Status: sentinel.StatusHealthy},
	}
}

func newTestStore() *Store {
	return New(clock.Fake(epoch), testNodes())
}

func TestNewStartsFromInitialSnapshot(t *testing.T) {
	s := newTestStore()
	state, version := s.Snapshot()
	if version != 0 {
		t.Fatalf("expected version 0, got %d", version)
	}
	if state.AgentState != sentinel.StateIdle {
		t.Fatalf("expected IDLE, got %s", state.AgentState)
	}
	if len(state.Thoughts) != 0 || len(state.Nodes) != 2 {
		t.Fatalf("unexpected initial state: %+v", state)
	}
	if state.TokenUsage != (sentinel.TokenUsage{Current: 0, Max: DefaultTokenMax}) {
		t.Fatalf("unexpected token usage %+v", state.TokenUsage)
	}
}

func TestApplyAgentStateSynthesizesThought(t *testing.T) {
	tests := []struct {
		name     string
		update   sentinel.AgentStateUpdate
		wantKind sentinel.ThoughtKind
		wantLen  int
	}{
		{"reasoning", sentinel.AgentStateUpdate{State: sentinel.StateRapidPulse, Thought: "tracing"}, sentinel.ThoughtReasoning, 1},
		{"error under strobe", sentinel.AgentStateUpdate{State: sentinel.StateStrobeRed, Thought: "crash"}, sentinel.ThoughtError, 1},
		{"no text", sentinel.AgentStateUpdate{State: sentinel.StateSuccess}, "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore()
			s.ApplyAgentState(tc.update)
			state, _ := s.Snapshot()
			if state.AgentState != tc.update.State {
				t.Fatalf("state not overwritten: %s", state.AgentState)
			}
			if len(state.Thoughts) != tc.wantLen {
				t.Fatalf("expected %d thoughts, got %d", tc.wantLen, len(state.Thoughts))
			}
			if tc.wantLen > 0 && state.Thoughts[0].Kind != tc.wantKind {
				t.Fatalf("expected kind %s, got %s", tc.wantKind, state.Thoughts[0].Kind)
			}
		})
	}
}

func TestApplyAgentStateHighlightsFirstAffectedNode(t *testing.T) {
	s := newTestStore()
	s.ApplyAgentState(sentinel.AgentStateUpdate{
		State:         sentinel.StateRapidPulse,
		Thought:       "checking",
		Signature:     "SIG-A1B2",
		AffectedNodes: []string{"db", "api"},
	})
	state, _ := s.Snapshot()
	if state.ActiveNodeID != "db" {
		t.Fatalf("expected first affected node, got %q", state.ActiveNodeID)
	}
	if state.Thoughts[0].Signature != "SIG-A1B2" {
		t.Fatalf("signature not carried: %+v", state.Thoughts[0])
	}

	s.ApplyAgentState(sentinel.AgentStateUpdate{State: sentinel.StateBreathe})
	state, _ = s.Snapshot()
	if state.ActiveNodeID != "db" {
		t.Fatalf("absent affectedNodes must not clear the highlight, got %q", state.ActiveNodeID)
	}
}

func TestApplyAgentStateUsesFrameTimestamp(t *testing.T) {
	s := newTestStore()
	stamp := epoch.Add(-time.Hour)
	s.ApplyAgentState(sentinel.AgentStateUpdate{State: sentinel.StateBreathe, Thought: "hi", Timestamp: &stamp})
	state, _ := s.Snapshot()
	if !state.Thoughts[0].Timestamp.Equal(stamp) {
		t.Fatalf("expected frame timestamp, got %s", state.Thoughts[0].Timestamp)
	}
}

func TestAppendThoughtKeepsDuplicates(t *testing.T) {
	s := newTestStore()
	thought := sentinel.Thought{ID: "t-1", Kind: sentinel.ThoughtAction, Content: "patch"}
	s.AppendThought(thought)
	s.AppendThought(thought)
	state, _ := s.Snapshot()
	if len(state.Thoughts) != 2 {
		t.Fatalf("expected duplicate to be kept, got %d thoughts", len(state.Thoughts))
	}
}

func TestThoughtLogIsBounded(t *testing.T) {
	s := newTestStore()
	for i := 0; i < MaxThoughts+25; i++ {
		s.AppendThought(sentinel.Thought{ID: fmt.Sprintf("t-%d", i)})
	}
	state, _ := s.Snapshot()
	if len(state.Thoughts) != MaxThoughts {
		t.Fatalf("expected %d thoughts, got %d", MaxThoughts, len(state.Thoughts))
	}
	if state.Thoughts[0].ID != "t-25" {
		t.Fatalf("expected oldest entries dropped, first=%s", state.Thoughts[0].ID)
	}
}

func TestReplaceNode(t *testing.T) {
	s := newTestStore()
	updated := testNodes()[1]
	updated.Status = sentinel.StatusError
	updated.Connections = []string{"api"}
	if !s.ReplaceNode(updated) {
		t.Fatalf("expected known node to be replaced")
	}
	state, _ := s.Snapshot()
	node, _ := state.Node("db")
	if node.Status != sentinel.StatusError || len(node.Connections) != 1 {
		t.Fatalf("node not replaced wholesale: %+v", node)
	}
}

func TestReplaceNodeUnknownIDIsDropped(t *testing.T) {
	s := newTestStore()
	before, version := s.Snapshot()
	if s.ReplaceNode(sentinel.InfrastructureNode{ID: "ghost", Status: sentinel.StatusError}) {
		t.Fatalf("unknown node must not be inserted")
	}
	after, afterVersion := s.Snapshot()
	if !reflect.DeepEqual(before.Nodes, after.Nodes) {
		t.Fatalf("node set changed: %+v", after.Nodes)
	}
	if afterVersion != version {
		t.Fatalf("dropped update must not bump version")
	}
}

func TestNonFinitePositionsAreDropped(t *testing.T) {
	s := newTestStore()
	broken := testNodes()[1]
	broken.Status = sentinel.StatusError
	broken.Position = sentinel.Vec3{math.NaN(), 0, 0}
	if s.ReplaceNode(broken) {
		t.Fatalf("node with a NaN position must be dropped")
	}
	state, _ := s.Snapshot()
	if node, _ := state.Node("db"); node.Status != sentinel.StatusHealthy {
		t.Fatalf("dropped update changed the node: %+v", node)
	}

	s.ApplySnapshot(sentinel.SystemState{
		AgentState: sentinel.StateIdle,
		Nodes: []sentinel.InfrastructureNode{
			{ID: "api", Position: sentinel.Vec3{1, 2, 3}},
			{ID: "far", Position: sentinel.Vec3{0, math.Inf(1), 0}},
		},
	})
	state, _ = s.Snapshot()
	if len(state.Nodes) != 1 || state.Nodes[0].ID != "api" {
		t.Fatalf("expected only the finite node to survive, got %+v", state.Nodes)
	}
}

func TestApplySnapshotPartialSemantics(t *testing.T) {
	s := newTestStore()
	s.AppendThought(sentinel.Thought{ID: "keep"})
	s.Update(func(state *sentinel.SystemState) bool {
		state.LastAction = &sentinel.LastAction{Type: "PATCH", Target: "core/api.py"}
		state.CurrentTask = "watching"
		return true
	})
	before, _ := s.Snapshot()

	s.ApplySnapshot(sentinel.SystemState{
		AgentState: sentinel.StateBreathe,
		TokenUsage: sentinel.TokenUsage{Current: 10, Max: 100},
	})
	after, _ := s.Snapshot()

	if after.AgentState != sentinel.StateBreathe || after.TokenUsage.Current != 10 {
		t.Fatalf("always-overwritten fields not applied: %+v", after)
	}
	if after.ActiveNodeID != "" {
		t.Fatalf("active node must be overwritten even when empty")
	}
	if !reflect.DeepEqual(before.Nodes, after.Nodes) {
		t.Fatalf("empty node list erased nodes")
	}
	if len(after.Thoughts) != 1 || after.Thoughts[0].ID != "keep" {
		t.Fatalf("empty thought list erased history: %+v", after.Thoughts)
	}
	if after.LastAction == nil || after.LastAction.Type != "PATCH" {
		t.Fatalf("absent lastAction erased the previous one")
	}
	if after.CurrentTask != "watching" {
		t.Fatalf("absent current task erased the previous one")
	}
}

func TestApplySnapshotOverwritesNonEmptyCollections(t *testing.T) {
	s := newTestStore()
	s.AppendThought(sentinel.Thought{ID: "old"})
	s.ApplySnapshot(sentinel.SystemState{
		AgentState:   sentinel.StateRapidPulse,
		ActiveNodeID: "api",
		Nodes:        []sentinel.InfrastructureNode{{ID: "solo", Kind: sentinel.KindService}},
		Thoughts:     []sentinel.Thought{{ID: "new-1"}, {ID: "new-2"}},
		LastAction:   &sentinel.LastAction{Type: "DEPLOY"},
		PendingFixes: []string{"fix-1"},
	})
	state, _ := s.Snapshot()
	if len(state.Nodes) != 1 || state.Nodes[0].ID != "solo" {
		t.Fatalf("nodes not replaced: %+v", state.Nodes)
	}
	if len(state.Thoughts) != 2 || state.Thoughts[0].ID != "new-1" {
		t.Fatalf("thoughts not replaced: %+v", state.Thoughts)
	}
	if state.LastAction.Type != "DEPLOY" || len(state.PendingFixes) != 1 {
		t.Fatalf("optional fields not applied: %+v", state)
	}
	if state.ActiveNodeID != "api" {
		t.Fatalf("expected dangling-safe active id to be stored, got %q", state.ActiveNodeID)
	}
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	snapshot := sentinel.SystemState{
		AgentState:   sentinel.StateBreathe,
		ActiveNodeID: "db",
		Nodes:        testNodes(),
		Thoughts:     []sentinel.Thought{{ID: "a", Content: "one"}},
		TokenUsage:   sentinel.TokenUsage{Current: 5, Max: 10},
	}
	s := newTestStore()
	s.ApplySnapshot(snapshot)
	once, _ := s.Snapshot()
	s.ApplySnapshot(snapshot)
	twice, _ := s.Snapshot()
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second application changed state:\n%+v\n%+v", once, twice)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore()
	state, _ := s.Snapshot()
	state.Nodes[0].Connections[0] = "mutated"
	state.Nodes[0].Status = sentinel.StatusError

	fresh, _ := s.Snapshot()
	if fresh.Nodes[0].Connections[0] != "db" || fresh.Nodes[0].Status != sentinel.StatusHealthy {
		t.Fatalf("snapshot shares memory with the store")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestStore()
	var seen []uint64
	token := s.Subscribe(func(version uint64) { seen = append(seen, version) })

	s.AppendThought(sentinel.Thought{ID: "1"})
	s.AppendThought(sentinel.Thought{ID: "2"})
	s.Unsubscribe(token)
	s.AppendThought(sentinel.Thought{ID: "3"})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected notifications %v", seen)
	}
	s.Unsubscribe(token)
}

func TestResetRestoresInitialSnapshot(t *testing.T) {
	s := newTestStore()
	s.ApplyAgentState(sentinel.AgentStateUpdate{State: sentinel.StateStrobeRed, Thought: "boom", AffectedNodes: []string{"api"}})
	s.AddFixProposal(sentinel.FixProposal{ID: "fix-1"})
	s.Reset()
	state, _ := s.Snapshot()
	if state.AgentState != sentinel.StateIdle || len(state.Thoughts) != 0 || state.ActiveNodeID != "" || len(state.PendingFixes) != 0 {
		t.Fatalf("reset left session data behind: %+v", state)
	}
}

func TestClosedStoreIgnoresMutations(t *testing.T) {
	s := newTestStore()
	notified := false
	s.Subscribe(func(uint64) { notified = true })
	s.Close()
	s.ApplyAgentState(sentinel.AgentStateUpdate{State: sentinel.StateStrobeRed})
	if s.AgentState() != sentinel.StateIdle {
		t.Fatalf("closed store accepted a mutation")
	}
	if notified {
		t.Fatalf("listener notified after Close")
	}
}

func TestAddFixProposalDeduplicates(t *testing.T) {
	s := newTestStore()
	s.AddFixProposal(sentinel.FixProposal{ID: "fix-1"})
	s.AddFixProposal(sentinel.FixProposal{ID: "fix-1"})
	s.AddFixProposal(sentinel.FixProposal{})
	state, _ := s.Snapshot()
	if len(state.PendingFixes) != 1 {
		t.Fatalf("expected one pending fix, got %v", state.PendingFixes)
	}
}
