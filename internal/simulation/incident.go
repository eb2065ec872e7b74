package simulation

import (
	"time"

	"neurosentinel/internal/logging"
	"neurosentinel/internal/sentinel"
)

// DefaultIncidentMessage is the error text used when RunIncident is
// called without one.
const DefaultIncidentMessage = "TypeError: Cannot read property 'user_id' of undefined"

// Incident step offsets from the moment the incident is triggered.
const (
	IncidentDiagnose = 2000 * time.Millisecond
	IncidentAnalyze  = 3500 * time.Millisecond
	IncidentPatch    = 5000 * time.Millisecond
	IncidentResolve  = 6500 * time.Millisecond
	IncidentRecover  = 9000 * time.Millisecond
)

// RunIncident plays the scripted detect, diagnose, fix, recover sequence
// against nodeID. The first step is applied before RunIncident returns;
// the rest run on the engine's incident timers. A second call cancels
// the sequence in progress and starts over. Unknown node ids still drive
// the agent state but touch no node.
func (e *Engine) RunIncident(nodeID, message string) {
	e.incident.Cancel()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.inIncident = true
	e.mu.Unlock()

	if message == "" {
		message = DefaultIncidentMessage
	}
	logging.Info().
		Add(logging.Component("simulation")).
		Add(logging.Event("incident")).
		Add(logging.NodeID(nodeID)).
		Msg("incident sequence started")

	detected := e.store.NewThought(sentinel.ThoughtError, "Error detected in production! "+message, "")
	e.store.Update(func(state *sentinel.SystemState) bool {
		state.AgentState = sentinel.StateStrobeRed
		state.ActiveNodeID = nodeID
		setNodeStatus(state, nodeID, sentinel.StatusError)
		state.Thoughts = append(state.Thoughts, detected)
		return true
	})

	e.incident.After(IncidentDiagnose, func() {
		thought := e.store.NewThought(sentinel.ThoughtReasoning, "Analyzing stack trace in 1M token context...", "")
		e.store.Update(func(state *sentinel.SystemState) bool {
			state.AgentState = sentinel.StateRapidPulse
			state.Thoughts = append(state.Thoughts, thought)
			return true
		})
	})

	e.incident.After(IncidentAnalyze, func() {
		e.store.AppendThought(e.store.NewThought(sentinel.ThoughtReasoning,
			"Root cause isolated: missing null check before accessing user_id.", ""))
	})

	e.incident.After(IncidentPatch, func() {
		e.store.AppendThought(e.store.NewThought(sentinel.ThoughtAction,
			"Generating patch and running regression suite...", ""))
	})

	e.incident.After(IncidentResolve, func() {
		now := e.clock.Now()
		e.store.Update(func(state *sentinel.SystemState) bool {
			target := nodeID
			if node, ok := state.Node(nodeID); ok && node.Name != "" {
				target = node.Name
			}
			state.AgentState = sentinel.StateSuccess
			setNodeStatus(state, nodeID, sentinel.StatusHealthy)
			state.Thoughts = append(state.Thoughts,
				e.store.NewThought(sentinel.ThoughtAction, "Patch applied to "+target+". Service restored.", ""))
			state.LastAction = &sentinel.LastAction{Type: "PATCH", Target: target, Timestamp: now}
			return true
		})
	})

	e.incident.After(IncidentRecover, func() {
		e.mu.Lock()
		e.inIncident = false
		e.mu.Unlock()
		e.store.Update(func(state *sentinel.SystemState) bool {
			state.AgentState = sentinel.StateBreathe
			state.ActiveNodeID = ""
			return true
		})
		logging.Info().
			Add(logging.Component("simulation")).
			Add(logging.Event("incident")).
			Add(logging.NodeID(nodeID)).
			Msg("incident sequence finished")
	})
}

// CancelIncident drops any incident steps that have not run yet.
func (e *Engine) CancelIncident() {
	e.incident.Cancel()
	e.mu.Lock()
	e.inIncident = false
	e.mu.Unlock()
}

// IncidentPending reports whether incident steps are still scheduled.
func (e *Engine) IncidentPending() bool {
	return e.incident.Pending() > 0
}

func setNodeStatus(state *sentinel.SystemState, id string, status sentinel.NodeStatus) {
	for i := range state.Nodes {
		if state.Nodes[i].ID == id {
			state.Nodes[i].Status = status
			return
		}
	}
}
