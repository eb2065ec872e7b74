// Package ingest connects the console to the agent backend. It decodes
// the inbound event stream into typed payloads, fans them out to
// subscribers, and sends the few outbound requests the console issues.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"neurosentinel/internal/sentinel"
)

// ErrUnknownEvent is returned by Dispatch for an event name the router
// does not decode.
var ErrUnknownEvent = errors.New("unknown event")

// Token identifies a subscription.
type Token uint64

// Envelope is one wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire frame for event with payload as data.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Router holds typed subscriptions and dispatches decoded frames to
// them. Handlers run on the dispatching goroutine, outside the router
// lock, in no particular order.
type Router struct {
	mu         sync.RWMutex
	next       Token
	agentState map[Token]func(sentinel.AgentStateUpdate)
	thoughts   map[Token]func(sentinel.Thought)
	nodes      map[Token]func(sentinel.InfrastructureNode)
	snapshots  map[Token]func(sentinel.SystemState)
	fixes      map[Token]func(sentinel.FixProposal)
	connection map[Token]func(bool)
}

// NewRouter returns a router with no subscriptions.
func NewRouter() *Router {
	return &Router{
		agentState: make(map[Token]func(sentinel.AgentStateUpdate)),
		thoughts:   make(map[Token]func(sentinel.Thought)),
		nodes:      make(map[Token]func(sentinel.InfrastructureNode)),
		snapshots:  make(map[Token]func(sentinel.SystemState)),
		fixes:      make(map[Token]func(sentinel.FixProposal)),
		connection: make(map[Token]func(bool)),
	}
}

func (r *Router) token() Token {
	r.next++
	return r.next
}

// OnAgentState subscribes to agent_state events.
func (r *Router) OnAgentState(fn func(sentinel.AgentStateUpdate)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.agentState[t] = fn
	return t
}

// OnThoughtUpdate subscribes to thought_update events.
func (r *Router) OnThoughtUpdate(fn func(sentinel.Thought)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.thoughts[t] = fn
	return t
}

// OnNodeUpdate subscribes to node_update events.
func (r *Router) OnNodeUpdate(fn func(sentinel.InfrastructureNode)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.nodes[t] = fn
	return t
}

// OnSystemState subscribes to system_state events.
func (r *Router) OnSystemState(fn func(sentinel.SystemState)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.snapshots[t] = fn
	return t
}

// OnFixProposal subscribes to fix_proposal events.
func (r *Router) OnFixProposal(fn func(sentinel.FixProposal)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.fixes[t] = fn
	return t
}

// OnConnection subscribes to link up/down changes.
func (r *Router) OnConnection(fn func(connected bool)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.token()
	r.connection[t] = fn
	return t
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (r *Router) Unsubscribe(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agentState, t)
	delete(r.thoughts, t)
	delete(r.nodes, t)
	delete(r.snapshots, t)
	delete(r.fixes, t)
	delete(r.connection, t)
}

// Dispatch decodes one frame and delivers it. Frames that cannot be
// decoded are rejected before any handler runs.
func (r *Router) Dispatch(frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case sentinel.EventAgentState:
		var payload sentinel.AgentStateUpdate
		if err := decode(env, &payload); err != nil {
			return err
		}
		r.mu.RLock()
		handlers := collect(r.agentState)
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(payload)
		}
	case sentinel.EventThoughtUpdate:
		var payload sentinel.Thought
		if err := decode(env, &payload); err != nil {
			return err
		}
		r.mu.RLock()
		handlers := collect(r.thoughts)
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(payload)
		}
	case sentinel.EventNodeUpdate:
		var payload sentinel.InfrastructureNode
		if err := decode(env, &payload); err != nil {
			return err
		}
		r.mu.RLock()
		handlers := collect(r.nodes)
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(payload)
		}
	case sentinel.EventSystemState:
		var payload sentinel.SystemState
		if err := decode(env, &payload); err != nil {
			return err
		}
		r.mu.RLock()
		handlers := collect(r.snapshots)
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(payload)
		}
	case sentinel.EventFixProposal:
		var payload sentinel.FixProposal
		if err := decode(env, &payload); err != nil {
			return err
		}
		r.mu.RLock()
		handlers := collect(r.fixes)
		r.mu.RUnlock()
		for _, fn := range handlers {
			fn(payload)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return nil
}

func (r *Router) notifyConnection(connected bool) {
	r.mu.RLock()
	handlers := collect(r.connection)
	r.mu.RUnlock()
	for _, fn := range handlers {
		fn(connected)
	}
}

func decode(env Envelope, out any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: empty payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return nil
}

func collect[T any](handlers map[Token]T) []T {
	out := make([]T, 0, len(handlers))
	for _, fn := range handlers {
		out = append(out, fn)
	}
	return out
}
