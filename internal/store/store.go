// Package store holds the single mutable source of truth for a console
// session and applies the reconciliation rules for inbound events.
//
// Every mutation runs under one lock, so renderers reading Snapshot never
// observe a half-applied event. Change listeners are invoked after the
// lock is released.
package store

import (
	"sync"

	"github.com/google/uuid"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/sentinel"
)

// MaxThoughts bounds the thought log held in memory.
const MaxThoughts = 100

// DefaultTokenMax is the context window size reported before any
// snapshot arrives.
const DefaultTokenMax = 1000000

// Token identifies a change listener.
type Token uint64

// Store is the session state. The zero value is not usable; use New.
type Store struct {
	clock clock.Clock

	mu           sync.RWMutex
	state        sentinel.SystemState
	defaultNodes []sentinel.InfrastructureNode
	version      uint64
	closed       bool

	listenerMu sync.Mutex
	nextToken  Token
	listeners  map[Token]func(version uint64)
}

// New returns a store reset to the initial snapshot built from
// defaultNodes.
func New(c clock.Clock, defaultNodes []sentinel.InfrastructureNode) *Store {
	s := &Store{
		clock:     c,
		listeners: make(map[Token]func(uint64)),
	}
	s.defaultNodes = cloneNodes(defaultNodes)
	s.state = s.initialState()
	return s
}

// initialState is the snapshot a fresh session starts from.
func (s *Store) initialState() sentinel.SystemState {
	return sentinel.SystemState{
		AgentState: sentinel.StateIdle,
		Nodes:      cloneNodes(s.defaultNodes),
		Thoughts:   []sentinel.Thought{},
		TokenUsage: sentinel.TokenUsage{Current: 0, Max: DefaultTokenMax},
	}
}

// Reset discards the session and returns to the initial snapshot.
func (s *Store) Reset() {
	s.mutate(func(state *sentinel.SystemState) bool {
		*state = s.initialState()
		return true
	})
}

// Snapshot returns a deep copy of the current state and its version.
func (s *Store) Snapshot() (sentinel.SystemState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), s.version
}

// AgentState returns the current agent state label.
func (s *Store) AgentState() sentinel.AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AgentState
}

// Version increments on every applied change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn to be called with the new version after every
// change. fn runs on the goroutine that applied the change and must not
// block.
func (s *Store) Subscribe(fn func(version uint64)) Token {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.nextToken++
	s.listeners[s.nextToken] = fn
	return s.nextToken
}

// Unsubscribe removes a listener. Unknown tokens are ignored.
func (s *Store) Unsubscribe(token Token) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	delete(s.listeners, token)
}

// Close drops all listeners and makes every later mutation a no-op, so
// callbacks that outlive the session cannot touch a retired store.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.listenerMu.Lock()
	s.listeners = make(map[Token]func(uint64))
	s.listenerMu.Unlock()
}

// Update applies fn atomically. fn reports whether it changed anything.
func (s *Store) Update(fn func(state *sentinel.SystemState) bool) {
	s.mutate(func(state *sentinel.SystemState) bool {
		changed := fn(state)
		trimThoughts(state)
		return changed
	})
}

func (s *Store) mutate(fn func(state *sentinel.SystemState) bool) {
	s.mu.Lock()
	if s.closed || !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	s.version++
	version := s.version
	s.mu.Unlock()

	s.listenerMu.Lock()
	listeners := make([]func(uint64), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenerMu.Unlock()

	for _, listener := range listeners {
		listener(version)
	}
}

// NewThought builds a thought stamped with the store's clock.
func (s *Store) NewThought(kind sentinel.ThoughtKind, content, signature string) sentinel.Thought {
	return sentinel.Thought{
		ID:        "thought-" + uuid.NewString(),
		Timestamp: s.clock.Now(),
		Kind:      kind,
		Content:   content,
		Signature: signature,
	}
}

func trimThoughts(state *sentinel.SystemState) {
	if overflow := len(state.Thoughts) - MaxThoughts; overflow > 0 {
		state.Thoughts = append([]sentinel.Thought(nil), state.Thoughts[overflow:]...)
	}
}

func cloneNodes(nodes []sentinel.InfrastructureNode) []sentinel.InfrastructureNode {
	out := make([]sentinel.InfrastructureNode, len(nodes))
	for i, node := range nodes {
		out[i] = node.Clone()
	}
	return out
}
