// Package simulation drives the state store while no live event source
// is connected: a fixed-cadence ambient loop plus a scripted incident
// sequence (detect, diagnose, fix, recover) that can be triggered on
// demand.
package simulation

import (
	"math/rand"
	"sync"
	"time"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/logging"
	"neurosentinel/internal/sentinel"
	"neurosentinel/internal/store"
)

// Cycle is the ambient agent state schedule, one step per tick.
var Cycle = []sentinel.AgentState{
	sentinel.StateIdle,
	sentinel.StateBreathe,
	sentinel.StateBreathe,
	sentinel.StateBreathe,
	sentinel.StateRapidPulse,
}

// Config tunes the ambient loop.
type Config struct {
	Interval          time.Duration
	ThoughtChance     float64
	KeepThoughts      int
	MaxTokenIncrement int
	TokenMax          int
	TokenCapFraction  float64
}

// DefaultConfig returns the stock cadence.
func DefaultConfig() Config {
	return Config{
		Interval:          3 * time.Second,
		ThoughtChance:     0.3,
		KeepThoughts:      50,
		MaxTokenIncrement: 1000,
		TokenMax:          1000000,
		TokenCapFraction:  0.3,
	}
}

// Engine is the fallback simulator. It is active only while the live
// connection is down.
type Engine struct {
	store  *store.Store
	clock  clock.Clock
	config Config

	mu     sync.Mutex
	rng    *rand.Rand
	active bool
	closed bool
	step   int
	// inIncident suspends the ambient state cycle while a scripted
	// incident owns the agent state.
	inIncident bool

	ticks    *clock.Group
	incident *clock.Group
}

// New returns an inactive engine. Call SetConnected(false) to start it.
func New(s *store.Store, c clock.Clock, config Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(c.Now().UnixNano()))
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.KeepThoughts <= 0 {
		config.KeepThoughts = DefaultConfig().KeepThoughts
	}
	if config.TokenMax <= 0 {
		config.TokenMax = store.DefaultTokenMax
	}
	return &Engine{
		store:    s,
		clock:    c,
		config:   config,
		rng:      rng,
		ticks:    clock.NewGroup(c),
		incident: clock.NewGroup(c),
	}
}

// Active reports whether the ambient loop is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetConnected activates the engine when the live connection is down and
// deactivates it when the connection comes up.
func (e *Engine) SetConnected(connected bool) {
	if connected {
		e.deactivate()
		return
	}
	e.activate()
}

func (e *Engine) activate() {
	e.mu.Lock()
	if e.active || e.closed {
		e.mu.Unlock()
		return
	}
	e.active = true
	e.step = 0
	// Tick scheduling stays under e.mu; see tick.
	e.ticks.After(e.config.Interval, e.tick)
	e.mu.Unlock()

	seed := []sentinel.Thought{
		e.store.NewThought(sentinel.ThoughtSystem, "NEURO-SENTINEL initialized. Awaiting commands.", ""),
		e.store.NewThought(sentinel.ThoughtSystem, "Live link unavailable. Running local simulation.", ""),
	}
	e.store.Update(func(state *sentinel.SystemState) bool {
		state.Thoughts = append(state.Thoughts, seed...)
		state.TokenUsage = sentinel.TokenUsage{Current: 0, Max: e.config.TokenMax}
		return true
	})

	logging.Info().Add(logging.Component("simulation")).Msg("simulation activated")
}

func (e *Engine) deactivate() {
	e.mu.Lock()
	wasActive := e.active
	e.active = false
	e.inIncident = false
	e.mu.Unlock()

	e.ticks.Cancel()
	e.incident.Cancel()
	if wasActive {
		logging.Info().Add(logging.Component("simulation")).Msg("simulation deactivated")
	}
}

// Close stops every timer the engine owns. The engine cannot be
// reactivated afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.active = false
	e.inIncident = false
	e.mu.Unlock()

	e.ticks.Cancel()
	e.incident.Cancel()
}

// tick runs on the ticks group; a cancelled group never reaches it.
func (e *Engine) tick() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	advance := !e.inIncident
	if advance {
		e.step = (e.step + 1) % len(Cycle)
	}
	next := Cycle[e.step]
	var thought *sentinel.Thought
	if e.rng.Float64() < e.config.ThoughtChance {
		synthesized := e.randomThought()
		thought = &synthesized
	}
	increment := 0
	if e.config.MaxTokenIncrement > 0 {
		increment = e.rng.Intn(e.config.MaxTokenIncrement)
	}
	e.mu.Unlock()

	tokenCap := int(float64(e.config.TokenMax) * e.config.TokenCapFraction)
	e.store.Update(func(state *sentinel.SystemState) bool {
		if advance {
			state.AgentState = next
		}
		if thought != nil {
			if overflow := len(state.Thoughts) - e.config.KeepThoughts; overflow > 0 {
				state.Thoughts = append([]sentinel.Thought(nil), state.Thoughts[overflow:]...)
			}
			state.Thoughts = append(state.Thoughts, *thought)
		}
		if grown := state.TokenUsage.Current + increment; grown <= tokenCap {
			state.TokenUsage.Current = grown
		} else if state.TokenUsage.Current < tokenCap {
			state.TokenUsage.Current = tokenCap
		}
		return true
	})

	// Rescheduling under e.mu orders it against deactivate, whose Cancel
	// then sees the new timer.
	e.mu.Lock()
	if e.active {
		e.ticks.After(e.config.Interval, e.tick)
	}
	e.mu.Unlock()
}

// randomThought must be called with e.mu held.
func (e *Engine) randomThought() sentinel.Thought {
	kind := sentinel.ThoughtSystem
	pool := systemPool
	if e.rng.Intn(2) == 1 {
		kind = sentinel.ThoughtReasoning
		pool = reasoningPool
	}
	return e.store.NewThought(kind, pool[e.rng.Intn(len(pool))], "")
}

var systemPool = []string{
	"Heartbeat OK: all monitored nodes reporting.",
	"Telemetry sync complete.",
	"Log shipper backlog drained.",
	"Health probes green across the lattice.",
	"Context cache warmed.",
}

var reasoningPool = []string{
	"Scanning dependency graph for version drift...",
	"Cross-referencing recent deploys with error budget.",
	"Latency on the API tier within baseline.",
	"Reviewing connection pool saturation on the database tier.",
	"No anomalies in the last observation window.",
}
