package main

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/ingest"
	"neurosentinel/internal/logging"
	"neurosentinel/internal/sentinel"
	"neurosentinel/internal/simulation"
	"neurosentinel/internal/store"
)

var errOffline = errors.New("backend not connected")

// eventSource is the live backend as the session uses it.
type eventSource interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	RequestState() error
	TriggerAnalysis(target string) error
	SimulateError(nodeID, message string) error

	OnAgentState(fn func(sentinel.AgentStateUpdate)) ingest.Token
	OnThoughtUpdate(fn func(sentinel.Thought)) ingest.Token
	OnNodeUpdate(fn func(sentinel.InfrastructureNode)) ingest.Token
	OnSystemState(fn func(sentinel.SystemState)) ingest.Token
	OnFixProposal(fn func(sentinel.FixProposal)) ingest.Token
	OnConnection(fn func(connected bool)) ingest.Token
	Unsubscribe(token ingest.Token)
}

type storeChangedMsg struct{ version uint64 }

type linkMsg struct{ connected bool }

type tagExpiredMsg struct{}

// session owns the store, the simulator and the backend link, and
// forwards every change to the UI through inbound.
type session struct {
	clock        clock.Clock
	store        *store.Store
	sim          *simulation.Engine
	source       eventSource
	incidentNode string
	offline      bool

	inbound    chan tea.Msg
	tokens     []ingest.Token
	storeToken store.Token

	fixMu     sync.Mutex
	latestFix *sentinel.FixProposal

	closing   atomic.Bool
	closeOnce sync.Once
}

func newSession(c clock.Clock, source eventSource, nodes []sentinel.InfrastructureNode, cfg appConfig) *session {
	st := store.New(c, nodes)
	s := &session{
		clock:        c,
		store:        st,
		sim:          simulation.New(st, c, simulation.DefaultConfig(), rand.New(rand.NewSource(cfg.seed))),
		source:       source,
		incidentNode: cfg.incidentNode,
		offline:      cfg.offline,
		inbound:      make(chan tea.Msg, 256),
	}

	s.storeToken = st.Subscribe(func(version uint64) {
		s.send(storeChangedMsg{version: version})
	})
	s.tokens = append(s.tokens,
		source.OnAgentState(st.ApplyAgentState),
		source.OnThoughtUpdate(st.AppendThought),
		source.OnNodeUpdate(func(node sentinel.InfrastructureNode) {
			if !st.ReplaceNode(node) {
				logging.Debug().
					Add(logging.Component("session")).
					Add(logging.NodeID(node.ID)).
					Msg("node update for unknown id dropped")
			}
		}),
		source.OnSystemState(st.ApplySnapshot),
		source.OnFixProposal(func(fix sentinel.FixProposal) {
			s.fixMu.Lock()
			latest := fix
			s.latestFix = &latest
			s.fixMu.Unlock()
			st.AddFixProposal(fix)
		}),
		source.OnConnection(s.handleConnection),
	)
	return s
}

// send delivers msg to the UI without blocking; a full inbox drops it.
func (s *session) send(msg tea.Msg) {
	select {
	case s.inbound <- msg:
	default:
	}
}

// Start runs the simulator until the backend answers and starts the
// connection loop.
func (s *session) Start(ctx context.Context) {
	s.sim.SetConnected(false)
	if s.offline {
		return
	}
	if err := s.source.Connect(ctx); err != nil {
		logging.Error().
			Add(logging.Component("session")).
			Add(logging.ErrorField(err)).
			Msg("connect failed")
	}
}

func (s *session) handleConnection(connected bool) {
	if s.closing.Load() {
		return
	}
	logging.Info().
		Add(logging.Component("session")).
		Add(logging.Connected(connected)).
		Msg("link changed")
	if connected {
		s.sim.CancelIncident()
		s.sim.SetConnected(true)
		s.store.Reset()
		s.fixMu.Lock()
		s.latestFix = nil
		s.fixMu.Unlock()
		if err := s.source.RequestState(); err != nil {
			logging.Warn().
				Add(logging.Component("session")).
				Add(logging.ErrorField(err)).
				Msg("initial state request failed")
		}
	} else {
		s.sim.SetConnected(false)
	}
	s.send(linkMsg{connected: connected})
}

// Connected reports whether the live backend drives the store.
func (s *session) Connected() bool {
	return s.source.Connected()
}

// SimulateError stages an incident on the backend when live and runs the
// local incident sequence otherwise. It reports which one ran.
func (s *session) SimulateError() (live bool, err error) {
	if s.source.Connected() {
		return true, s.source.SimulateError(s.incidentNode, simulation.DefaultIncidentMessage)
	}
	s.sim.RunIncident(s.incidentNode, "")
	return false, nil
}

// TriggerAnalysis asks the backend to analyze target.
func (s *session) TriggerAnalysis(target string) error {
	if !s.source.Connected() {
		return errOffline
	}
	return s.source.TriggerAnalysis(target)
}

// RequestState asks the backend for a fresh snapshot.
func (s *session) RequestState() error {
	if !s.source.Connected() {
		return errOffline
	}
	return s.source.RequestState()
}

// Snapshot returns the current state.
func (s *session) Snapshot() (sentinel.SystemState, uint64) {
	return s.store.Snapshot()
}

// LatestFix returns the most recent fix proposal, if any.
func (s *session) LatestFix() *sentinel.FixProposal {
	s.fixMu.Lock()
	defer s.fixMu.Unlock()
	if s.latestFix == nil {
		return nil
	}
	fix := *s.latestFix
	return &fix
}

// Close tears everything down in dependency order: link first so no new
// events arrive, then timers, then the store.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.source.Disconnect()
		for _, token := range s.tokens {
			s.source.Unsubscribe(token)
		}
		s.sim.Close()
		s.store.Unsubscribe(s.storeToken)
		s.store.Close()
	})
}
