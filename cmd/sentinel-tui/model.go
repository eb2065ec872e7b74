package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"neurosentinel/internal/lattice"
	"neurosentinel/internal/logging"
	"neurosentinel/internal/presentation"
	"neurosentinel/internal/sentinel"
	"neurosentinel/internal/status"
	"neurosentinel/internal/thoughtstream"
)

type frameMsg time.Time

type actionDoneMsg struct {
	status string
	err    error
}

type model struct {
	cfg     appConfig
	session *session

	stream  *thoughtstream.Stream
	lattice *lattice.View
	panel   *status.Panel
	help    help.Model
	keys    keyMap
	theme   uiTheme

	snapshot   sentinel.SystemState
	connected  bool
	statusLine string
	logs       []string
	inflight   bool

	latticeFrame string
	layout       layout

	width  int
	height int
}

func newModel(cfg appConfig, sess *session) model {
	streamConfig := thoughtstream.DefaultConfig()
	streamConfig.Window = cfg.window
	stream := thoughtstream.New(sess.clock, streamConfig, func() {
		sess.send(tagExpiredMsg{})
	})

	m := model{
		cfg:        cfg,
		session:    sess,
		stream:     stream,
		lattice:    lattice.NewView(sess.clock),
		panel:      status.NewPanel(80),
		help:       help.New(),
		keys:       defaultKeyMap,
		theme:      newTheme(),
		connected:  sess.Connected(),
		statusLine: "starting...",
		logs:       []string{},
	}
	m.refreshSnapshot()
	if cfg.offline {
		m.appendLog("offline mode: local simulation only")
	} else {
		m.appendLog("connecting to " + cfg.url)
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitSessionMsg(m.session.inbound),
		m.stream.Tick,
		tickFrame(m.cfg.frameInterval()),
	)
}

func tickFrame(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = 80 * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func waitSessionMsg(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderLattice()
	case storeChangedMsg:
		m.refreshSnapshot()
		cmds = append(cmds, waitSessionMsg(m.session.inbound))
	case tagExpiredMsg:
		m.stream.Refresh()
		cmds = append(cmds, waitSessionMsg(m.session.inbound))
	case linkMsg:
		m.connected = msg.connected
		if msg.connected {
			m.statusLine = "backend connected"
			m.appendLog("backend connected; local simulation stopped")
		} else {
			m.statusLine = "backend unavailable"
			m.appendLog("backend unavailable; local simulation running")
		}
		cmds = append(cmds, waitSessionMsg(m.session.inbound))
	case frameMsg:
		m.renderLattice()
		cmds = append(cmds, tickFrame(m.cfg.frameInterval()))
	case spinner.TickMsg:
		cmds = append(cmds, m.stream.Update(msg))
	case tea.MouseMsg:
		cmds = append(cmds, m.stream.Update(msg))
	case actionDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.logError(msg.err)
		} else if strings.TrimSpace(msg.status) != "" {
			m.statusLine = msg.status
			m.appendLog(msg.status)
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.lattice.Close()
		m.stream.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.SimulateError):
		if m.inflight {
			return m, nil
		}
		m.inflight = true
		m.statusLine = "staging incident..."
		return m, m.simulateErrorCmd()
	case key.Matches(msg, m.keys.Analyze):
		if m.inflight {
			return m, nil
		}
		m.inflight = true
		target := m.snapshot.ActiveNodeID
		if target == "" {
			target = m.session.incidentNode
		}
		return m, m.analyzeCmd(target)
	case key.Matches(msg, m.keys.Refresh):
		if m.inflight {
			return m, nil
		}
		m.inflight = true
		return m, m.requestStateCmd()
	case key.Matches(msg, m.keys.Up):
		m.stream.ScrollUp(4)
	case key.Matches(msg, m.keys.Down):
		m.stream.ScrollDown(4)
	case key.Matches(msg, m.keys.PageUp):
		m.stream.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.stream.PageDown()
	case key.Matches(msg, m.keys.Latest):
		m.stream.JumpToLatest()
	case key.Matches(msg, m.keys.Pause):
		if m.lattice.Camera().TogglePause() {
			m.statusLine = "rotation paused"
		} else {
			m.statusLine = "rotation resumed"
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
	}
	return m, nil
}

func (m model) simulateErrorCmd() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		live, err := sess.SimulateError()
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("simulate error: %w", err)}
		}
		if live {
			return actionDoneMsg{status: "incident requested from backend on " + sess.incidentNode}
		}
		return actionDoneMsg{status: "local incident started on " + sess.incidentNode}
	}
}

func (m model) analyzeCmd(target string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		if err := sess.TriggerAnalysis(target); err != nil {
			return actionDoneMsg{err: offlineAware("analysis", err)}
		}
		return actionDoneMsg{status: "analysis requested for " + target}
	}
}

func (m model) requestStateCmd() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		if err := sess.RequestState(); err != nil {
			return actionDoneMsg{err: offlineAware("state request", err)}
		}
		return actionDoneMsg{status: "state requested"}
	}
}

func offlineAware(action string, err error) error {
	if errors.Is(err, errOffline) {
		return fmt.Errorf("%s needs a live backend: %w", action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// refreshSnapshot pulls the latest store state into every view.
func (m *model) refreshSnapshot() {
	state, version := m.session.Snapshot()
	previous := m.snapshot.AgentState
	m.snapshot = state
	m.stream.Sync(state.Thoughts, state.AgentState)
	m.lattice.Observe(state.AgentState)
	if previous != "" && previous != state.AgentState {
		logging.Debug().
			Add(logging.Component("ui")).
			Add(logging.State(state.AgentState)).
			Add(logging.Count("version", int(version))).
			Msg("state rendered")
	}
}

func (m *model) renderLattice() {
	if m.layout.latticeWidth <= 0 || m.layout.latticeHeight <= 0 {
		return
	}
	m.latticeFrame = m.lattice.Frame(m.snapshot, m.layout.latticeWidth, m.layout.latticeHeight)
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", m.session.clock.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > 50 {
		m.logs = m.logs[len(m.logs)-50:]
	}
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
	logging.Warn().
		Add(logging.Component("ui")).
		Add(logging.ErrorField(err)).
		Msg("action failed")
}

func (m model) summary() status.Summary {
	return status.Summarize(m.snapshot, m.connected, m.session.LatestFix(), m.session.clock.Now())
}

func stateColor(state sentinel.AgentState) lipgloss.Color {
	return lipgloss.Color(presentation.ForState(state).Color)
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= limit {
		return text
	}
	suffix := "..."
	if limit <= len(suffix) {
		suffix = ""
	}
	var b strings.Builder
	used := 0
	for _, r := range text {
		w := lipgloss.Width(string(r))
		if used+w > limit-len(suffix) {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + suffix
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	return truncate(compact, limit)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
