package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/ingest"
	"neurosentinel/internal/sentinel"
	"neurosentinel/internal/simulation"
	"neurosentinel/internal/status"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type simulateCall struct {
	nodeID  string
	message string
}

// fakeSource is an in-memory backend. Inbound frames go through the
// embedded router; link changes are driven by setLink.
type fakeSource struct {
	*ingest.Router

	mu            sync.Mutex
	connected     bool
	connects      int
	disconnects   int
	stateRequests int
	analyses      []string
	simulations   []simulateCall
	linkHandlers  []func(bool)
}

func newFakeSource() *fakeSource {
	return &fakeSource{Router: ingest.NewRouter()}
}

func (f *fakeSource) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return nil
}

func (f *fakeSource) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	f.setLink(false)
}

func (f *fakeSource) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSource) RequestState() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ingest.ErrNotConnected
	}
	f.stateRequests++
	return nil
}

func (f *fakeSource) TriggerAnalysis(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, target)
	return nil
}

func (f *fakeSource) SimulateError(nodeID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulations = append(f.simulations, simulateCall{nodeID: nodeID, message: message})
	return nil
}

func (f *fakeSource) OnConnection(fn func(bool)) ingest.Token {
	f.mu.Lock()
	f.linkHandlers = append(f.linkHandlers, fn)
	f.mu.Unlock()
	return f.Router.OnConnection(fn)
}

func (f *fakeSource) setLink(connected bool) {
	f.mu.Lock()
	changed := f.connected != connected
	f.connected = connected
	handlers := append([]func(bool){}, f.linkHandlers...)
	f.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range handlers {
		fn(connected)
	}
}

func testNodes() []sentinel.InfrastructureNode {
	return []sentinel.InfrastructureNode{
		{ID: "core-api", Name: "core/api.py", Kind: sentinel.KindAPI, Status: sentinel.StatusHealthy, Connections: []string{"db"}},
		{ID: "db", Name: "postgres", Kind: sentinel.KindDatabase, Status: sentinel.StatusHealthy, Connections: []string{}},
	}
}

func testConfig() appConfig {
	return appConfig{
		url:          ingest.DefaultURL,
		window:       100,
		frameMS:      80,
		seed:         7,
		incidentNode: "core-api",
	}
}

func newTestSession(t *testing.T, cfg appConfig) (*session, *fakeSource, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	source := newFakeSource()
	sess := newSession(fake, source, testNodes(), cfg)
	t.Cleanup(sess.Close)
	return sess, source, fake
}

func drain(ch <-chan tea.Msg) []tea.Msg {
	var out []tea.Msg
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestParseFlagsClampsAndTrims(t *testing.T) {
	cfg, err := parseFlags([]string{
		"--url", "   ",
		"--window", "5",
		"--frame-ms", "5000",
		"--log-level", " DEBUG ",
		"--seed", "42",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.url != ingest.DefaultURL {
		t.Fatalf("expected blank url to fall back to default, got %q", cfg.url)
	}
	if cfg.window != 10 {
		t.Fatalf("expected window clamped to 10, got %d", cfg.window)
	}
	if cfg.frameMS != 1000 || cfg.frameInterval() != time.Second {
		t.Fatalf("expected frame interval clamped to 1s, got %dms", cfg.frameMS)
	}
	if cfg.logLevel != "debug" {
		t.Fatalf("expected normalized log level, got %q", cfg.logLevel)
	}
	if cfg.seed != 42 {
		t.Fatalf("expected explicit seed, got %d", cfg.seed)
	}
}

func TestParseFlagsEnvironmentFallbacks(t *testing.T) {
	t.Setenv("SENTINEL_SOCKET_URL", "ws://backend:9000/ws")
	t.Setenv("SENTINEL_OFFLINE", "yes")
	t.Setenv("SENTINEL_WINDOW", "not-a-number")
	t.Setenv("SENTINEL_INCIDENT_NODE", " billing-service ")

	cfg, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.url != "ws://backend:9000/ws" {
		t.Fatalf("unexpected url %q", cfg.url)
	}
	if !cfg.offline {
		t.Fatalf("expected offline from environment")
	}
	if cfg.window != 100 {
		t.Fatalf("expected invalid env to fall back to 100, got %d", cfg.window)
	}
	if cfg.incidentNode != "billing-service" {
		t.Fatalf("unexpected incident node %q", cfg.incidentNode)
	}
	if cfg.seed == 0 {
		t.Fatalf("expected a time based seed")
	}
}

func TestParseFlagsRejectsPositionalArguments(t *testing.T) {
	if _, err := parseFlags([]string{"extra"}, io.Discard); err == nil {
		t.Fatalf("expected positional argument to be rejected")
	}
}

func TestSessionRunsLocalIncidentWhileOffline(t *testing.T) {
	sess, source, fake := newTestSession(t, testConfig())
	sess.Start(context.Background())
	if source.connects != 1 {
		t.Fatalf("expected one connect attempt, got %d", source.connects)
	}

	state, _ := sess.Snapshot()
	if len(state.Thoughts) != 2 {
		t.Fatalf("expected simulator to seed two thoughts, got %d", len(state.Thoughts))
	}

	live, err := sess.SimulateError()
	if err != nil || live {
		t.Fatalf("expected local incident, got live=%v err=%v", live, err)
	}
	if len(source.simulations) != 0 {
		t.Fatalf("backend should not be asked while offline")
	}
	state, _ = sess.Snapshot()
	if state.AgentState != sentinel.StateStrobeRed || state.ActiveNodeID != "core-api" {
		t.Fatalf("expected STROBE_RED on core-api, got %s/%q", state.AgentState, state.ActiveNodeID)
	}

	fake.Advance(simulation.IncidentResolve)
	state, _ = sess.Snapshot()
	if state.AgentState != sentinel.StateSuccess {
		t.Fatalf("expected SUCCESS after resolve step, got %s", state.AgentState)
	}
	if state.LastAction == nil || state.LastAction.Target != "core/api.py" {
		t.Fatalf("expected patch action on core/api.py, got %+v", state.LastAction)
	}

	if msgs := drain(sess.inbound); len(msgs) == 0 {
		t.Fatalf("expected store changes to reach the UI inbox")
	}
}

func TestSessionConnectHandsOverToBackend(t *testing.T) {
	sess, source, _ := newTestSession(t, testConfig())
	sess.Start(context.Background())
	_, _ = sess.SimulateError()
	drain(sess.inbound)

	source.setLink(true)

	state, _ := sess.Snapshot()
	if state.AgentState != sentinel.StateIdle || len(state.Thoughts) != 0 {
		t.Fatalf("expected store reset on connect, got %s with %d thoughts", state.AgentState, len(state.Thoughts))
	}
	if sess.sim.IncidentPending() {
		t.Fatalf("expected local incident cancelled on connect")
	}
	if sess.sim.Active() {
		t.Fatalf("expected simulator stopped while live")
	}
	if source.stateRequests != 1 {
		t.Fatalf("expected one state request on connect, got %d", source.stateRequests)
	}

	var sawLink bool
	for _, msg := range drain(sess.inbound) {
		if link, ok := msg.(linkMsg); ok && link.connected {
			sawLink = true
		}
	}
	if !sawLink {
		t.Fatalf("expected linkMsg{connected: true}")
	}

	live, err := sess.SimulateError()
	if err != nil || !live {
		t.Fatalf("expected live incident request, got live=%v err=%v", live, err)
	}
	if len(source.simulations) != 1 ||
		source.simulations[0].nodeID != "core-api" ||
		source.simulations[0].message != simulation.DefaultIncidentMessage {
		t.Fatalf("unexpected simulate_error calls %+v", source.simulations)
	}

	source.setLink(false)
	if !sess.sim.Active() {
		t.Fatalf("expected simulator to resume after disconnect")
	}
}

func TestSessionRoutesBackendEventsIntoStore(t *testing.T) {
	sess, source, _ := newTestSession(t, testConfig())
	source.setLink(true)

	frames := []string{
		`{"event":"agent_state","data":{"state":"RAPID_PULSE","thought":"tracing","affectedNodes":["db"]}}`,
		`{"event":"node_update","data":{"id":"db","name":"postgres","type":"database","status":"warning","position":[0,0,0],"connections":[]}}`,
		`{"event":"node_update","data":{"id":"ghost","name":"ghost","type":"file","status":"error","position":[0,0,0],"connections":[]}}`,
		`{"event":"fix_proposal","data":{"id":"fix-1","error_type":"TypeError","confidence_score":0.9}}`,
	}
	for _, frame := range frames {
		if err := source.Dispatch([]byte(frame)); err != nil {
			t.Fatalf("dispatch %s: %v", frame, err)
		}
	}

	state, _ := sess.Snapshot()
	if state.AgentState != sentinel.StateRapidPulse || state.ActiveNodeID != "db" {
		t.Fatalf("unexpected agent state %s/%q", state.AgentState, state.ActiveNodeID)
	}
	node, ok := state.Node("db")
	if !ok || node.Status != sentinel.StatusWarning {
		t.Fatalf("expected db warning, got %+v", node)
	}
	if _, ok := state.Node("ghost"); ok {
		t.Fatalf("unknown node should not be added")
	}
	fix := sess.LatestFix()
	if fix == nil || fix.ID != "fix-1" {
		t.Fatalf("expected latest fix fix-1, got %+v", fix)
	}
	if len(state.PendingFixes) != 1 {
		t.Fatalf("expected one pending fix, got %v", state.PendingFixes)
	}
}

func TestSessionReconnectForgetsPreviousFix(t *testing.T) {
	sess, source, _ := newTestSession(t, testConfig())
	source.setLink(true)
	frame := `{"event":"fix_proposal","data":{"id":"fix-1","error_type":"TypeError","confidence_score":0.9}}`
	if err := source.Dispatch([]byte(frame)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sess.LatestFix() == nil {
		t.Fatalf("expected fix-1 recorded")
	}

	source.setLink(false)
	source.setLink(true)

	if fix := sess.LatestFix(); fix != nil {
		t.Fatalf("expected no latest fix after reconnect, got %+v", fix)
	}
	state, _ := sess.Snapshot()
	summary := status.Summarize(state, true, sess.LatestFix(), sess.clock.Now())
	if summary.LatestFix != "" {
		t.Fatalf("status still shows a fix from the previous link: %q", summary.LatestFix)
	}
}

func TestSessionLiveOnlyRequests(t *testing.T) {
	sess, source, _ := newTestSession(t, testConfig())
	if err := sess.TriggerAnalysis("core-api"); !errors.Is(err, errOffline) {
		t.Fatalf("expected errOffline, got %v", err)
	}
	if err := sess.RequestState(); !errors.Is(err, errOffline) {
		t.Fatalf("expected errOffline, got %v", err)
	}
	source.setLink(true)
	if err := sess.TriggerAnalysis("db"); err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if len(source.analyses) != 1 || source.analyses[0] != "db" {
		t.Fatalf("unexpected analyses %v", source.analyses)
	}
}

func TestSessionOfflineModeSkipsBackend(t *testing.T) {
	cfg := testConfig()
	cfg.offline = true
	sess, source, _ := newTestSession(t, cfg)
	sess.Start(context.Background())
	if source.connects != 0 {
		t.Fatalf("offline session should not connect")
	}
	if !sess.sim.Active() {
		t.Fatalf("expected simulator active offline")
	}
}

func TestSessionCloseStopsEverything(t *testing.T) {
	sess, source, fake := newTestSession(t, testConfig())
	sess.Start(context.Background())
	_, _ = sess.SimulateError()

	sess.Close()
	sess.Close()
	if source.disconnects != 1 {
		t.Fatalf("expected one disconnect, got %d", source.disconnects)
	}
	if sess.sim.Active() || sess.sim.IncidentPending() {
		t.Fatalf("expected simulator stopped after close")
	}
	if pending := fake.PendingCount(); pending != 0 {
		t.Fatalf("expected no pending timers after close, got %d", pending)
	}
}

func newTestModel(t *testing.T, cfg appConfig) (model, *fakeSource, *clock.FakeClock) {
	t.Helper()
	sess, source, fake := newTestSession(t, cfg)
	sess.Start(context.Background())
	m := newModel(cfg, sess)
	t.Cleanup(func() {
		m.stream.Close()
		m.lattice.Close()
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(model), source, fake
}

func keyPress(text string) tea.KeyMsg {
	if text == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

func TestModelRendersPanes(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	view := m.View()
	for _, want := range []string{"NEURO-SENTINEL", "Infrastructure Lattice", "Thought Stream", "SIMULATED"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
	if m.latticeFrame == "" {
		t.Fatalf("expected a lattice frame after resize")
	}
	if m.stream.Len() != 2 {
		t.Fatalf("expected seeded thoughts in the stream, got %d", m.stream.Len())
	}
}

func TestModelSimulateErrorKeyRunsIncident(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	updated, cmd := m.Update(keyPress("e"))
	m = updated.(model)
	if cmd == nil || !m.inflight {
		t.Fatalf("expected an in-flight incident command")
	}

	// A second press while in flight is ignored.
	if _, again := m.Update(keyPress("e")); again != nil {
		t.Fatalf("expected no command while in flight")
	}

	done := cmd()
	updated, _ = m.Update(done)
	m = updated.(model)
	if m.inflight {
		t.Fatalf("expected in-flight flag cleared")
	}
	if !strings.Contains(m.statusLine, "local incident started on core-api") {
		t.Fatalf("unexpected status line %q", m.statusLine)
	}

	for _, msg := range drain(m.session.inbound) {
		updated, _ = m.Update(msg)
		m = updated.(model)
	}
	if m.snapshot.AgentState != sentinel.StateStrobeRed {
		t.Fatalf("expected STROBE_RED rendered, got %s", m.snapshot.AgentState)
	}
	if m.lattice.Camera().AutoRotate() {
		t.Fatalf("expected camera to stop during incident")
	}
}

func TestModelLiveOnlyKeysReportOffline(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	updated, cmd := m.Update(keyPress("a"))
	m = updated.(model)
	updated, _ = m.Update(cmd())
	m = updated.(model)
	if !strings.HasPrefix(m.statusLine, "error: analysis needs a live backend") {
		t.Fatalf("unexpected status line %q", m.statusLine)
	}
	if last := m.logs[len(m.logs)-1]; !strings.Contains(last, "error:") {
		t.Fatalf("expected error in log ring, got %q", last)
	}
}

func TestModelTogglesPauseAndHelp(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	updated, _ := m.Update(keyPress(" "))
	m = updated.(model)
	if !m.lattice.Camera().Paused() || m.statusLine != "rotation paused" {
		t.Fatalf("expected rotation paused, status %q", m.statusLine)
	}
	short := m.layout.bodyHeight
	updated, _ = m.Update(keyPress("?"))
	m = updated.(model)
	if !m.help.ShowAll {
		t.Fatalf("expected full help")
	}
	if m.layout.bodyHeight >= short {
		t.Fatalf("expected full help to take rows from the body")
	}
}

func TestModelQuitStopsTimers(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	_, cmd := m.Update(keyPress("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestLogRingIsBounded(t *testing.T) {
	m, _, _ := newTestModel(t, testConfig())
	for i := 0; i < 80; i++ {
		m.appendLog("line")
	}
	m.appendLog("   ")
	if len(m.logs) != 50 {
		t.Fatalf("expected 50 log entries, got %d", len(m.logs))
	}
}

func TestComputeLayoutKeepsMinimums(t *testing.T) {
	small := computeLayout(20, 10, 1)
	if small.contentWidth != 40 || small.bodyHeight != 8 {
		t.Fatalf("unexpected minimum layout %+v", small)
	}
	wide := computeLayout(200, 50, 1)
	if wide.leftWidth+wide.rightWidth != wide.contentWidth {
		t.Fatalf("panes should fill the content width: %+v", wide)
	}
	if wide.latticeWidth != wide.leftWidth-4 || wide.streamHeight != wide.bodyHeight-3 {
		t.Fatalf("unexpected inner sizes %+v", wide)
	}
}
