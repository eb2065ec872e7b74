// Package thoughtstream renders the tail of the thought log in a
// scrollable viewport. It follows the log while the reader is near the
// bottom, holds position otherwise, and briefly tags entries it has not
// shown before.
package thoughtstream

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/presentation"
	"neurosentinel/internal/sentinel"
)

// Config controls the window and scroll policy.
type Config struct {
	// Window is how many of the newest thoughts are rendered.
	Window int
	// NearBottomRows is how far above the end the reader may be and
	// still be auto-scrolled on append.
	NearBottomRows int
	// NewFor is how long a freshly seen thought keeps its NEW tag.
	NewFor time.Duration
	// SeenLimit bounds the set of ids remembered as already shown.
	SeenLimit int
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		Window:         100,
		NearBottomRows: 2,
		NewFor:         500 * time.Millisecond,
		SeenLimit:      1024,
	}
}

// Stream is the thought log view. Sync, scrolling and View run on the UI
// goroutine; tag expiry runs on timer goroutines and reports back through
// the notify callback.
type Stream struct {
	clock  clock.Clock
	config Config
	notify func()

	viewport viewport.Model
	spinner  spinner.Model
	styles   styles

	thoughts []sentinel.Thought
	state    sentinel.AgentState
	jump     bool

	mu        sync.Mutex
	closed    bool
	fresh     map[string]*clock.Timer
	seen      map[string]struct{}
	seenOrder []string
}

type styles struct {
	timestamp lipgloss.Style
	signature lipgloss.Style
	fresh     lipgloss.Style
	empty     lipgloss.Style
	jump      lipgloss.Style
	thinking  lipgloss.Style
	tags      map[sentinel.ThoughtKind]lipgloss.Style
}

func newStyles() styles {
	tags := map[sentinel.ThoughtKind]lipgloss.Style{}
	for _, kind := range []sentinel.ThoughtKind{
		sentinel.ThoughtReasoning,
		sentinel.ThoughtAction,
		sentinel.ThoughtError,
		sentinel.ThoughtSystem,
	} {
		tags[kind] = lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.ThoughtColor(kind))).Bold(true)
	}
	return styles{
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Muted)),
		signature: lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Violet)).Italic(true),
		fresh: lipgloss.NewStyle().
			Foreground(lipgloss.Color(presentation.Canvas)).
			Background(lipgloss.Color(presentation.Accent)).
			Bold(true),
		empty:    lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Muted)).Italic(true),
		jump:     lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Amber)).Bold(true),
		thinking: lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Accent)),
		tags:     tags,
	}
}

// New returns an empty stream. notify, if not nil, is called from a timer
// goroutine whenever a NEW tag expires and the view should be redrawn.
func New(c clock.Clock, config Config, notify func()) *Stream {
	defaults := DefaultConfig()
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.NewFor <= 0 {
		config.NewFor = defaults.NewFor
	}
	if config.SeenLimit <= 0 {
		config.SeenLimit = defaults.SeenLimit
	}
	if config.NearBottomRows < 0 {
		config.NearBottomRows = 0
	}

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Accent))

	return &Stream{
		clock:    c,
		config:   config,
		notify:   notify,
		viewport: vp,
		spinner:  sp,
		styles:   newStyles(),
		state:    sentinel.StateIdle,
		fresh:    make(map[string]*clock.Timer),
		seen:     make(map[string]struct{}),
	}
}

// Tick starts the typing indicator animation.
func (s *Stream) Tick() tea.Msg {
	return s.spinner.Tick()
}

// SetSize resizes the viewport. One row is reserved for the footer.
func (s *Stream) SetSize(width, height int) {
	s.viewport.Width = maxInt(10, width)
	s.viewport.Height = maxInt(1, height-1)
	s.render(false)
}

// Sync replaces the rendered window with the tail of thoughts and
// applies the scroll policy for whatever arrived since the last call.
func (s *Stream) Sync(thoughts []sentinel.Thought, state sentinel.AgentState) {
	s.state = state
	if overflow := len(thoughts) - s.config.Window; overflow > 0 {
		thoughts = thoughts[overflow:]
	}
	s.thoughts = append(s.thoughts[:0], thoughts...)

	arrived := false
	for _, thought := range s.thoughts {
		if s.markSeen(thought.ID) {
			arrived = true
		}
	}
	s.render(arrived)
}

// Refresh redraws without changing the window, for example after a NEW
// tag expired.
func (s *Stream) Refresh() {
	s.render(false)
}

func (s *Stream) render(arrived bool) {
	followed := s.NearBottom()
	offset := s.viewport.YOffset

	s.viewport.SetContent(s.renderThoughts())
	switch {
	case arrived && followed:
		s.viewport.GotoBottom()
		s.jump = false
	case arrived:
		s.viewport.SetYOffset(offset)
		s.jump = true
	default:
		s.viewport.SetYOffset(offset)
		if s.viewport.AtBottom() {
			s.jump = false
		}
	}
}

// markSeen records id and arms its NEW tag. It reports whether the id
// had not been seen before.
func (s *Stream) markSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if overflow := len(s.seenOrder) - s.config.SeenLimit; overflow > 0 {
		for _, old := range s.seenOrder[:overflow] {
			delete(s.seen, old)
		}
		s.seenOrder = append([]string(nil), s.seenOrder[overflow:]...)
	}

	if _, pending := s.fresh[id]; !pending {
		s.fresh[id] = s.clock.AfterFunc(s.config.NewFor, func() { s.expire(id) })
	}
	return true
}

func (s *Stream) expire(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.fresh, id)
	s.mu.Unlock()
	if s.notify != nil {
		s.notify()
	}
}

// IsNew reports whether id still carries its NEW tag.
func (s *Stream) IsNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fresh[id]
	return ok
}

// PendingTags returns the number of NEW tags that have not expired.
func (s *Stream) PendingTags() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fresh)
}

// Close stops every tag timer. Later expiries are ignored.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	timers := s.fresh
	s.fresh = make(map[string]*clock.Timer)
	s.mu.Unlock()
	for _, timer := range timers {
		timer.Stop()
	}
}

// NearBottom reports whether the reader is within the auto-scroll
// threshold of the end of the log.
func (s *Stream) NearBottom() bool {
	maxOffset := maxInt(0, s.viewport.TotalLineCount()-s.viewport.Height)
	return maxOffset-s.viewport.YOffset <= s.config.NearBottomRows
}

// ShowJump reports whether newer entries arrived below the visible area.
func (s *Stream) ShowJump() bool {
	return s.jump
}

// JumpToLatest scrolls to the newest entry.
func (s *Stream) JumpToLatest() {
	s.viewport.GotoBottom()
	s.jump = false
}

// ScrollUp moves the view n lines towards older entries.
func (s *Stream) ScrollUp(n int) {
	s.viewport.LineUp(n)
}

// ScrollDown moves the view n lines towards newer entries.
func (s *Stream) ScrollDown(n int) {
	s.viewport.LineDown(n)
	if s.viewport.AtBottom() {
		s.jump = false
	}
}

// PageUp scrolls one viewport height towards older entries.
func (s *Stream) PageUp() { s.ScrollUp(maxInt(1, s.viewport.Height)) }

// PageDown scrolls one viewport height towards newer entries.
func (s *Stream) PageDown() { s.ScrollDown(maxInt(1, s.viewport.Height)) }

// YOffset is the current scroll offset in rows.
func (s *Stream) YOffset() int {
	return s.viewport.YOffset
}

// Thinking reports whether the typing indicator is visible.
func (s *Stream) Thinking() bool {
	return presentation.Thinking(s.state)
}

// Len returns the number of thoughts in the window.
func (s *Stream) Len() int {
	return len(s.thoughts)
}

// Update forwards spinner ticks and mouse wheel events.
func (s *Stream) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		s.viewport, cmd = s.viewport.Update(msg)
		if s.viewport.AtBottom() {
			s.jump = false
		}
		return cmd
	}
	return nil
}

// View renders the log and its footer line.
func (s *Stream) View() string {
	footer := ""
	if s.Thinking() {
		footer = s.spinner.View() + " " + s.styles.thinking.Render("agent is thinking")
	}
	if s.jump {
		if footer != "" {
			footer += "  "
		}
		footer += s.styles.jump.Render("v new thoughts below: end to jump")
	}
	return s.viewport.View() + "\n" + footer
}

func (s *Stream) renderThoughts() string {
	if len(s.thoughts) == 0 {
		return s.styles.empty.Render("No thoughts yet. Waiting for the agent...")
	}
	width := maxInt(20, s.viewport.Width-2)
	var b strings.Builder
	for i, thought := range s.thoughts {
		if i > 0 {
			b.WriteString("\n")
		}
		tagStyle, ok := s.styles.tags[thought.Kind]
		if !ok {
			tagStyle = s.styles.tags[sentinel.ThoughtSystem]
		}
		header := fmt.Sprintf("%s %s",
			s.styles.timestamp.Render(shortTime(thought.Timestamp)),
			tagStyle.Render(fmt.Sprintf("[%s]", presentation.ThoughtTag(thought.Kind))))
		if s.IsNew(thought.ID) {
			header += " " + s.styles.fresh.Render("NEW")
		}
		b.WriteString(header)
		b.WriteString("\n")
		b.WriteString(wrapText(compactWhitespace(thought.Content), width))
		if sig := strings.TrimSpace(thought.Signature); sig != "" {
			b.WriteString("\n")
			b.WriteString(s.styles.signature.Render("sig " + truncate(sig, width-4)))
		}
	}
	return b.String()
}

func shortTime(ts time.Time) string {
	if ts.IsZero() {
		return "--:--:--"
	}
	return ts.Local().Format("15:04:05")
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}

func compactWhitespace(text string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(normalized)
}

// truncate cuts text to at most limit display cells, ending in "..."
// when room allows. Runes are never split.
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
	budget := limit - len(suffix)
	var b strings.Builder
	used := 0
	for _, r := range text {
		w := lipgloss.Width(string(r))
		if used+w > budget {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + suffix
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
