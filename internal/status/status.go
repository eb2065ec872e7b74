// Package status summarizes a snapshot into the header widgets: agent
// state, token usage, link health, last action and pending fixes.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"neurosentinel/internal/presentation"
	"neurosentinel/internal/sentinel"
)

// Link labels.
const (
	LinkLive      = "LIVE"
	LinkSimulated = "SIMULATED"
)

// Summary is the derived, render-ready view of a snapshot.
type Summary struct {
	Label         string
	Color         string
	Thinking      bool
	TokenFraction float64
	TokenText     string
	Link          string
	LastAction    string
	PendingFixes  int
	LatestFix     string
	CurrentTask   string
	ActiveNode    string
}

// Summarize derives the widgets from state. latest may be nil.
func Summarize(state sentinel.SystemState, connected bool, latest *sentinel.FixProposal, now time.Time) Summary {
	style := presentation.ForState(state.AgentState)
	summary := Summary{
		Label:         style.Label,
		Color:         style.Color,
		Thinking:      presentation.Thinking(state.AgentState),
		TokenFraction: state.TokenUsage.Fraction(),
		TokenText:     tokenText(state.TokenUsage),
		Link:          LinkSimulated,
		PendingFixes:  len(state.PendingFixes),
		CurrentTask:   strings.TrimSpace(state.CurrentTask),
	}
	if connected {
		summary.Link = LinkLive
	}
	if action := state.LastAction; action != nil {
		summary.LastAction = fmt.Sprintf("%s %s %s", action.Type, action.Target,
			humanize.RelTime(action.Timestamp, now, "ago", "from now"))
	}
	if node, ok := state.Node(state.ActiveNodeID); ok {
		summary.ActiveNode = node.Name
		if summary.ActiveNode == "" {
			summary.ActiveNode = node.ID
		}
	}
	if latest != nil {
		summary.LatestFix = fixText(*latest)
	}
	return summary
}

func tokenText(usage sentinel.TokenUsage) string {
	return fmt.Sprintf("%s / %s (%.1f%%)",
		humanize.Comma(int64(usage.Current)),
		humanize.Comma(int64(usage.Max)),
		usage.Fraction()*100)
}

func fixText(fix sentinel.FixProposal) string {
	where := fix.AffectedFile
	if where != "" && fix.AffectedLine > 0 {
		where = fmt.Sprintf("%s:%d", where, fix.AffectedLine)
	}
	parts := []string{}
	if fix.ErrorType != "" {
		parts = append(parts, fix.ErrorType)
	}
	if where != "" {
		parts = append(parts, "in "+where)
	}
	if fix.Confidence > 0 {
		parts = append(parts, fmt.Sprintf("confidence %.0f%%", fix.Confidence*100))
	}
	if fix.RiskLevel != "" {
		parts = append(parts, "risk "+fix.RiskLevel)
	}
	if len(parts) == 0 {
		return fix.ID
	}
	return strings.Join(parts, ", ")
}

// Panel renders a Summary.
type Panel struct {
	bar   progress.Model
	width int

	label lipgloss.Style
	key   lipgloss.Style
	value lipgloss.Style
	live  lipgloss.Style
	sim   lipgloss.Style
	muted lipgloss.Style
}

// NewPanel returns a panel sized for width columns.
func NewPanel(width int) *Panel {
	p := &Panel{
		bar: progress.New(
			progress.WithSolidFill(presentation.Accent),
			progress.WithoutPercentage(),
		),
		label: lipgloss.NewStyle().Bold(true).Padding(0, 1),
		key:   lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Muted)),
		value: lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.White)),
		live:  lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Green)).Bold(true),
		sim:   lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Amber)).Bold(true),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color(presentation.Muted)).Italic(true),
	}
	p.SetWidth(width)
	return p
}

// SetWidth resizes the panel.
func (p *Panel) SetWidth(width int) {
	p.width = width
	p.bar.Width = clampInt(width-16, 10, 60)
}

// View renders s.
func (p *Panel) View(s Summary) string {
	badge := p.label.
		Foreground(lipgloss.Color(presentation.Canvas)).
		Background(lipgloss.Color(s.Color)).
		Render(s.Label)
	if s.Thinking {
		badge += " " + p.muted.Render("thinking")
	}
	link := p.sim.Render("● " + s.Link)
	if s.Link == LinkLive {
		link = p.live.Render("● " + s.Link)
	}

	lines := []string{
		badge + "  " + link,
		p.key.Render("tokens ") + p.bar.ViewAs(s.TokenFraction) + " " + p.value.Render(s.TokenText),
		p.row("task", s.CurrentTask, "idle"),
		p.row("focus", s.ActiveNode, "none"),
		p.row("last action", s.LastAction, "none yet"),
	}
	fixes := fmt.Sprintf("%d pending", s.PendingFixes)
	if s.LatestFix != "" {
		fixes += " (latest: " + s.LatestFix + ")"
	}
	lines = append(lines, p.row("fixes", fixes, ""))

	if p.width > 0 {
		for i, line := range lines {
			lines[i] = lipgloss.NewStyle().MaxWidth(p.width).Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Panel) row(key, value, empty string) string {
	if value == "" {
		return p.key.Render(key+" ") + p.muted.Render(empty)
	}
	return p.key.Render(key+" ") + p.value.Render(value)
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
