package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"neurosentinel/internal/presentation"
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	helpText    lipgloss.Style
	muted       lipgloss.Style
}

func newTheme() uiTheme {
	accent := lipgloss.Color(presentation.Accent)
	violet := lipgloss.Color(presentation.Violet)
	green := lipgloss.Color(presentation.Green)
	red := lipgloss.Color(presentation.Red)
	bg := lipgloss.Color(presentation.Canvas)
	panelBg := lipgloss.Color("#111833")
	text := lipgloss.Color(presentation.White)
	muted := lipgloss.Color(presentation.Muted)

	return uiTheme{
		root: lipgloss.NewStyle().
			Background(bg).
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		panel: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(green).
			Bold(true),
		footer: lipgloss.NewStyle().
			Background(panelBg).
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(violet).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(accent).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		muted:       lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// layout is the pane geometry derived from the terminal size. Widths and
// heights are outer sizes including borders unless noted.
type layout struct {
	contentWidth int
	bodyHeight   int
	leftWidth    int
	rightWidth   int

	// Inner drawing areas.
	latticeWidth  int
	latticeHeight int
	streamWidth   int
	streamHeight  int
}

const (
	headerHeight = 3
	statusHeight = 8
)

func computeLayout(width, height, helpLines int) layout {
	contentWidth := maxInt(40, width-2)
	footerHeight := 2 + 2 + maxInt(1, helpLines)
	bodyHeight := maxInt(8, height-headerHeight-statusHeight-footerHeight)

	leftWidth := int(float64(contentWidth) * 0.55)
	rightWidth := contentWidth - leftWidth
	if rightWidth < 32 {
		rightWidth = minInt(32, contentWidth/2)
		leftWidth = contentWidth - rightWidth
	}

	return layout{
		contentWidth:  contentWidth,
		bodyHeight:    bodyHeight,
		leftWidth:     leftWidth,
		rightWidth:    rightWidth,
		latticeWidth:  maxInt(10, leftWidth-4),
		latticeHeight: maxInt(4, bodyHeight-3),
		streamWidth:   maxInt(10, rightWidth-4),
		streamHeight:  maxInt(2, bodyHeight-3),
	}
}

func (m *model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = maxInt(20, m.width-6)
	helpLines := lipgloss.Height(m.help.View(m.keys))
	m.layout = computeLayout(m.width, m.height, helpLines)
	m.panel.SetWidth(m.layout.contentWidth - 4)
	m.stream.SetSize(m.layout.streamWidth, m.layout.streamHeight)
}

func (m model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "initializing..."
	}
	summary := m.summary()
	border := stateColor(m.snapshot.AgentState)

	header := m.renderHeader()
	statusPanel := m.theme.panel.
		BorderForeground(border).
		Width(m.layout.contentWidth - 2).
		Render(m.panel.View(summary))

	latticePane := m.theme.panel.
		BorderForeground(border).
		Width(m.layout.leftWidth - 2).
		Height(m.layout.bodyHeight - 2).
		Render(m.theme.panelTitle.Render("Infrastructure Lattice") + "\n" + m.latticeFrame)
	streamPane := m.theme.panel.
		Width(m.layout.rightWidth - 2).
		Height(m.layout.bodyHeight - 2).
		Render(m.theme.panelTitle.Render("Thought Stream") + "\n" + m.stream.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, latticePane, streamPane)

	footer := m.renderFooter()
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, statusPanel, body, footer))
}

func (m model) renderHeader() string {
	link := m.cfg.url
	if m.cfg.offline {
		link = "offline"
	}
	line := m.theme.title.Render("NEURO-SENTINEL") +
		m.theme.helpText.Render("  autonomous SRE console  ") +
		m.theme.muted.Render(compactSingleLine(link, 60))
	return m.theme.header.Width(m.layout.contentWidth - 2).Render(line)
}

func (m model) renderFooter() string {
	statusStyle := m.theme.status
	if strings.HasPrefix(m.statusLine, "error") {
		statusStyle = m.theme.errorStatus
	}
	lastLog := ""
	if len(m.logs) > 0 {
		lastLog = m.logs[len(m.logs)-1]
	}
	lines := []string{
		statusStyle.Render(compactSingleLine(m.statusLine, maxInt(20, m.layout.contentWidth-6))),
		m.theme.muted.Render(truncate(lastLog, maxInt(20, m.layout.contentWidth-6))),
		m.help.View(m.keys),
	}
	return m.theme.footer.Width(m.layout.contentWidth - 2).Render(strings.Join(lines, "\n"))
}
