// Package presentation maps the closed set of agent states, thought kinds
// and node statuses to labels, colors and animation classes. Every
// renderer goes through these functions so that the palette is defined
// once.
package presentation

import "neurosentinel/internal/sentinel"

// Palette colors.
const (
	Gray   = "#6b7280"
	Accent = "#3b82f6"
	White  = "#f8fafc"
	Red    = "#ef4444"
	Green  = "#22c55e"
	Amber  = "#f59e0b"
	Violet = "#a78bfa"
	Muted  = "#94a3b8"
	Canvas = "#0b1020"
)

// Animation is the motion class attached to a state.
type Animation int

const (
	AnimationNone Animation = iota
	AnimationBreathe
	AnimationPulse
	AnimationStrobe
	AnimationStatic
)

// String returns the animation class name.
func (a Animation) String() string {
	switch a {
	case AnimationBreathe:
		return "breathe"
	case AnimationPulse:
		return "pulse"
	case AnimationStrobe:
		return "strobe"
	case AnimationStatic:
		return "static"
	default:
		return "none"
	}
}

// Style is the presentation of one agent state.
type Style struct {
	Label     string
	Color     string
	Animation Animation
	// PulseHz is the glow oscillation frequency for the state.
	PulseHz float64
}

// ForState returns the style for s. The switch is exhaustive over
// sentinel.AgentStates; an unknown label renders like IDLE.
func ForState(s sentinel.AgentState) Style {
	switch s {
	case sentinel.StateIdle:
		return Style{Label: "IDLE", Color: Gray, Animation: AnimationNone, PulseHz: 0}
	case sentinel.StateBreathe:
		return Style{Label: "MONITORING", Color: Accent, Animation: AnimationBreathe, PulseHz: 0.25}
	case sentinel.StateRapidPulse:
		return Style{Label: "REASONING", Color: White, Animation: AnimationPulse, PulseHz: 2}
	case sentinel.StateStrobeRed:
		return Style{Label: "INCIDENT", Color: Red, Animation: AnimationStrobe, PulseHz: 4}
	case sentinel.StateSuccess:
		return Style{Label: "RESOLVED", Color: Green, Animation: AnimationStatic, PulseHz: 0}
	}
	return ForState(sentinel.StateIdle)
}

// Thinking reports whether the "thinking" indicator is shown for s.
func Thinking(s sentinel.AgentState) bool {
	switch s {
	case sentinel.StateBreathe, sentinel.StateRapidPulse:
		return true
	case sentinel.StateIdle, sentinel.StateStrobeRed, sentinel.StateSuccess:
		return false
	}
	return false
}

// ThoughtColor returns the accent color for a thought kind.
func ThoughtColor(kind sentinel.ThoughtKind) string {
	switch kind {
	case sentinel.ThoughtReasoning:
		return Accent
	case sentinel.ThoughtAction:
		return Green
	case sentinel.ThoughtError:
		return Red
	case sentinel.ThoughtSystem:
		return Muted
	}
	return Muted
}

// ThoughtTag returns the short tag printed before a thought.
func ThoughtTag(kind sentinel.ThoughtKind) string {
	switch kind {
	case sentinel.ThoughtReasoning:
		return "THINK"
	case sentinel.ThoughtAction:
		return "ACT"
	case sentinel.ThoughtError:
		return "ERR"
	case sentinel.ThoughtSystem:
		return "SYS"
	}
	return "???"
}
