package main

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the console bindings. It satisfies help.KeyMap.
type keyMap struct {
	SimulateError key.Binding
	Analyze       key.Binding
	Refresh       key.Binding

	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Latest   key.Binding

	Pause key.Binding
	Help  key.Binding
	Quit  key.Binding
}

var defaultKeyMap = keyMap{
	SimulateError: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "simulate error"),
	),
	Analyze: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "analyze focus"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "request state"),
	),
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "scroll down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+b"),
		key.WithHelp("pgup", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+f"),
		key.WithHelp("pgdn", "page down"),
	),
	Latest: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("end/G", "latest"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause rotation"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SimulateError, k.Analyze, k.Latest, k.Pause, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SimulateError, k.Analyze, k.Refresh},
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Latest},
		{k.Pause, k.Help, k.Quit},
	}
}
