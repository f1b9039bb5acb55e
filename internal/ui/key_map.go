package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	prev   key.Binding
	next   key.Binding
	enter  key.Binding
	back   key.Binding
	create key.Binding
	lang   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		prev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		next:   key.NewBinding(key.WithKeys("right", "l", " "), key.WithHelp("→/l", "next")),
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		create: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new wrap")),
		lang:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "language")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.prev, k.next, k.back},
		{k.create, k.lang, k.quit},
	}
}
