package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	tab       key.Binding
	watchlist key.Binding
	review    key.Binding
	helpful   key.Binding
	refresh   key.Binding
	rateUp    key.Binding
	rateDown  key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "all/watchlist")),
		watchlist: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "toggle watchlist")),
		review:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "write review")),
		helpful:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "helpful")),
		refresh:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
		rateUp:    key.NewBinding(key.WithKeys("+", "right"), key.WithHelp("+/→", "more stars")),
		rateDown:  key.NewBinding(key.WithKeys("-", "left"), key.WithHelp("-/←", "fewer stars")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.tab, k.watchlist, k.review, k.helpful},
		{k.refresh, k.quit},
	}
}
