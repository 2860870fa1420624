package tui

import "github.com/charmbracelet/bubbles/key"

var (
	quitKeys = key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	)
	submitKey = key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	)
	modeKey = key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "mode"),
	)
	sidebarKey = key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("ctrl+b", "sidebar"),
	)
	viewKey = key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "terminal/files"),
	)
	clearKey = key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear chat"),
	)
	scrollUpKey = key.NewBinding(
		key.WithKeys("pgup"),
	)
	scrollDownKey = key.NewBinding(
		key.WithKeys("pgdown"),
	)
)

func helpLine() []key.Binding {
	return []key.Binding{submitKey, modeKey, sidebarKey, viewKey, clearKey, quitKeys}
}
