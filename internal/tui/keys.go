package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	ForceQuit  key.Binding
	Help       key.Binding
	NextFocus  key.Binding
	PrevFocus  key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Connect    key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
	Load       key.Binding
	Clear      key.Binding
	Disconnect key.Binding
	History    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		NextFocus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next section")),
		PrevFocus:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous section")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select integration")),
		Connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Confirm:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "finished in browser")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel / dismiss")),
		Load:       key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "load data")),
		Clear:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear data")),
		Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		History:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activity")),
	}
}
