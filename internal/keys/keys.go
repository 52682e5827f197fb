package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the run view.
type KeyMap struct {
	// Close dismisses the view once the run has finished.
	Close key.Binding

	// Cancel aborts the program at any time.
	Cancel key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Close: key.NewBinding(
			key.WithKeys("q", "esc", "enter"),
			key.WithHelp("q", "close"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "cancel"),
		),
	}
}
