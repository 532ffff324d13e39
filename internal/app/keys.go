package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Submit      key.Binding
	Abort       key.Binding
	Reset       key.Binding
	Template    key.Binding
	ToolDetails key.Binding
	Copy        key.Binding
	Quit        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Abort:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "abort")),
		Reset:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		Template:    key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "template")),
		ToolDetails: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "tools")),
		Copy:        key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy")),
		Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		ScrollUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll")),
		ScrollDown:  key.NewBinding(key.WithKeys("pgdown")),
	}
}

// help renders the short hint line, skipping bindings without help text.
func (k keyMap) help() string {
	bindings := []key.Binding{k.Submit, k.Abort, k.Reset, k.Template, k.ToolDetails, k.Copy, k.ScrollUp, k.Quit}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		if h.Key == "" {
			continue
		}
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}
