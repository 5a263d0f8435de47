package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Raw    key.Binding
	Export key.Binding
	Filter key.Binding
	Quit   key.Binding
	// Abort quits even while the filter prompt has focus.
	Abort key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Raw, k.Export, k.Filter}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit},
		{k.Raw, k.Filter, k.Export},
	}
}

func newKeyMap() keyMap {
	k := keyMap{
		Raw: key.NewBinding(
			key.WithKeys("r"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export raw"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter raw"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Abort: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
	}
	k.setRawShown(false)
	return k
}

// setRawShown keeps the toggle label in step with the toggle state.
func (k *keyMap) setRawShown(shown bool) {
	if shown {
		k.Raw.SetHelp("r", "hide raw")
	} else {
		k.Raw.SetHelp("r", "show raw")
	}
	k.Filter.SetEnabled(shown)
}
