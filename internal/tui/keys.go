package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the browse mode.
type KeyMap struct {
	Quit           key.Binding
	Up             key.Binding
	Down           key.Binding
	Left           key.Binding
	Right          key.Binding
	PrevPage       key.Binding
	NextPage       key.Binding
	Search         key.Binding
	Edit           key.Binding
	Toggle         key.Binding
	SelectAll      key.Binding
	ClearSelection key.Binding
	Curate         key.Binding
	Priority       key.Binding
	Remove         key.Binding
	ViewMode       key.Binding
	Reload         key.Binding
	Copy           key.Binding
	ToggleHelp     key.Binding
}

var keys = KeyMap{
	Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:           key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
	Right:          key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
	PrevPage:       key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
	NextPage:       key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
	Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Edit:           key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("e/ent", "edit cell")),
	Toggle:         key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	SelectAll:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
	ClearSelection: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear selection")),
	Curate:         key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "curate selected")),
	Priority:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority")),
	Remove:         key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "uncurate")),
	ViewMode:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "all/curated")),
	Reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Copy:           key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
	ToggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Search, k.Edit, k.Toggle, k.Curate, k.ViewMode, k.ToggleHelp}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.PrevPage, k.NextPage},
		{k.Search, k.Edit, k.Copy, k.ViewMode, k.Reload},
		{k.Toggle, k.SelectAll, k.ClearSelection, k.Curate, k.Priority, k.Remove, k.ToggleHelp, k.Quit},
	}
}

// inputKeys apply while a text prompt has focus.
var inputKeys = struct {
	Submit key.Binding
	Cancel key.Binding
}{
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}
