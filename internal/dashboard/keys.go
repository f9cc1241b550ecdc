package dashboard

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
	Toggle      key.Binding
	ToggleAll   key.Binding
	Search      key.Binding
	Project     key.Binding
	Device      key.Binding
	Download    key.Binding
	DownloadOne key.Binding
	Delete      key.Binding
	DeleteOne   key.Binding
	Upload      key.Binding
	Export      key.Binding
	Refresh     key.Binding
	Dismiss     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default vim-style keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next page"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "select"),
		),
		ToggleAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "select page"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Project: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "project"),
		),
		Device: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "device"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download selected"),
		),
		DownloadOne: key.NewBinding(
			key.WithKeys("enter", "D"),
			key.WithHelp("enter", "download row"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete selected"),
		),
		DeleteOne: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "delete row"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "upload"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear message"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to show in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Search, k.Download, k.Delete, k.Upload, k.Export, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage},
		{k.Toggle, k.ToggleAll, k.Search, k.Project, k.Device},
		{k.Download, k.DownloadOne, k.Delete, k.DeleteOne},
		{k.Upload, k.Export, k.Refresh, k.Dismiss, k.Help, k.Quit},
	}
}

// formKeyMap is shown while the upload form is open.
type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Cycle  key.Binding
	Browse key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func newFormKeyMap() formKeyMap {
	return formKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Cycle: key.NewBinding(
			key.WithKeys("left", "right"),
			key.WithHelp("←/→", "choose device"),
		),
		Browse: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "browse"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s", "enter"),
			key.WithHelp("ctrl+s", "upload"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

// ShortHelp returns keybindings to show in the footer.
func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Cycle, k.Browse, k.Submit, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view.
func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
