package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Tab       key.Binding
	ShiftTab  key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Enter     key.Binding
	Esc       key.Binding
	Delete    key.Binding
	Filter    key.Binding
	Order     key.Binding
	Direction key.Binding
	Refresh   key.Binding
	Run       key.Binding
	End       key.Binding
	Export    key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	ShiftTab:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "prev machine")),
	Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "next machine")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/submit")),
	Esc:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Delete:    key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete")),
	Filter:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
	Order:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order by")),
	Direction: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "direction")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Run:       key.NewBinding(key.WithKeys("enter", "R"), key.WithHelp("enter", "run on machine")),
	End:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end simulation")),
	Export:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "export chart png")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Up, k.Down, k.Left, k.Right},
		{k.Enter, k.Delete, k.Filter, k.Order, k.Direction, k.Refresh},
		{k.Run, k.End, k.Export, k.Esc, k.Help, k.Quit},
	}
}
