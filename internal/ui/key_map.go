package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	search   key.Binding
	favorite key.Binding
	sort     key.Binding
	reload   key.Binding
	filter   key.Binding
	clear    key.Binding
	sortBy   key.Binding
	multi    key.Binding
	toggle   key.Binding
	remove   key.Binding
	removeF  key.Binding
	undo     key.Binding
	enrich   key.Binding
	save     key.Binding
	update   key.Binding
	create   key.Binding
	next     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear filter")),
		sortBy:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "sort #/title/album/date/bpm/time")),
		multi:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "multi-select")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		remove:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		removeF:  key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete filtered")),
		undo:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "restore all")),
		enrich:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "load all bpm")),
		save:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save")),
		update:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "update playlist")),
		create:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "save as new")),
		next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// helpKeys adapts a set of bindings to [help.KeyMap].
type helpKeys struct {
	short []key.Binding
	full  [][]key.Binding
}

func (h helpKeys) ShortHelp() []key.Binding  { return h.short }
func (h helpKeys) FullHelp() [][]key.Binding { return h.full }

func (k keyMap) playlistHelp() helpKeys {
	return helpKeys{
		short: []key.Binding{k.enter, k.search, k.favorite, k.sort, k.quit},
		full: [][]key.Binding{
			{k.up, k.down, k.enter},
			{k.search, k.favorite, k.sort, k.reload},
			{k.quit},
		},
	}
}

func (k keyMap) trackHelp() helpKeys {
	return helpKeys{
		short: []key.Binding{k.filter, k.sortBy, k.multi, k.remove, k.save, k.back},
		full: [][]key.Binding{
			{k.up, k.down, k.filter, k.clear, k.sortBy},
			{k.multi, k.toggle, k.remove, k.removeF, k.undo},
			{k.enrich, k.reload, k.save, k.back, k.quit},
		},
	}
}

func (k keyMap) filterHelp() helpKeys {
	return helpKeys{short: []key.Binding{k.next, k.enter, k.back}}
}

func (k keyMap) saveHelp() helpKeys {
	return helpKeys{short: []key.Binding{k.update, k.create, k.back}}
}
