package ui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/desertthunder/pureplaylist/internal/tasks"
)

// ViewState identifies which screen is active
type ViewState int

const (
	PlaylistView ViewState = iota
	TrackView
	FilterView
	SaveView
	ResultView
)

const (
	filterTitle = iota
	filterAlbum
	filterArtist
)

// Model is the root bubbletea model for the playlist editor.
type Model struct {
	ctx      context.Context
	editor   *tasks.Editor
	progress <-chan tasks.ProgressUpdate
	logger   *log.Logger

	view   ViewState
	width  int
	height int

	playlists list.Model
	tracks    table.Model
	rows      []models.AnnotatedTrack
	search    textinput.Model
	searching bool
	filters   []textinput.Model
	focus     int
	name      textinput.Model
	naming    bool
	spinner   spinner.Model
	help      help.Model
	keys      keyMap

	loading    bool
	committing bool
	status     string
	last       tasks.ProgressUpdate
	visible    [2]int
	result     *tasks.CommitResult
	err        error
}

// NewModel creates the editor model. progress should be the channel the editor was built with.
func NewModel(ctx context.Context, editor *tasks.Editor, progress <-chan tasks.ProgressUpdate, logger *log.Logger) Model {
	delegate := list.NewDefaultDelegate()
	playlists := list.New([]list.Item{}, delegate, 0, 0)
	playlists.Title = "Playlists"
	playlists.SetShowHelp(false)
	playlists.SetFilteringEnabled(false)
	playlists.SetShowStatusBar(true)

	tracks := table.New(table.WithColumns(trackColumns()), table.WithFocused(true), table.WithHeight(20))
	ts := table.DefaultStyles()
	ts.Header = ts.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	ts.Selected = styles.selected
	tracks.SetStyles(ts)

	search := textinput.New()
	search.Placeholder = "search playlists"
	search.Prompt = "/ "

	prompts := []string{"Title: ", "Album: ", "Artist: "}
	filters := make([]textinput.Model, len(prompts))
	for i, p := range prompts {
		filters[i] = textinput.New()
		filters[i].Prompt = p
		filters[i].Placeholder = "keywords, comma separated"
	}

	name := textinput.New()
	name.Prompt = "Name: "
	name.CharLimit = 100

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:       ctx,
		editor:    editor,
		progress:  progress,
		logger:    logger,
		view:      PlaylistView,
		playlists: playlists,
		tracks:    tracks,
		search:    search,
		filters:   filters,
		name:      name,
		spinner:   s,
		help:      help.New(),
		keys:      newKeyMap(),
		loading:   true,
		visible:   [2]int{-1, -1},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadPlaylists(), m.waitForProgress(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case Msg:
		return m.handleMsg(msg)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case PlaylistView:
			return m.updatePlaylists(msg)
		case TrackView:
			return m.updateTracks(msg)
		case FilterView:
			return m.updateFilter(msg)
		case SaveView:
			return m.updateSave(msg)
		case ResultView:
			return m.updateResult(msg)
		}
	}
	return m, nil
}

func (m Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsLoaded:
		m.loading = false
		if msg.err != nil {
			m.status = styles.err.Render("Failed to load playlists: " + msg.err.Error())
			return m, nil
		}
		m.refreshPlaylists()
	case MsgPlaylistOpened:
		if errors.Is(msg.err, shared.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.status = styles.err.Render("Failed to open playlist: " + msg.err.Error())
			return m, nil
		}
		m.view = TrackView
		m.status = ""
		m.visible = [2]int{-1, -1}
		m.refreshTracks()
		m.tracks.SetCursor(0)
		return m, m.enrichVisible()
	case MsgProgressUpdate:
		m.last = msg.data.(tasks.ProgressUpdate)
		cmds := []tea.Cmd{m.waitForProgress()}
		switch m.last.Phase {
		case tasks.FetchPlaylists:
			m.refreshPlaylists()
		case tasks.FetchTracks, tasks.FetchFeatures:
			m.refreshTracks()
			if m.last.Phase == tasks.FetchTracks {
				m.visible = [2]int{-1, -1}
				cmds = append(cmds, m.enrichVisible())
			}
		}
		return m, tea.Batch(cmds...)
	case MsgFeaturesLoaded:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.status = styles.warn.Render("Audio features unavailable: " + msg.err.Error())
		}
		m.refreshTracks()
	case MsgFavoriteToggled:
		if msg.err != nil {
			m.status = styles.err.Render("Could not save favorites: " + msg.err.Error())
			return m, nil
		}
		if msg.data.(bool) {
			m.status = styles.ok.Render("Added to favorites")
		} else {
			m.status = "Removed from favorites"
		}
		m.refreshPlaylists()
	case MsgCommitted:
		m.committing = false
		m.result, _ = msg.data.(*tasks.CommitResult)
		m.err = msg.err
		m.view = ResultView
		m.refreshTracks()
	}
	return m, nil
}

func (m Model) updatePlaylists(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter", "esc":
			m.searching = false
			m.search.Blur()
			if msg.String() == "esc" {
				m.search.SetValue("")
				m.editor.SetPlaylistSearch("")
				m.refreshPlaylists()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.editor.SetPlaylistSearch(m.search.Value())
		m.refreshPlaylists()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.sort):
		m.editor.SetPlaylistSort(m.editor.PlaylistSort().Next())
		m.refreshPlaylists()
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.loading = true
		return m, m.loadPlaylists()
	case key.Matches(msg, m.keys.favorite):
		if pl, ok := m.selectedPlaylist(); ok {
			return m, m.toggleFavorite(pl.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.selectedPlaylist(); ok {
			m.loading = true
			m.status = "Loading " + pl.Name + "..."
			return m, m.openPlaylist(pl.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlists, cmd = m.playlists.Update(msg)
	return m, cmd
}

func (m Model) updateTracks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.editor.MultiSelect() {
			m.editor.SetMultiSelect(false)
			m.refreshTracks()
			return m, nil
		}
		m.view = PlaylistView
		m.status = ""
		m.refreshPlaylists()
		return m, nil
	case key.Matches(msg, m.keys.filter):
		f := m.editor.Filter()
		m.filters[filterTitle].SetValue(strings.Join(f.TitleKeywords, ", "))
		m.filters[filterAlbum].SetValue(strings.Join(f.Albums, ", "))
		m.filters[filterArtist].SetValue(strings.Join(f.Artists, ", "))
		m.focus = filterTitle
		m.view = FilterView
		return m, m.focusFilter()
	case key.Matches(msg, m.keys.clear):
		m.editor.ClearFilter()
		m.refreshTracks()
		return m, nil
	case key.Matches(msg, m.keys.sortBy):
		n := int(msg.Runes[0] - '1')
		fields := models.SortFields()
		if n >= 0 && n < len(fields) {
			spec := m.editor.ToggleSort(fields[n])
			m.status = "Sorted by " + spec.String()
			m.refreshTracks()
			m.visible = [2]int{-1, -1}
			return m, m.enrichVisible()
		}
		return m, nil
	case key.Matches(msg, m.keys.multi):
		m.editor.SetMultiSelect(!m.editor.MultiSelect())
		m.refreshTracks()
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		if t, ok := m.currentTrack(); ok && m.editor.MultiSelect() {
			m.editor.ToggleSelect(t.URI)
			m.refreshTracks()
			m.tracks.MoveDown(1)
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if m.editor.MultiSelect() {
			removed := m.editor.DeleteSelected()
			m.status = fmt.Sprintf("Deleted %d tracks", len(removed))
		} else if t, ok := m.currentTrack(); ok {
			m.editor.Delete(t.URI)
			m.status = "Deleted " + t.Title
		}
		m.refreshTracks()
		return m, m.enrichVisible()
	case key.Matches(msg, m.keys.removeF):
		removed := m.editor.DeleteFiltered()
		m.status = fmt.Sprintf("Deleted %d filtered tracks", len(removed))
		m.refreshTracks()
		return m, m.enrichVisible()
	case key.Matches(msg, m.keys.undo):
		pending := slices.Collect(maps.Keys(m.editor.Pending()))
		m.editor.Restore(pending...)
		m.status = fmt.Sprintf("Restored %d tracks", len(pending))
		m.refreshTracks()
		return m, nil
	case key.Matches(msg, m.keys.enrich):
		return m, m.enrichAll()
	case key.Matches(msg, m.keys.reload):
		if pl := m.editor.Current(); pl != nil {
			m.loading = true
			return m, m.openPlaylist(pl.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.save):
		m.naming = false
		m.name.Blur()
		m.view = SaveView
		return m, nil
	}

	var cmd tea.Cmd
	m.tracks, cmd = m.tracks.Update(msg)
	return m, tea.Batch(cmd, m.enrichVisible())
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = TrackView
		return m, nil
	case "tab", "down", "shift+tab", "up":
		if msg.String() == "tab" || msg.String() == "down" {
			m.focus = (m.focus + 1) % len(m.filters)
		} else {
			m.focus = (m.focus + len(m.filters) - 1) % len(m.filters)
		}
		return m, m.focusFilter()
	case "enter":
		m.editor.SetFilter(models.FilterCriteria{
			TitleKeywords: models.ParseKeywords(m.filters[filterTitle].Value()),
			Albums:        models.ParseKeywords(m.filters[filterAlbum].Value()),
			Artists:       models.ParseKeywords(m.filters[filterArtist].Value()),
		})
		m.view = TrackView
		m.refreshTracks()
		m.tracks.SetCursor(0)
		m.visible = [2]int{-1, -1}
		return m, m.enrichVisible()
	}

	var cmd tea.Cmd
	m.filters[m.focus], cmd = m.filters[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateSave(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.committing {
		return m, nil
	}
	if m.naming {
		switch msg.String() {
		case "esc":
			m.naming = false
			m.name.Blur()
			return m, nil
		case "enter":
			name := strings.TrimSpace(m.name.Value())
			if name == "" {
				m.status = styles.warn.Render("Enter a name for the new playlist")
				return m, nil
			}
			m.committing = true
			return m, m.commit(models.CreateNew, name)
		}
		var cmd tea.Cmd
		m.name, cmd = m.name.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.view = TrackView
		return m, nil
	case key.Matches(msg, m.keys.update):
		m.committing = true
		return m, m.commit(models.UpdateExisting, "")
	case key.Matches(msg, m.keys.create):
		m.naming = true
		if pl := m.editor.Current(); pl != nil {
			m.name.SetValue(pl.Name + " (edited)")
		}
		return m, m.name.Focus()
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	m.view = TrackView
	m.status = ""
	return m, m.enrichVisible()
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.playlists.SetSize(w, max(h-6, 5))
	m.tracks.SetHeight(max(h-8, 5))
	m.tracks.SetWidth(w)
	m.help.Width = w
}

func (m *Model) refreshPlaylists() {
	m.playlists.SetItems(playlistItems(m.editor.Playlists()))
}

func (m *Model) refreshTracks() {
	cursor := m.tracks.Cursor()
	m.rows = m.editor.Tracks()
	m.tracks.SetRows(trackRows(m.rows))
	if cursor >= len(m.rows) {
		cursor = max(len(m.rows)-1, 0)
	}
	m.tracks.SetCursor(cursor)
}

func (m Model) selectedPlaylist() (models.AnnotatedPlaylist, bool) {
	item, ok := m.playlists.SelectedItem().(playlistItem)
	if !ok {
		return models.AnnotatedPlaylist{}, false
	}
	return item.playlist, true
}

func (m Model) currentTrack() (models.AnnotatedTrack, bool) {
	c := m.tracks.Cursor()
	if c < 0 || c >= len(m.rows) {
		return models.AnnotatedTrack{}, false
	}
	return m.rows[c], true
}

func (m *Model) focusFilter() tea.Cmd {
	for i := range m.filters {
		m.filters[i].Blur()
	}
	return m.filters[m.focus].Focus()
}

// visibleRange approximates the rows on screen as one table height either side of the cursor. Both ends are inclusive.
func (m Model) visibleRange() (int, int) {
	h := m.tracks.Height()
	c := m.tracks.Cursor()
	return max(c-h, 0), min(c+h, len(m.rows)-1)
}

// enrichVisible requests features for the rows around the cursor when that window has moved.
func (m *Model) enrichVisible() tea.Cmd {
	start, stop := m.visibleRange()
	if start > stop || (m.visible[0] == start && m.visible[1] == stop) {
		return nil
	}
	m.visible = [2]int{start, stop}
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return featuresLoadedMsg(editor.VisibleRange(ctx, start, stop))
	}
}

func (m Model) enrichAll() tea.Cmd {
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return featuresLoadedMsg(editor.EnrichAll(ctx))
	}
}

func (m Model) loadPlaylists() tea.Cmd {
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return playlistsLoadedMsg(editor.LoadPlaylists(ctx))
	}
}

func (m Model) openPlaylist(id string) tea.Cmd {
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return playlistOpenedMsg(editor.OpenPlaylist(ctx, id))
	}
}

func (m Model) toggleFavorite(id string) tea.Cmd {
	ctx, editor := m.ctx, m.editor
	return func() tea.Msg {
		return favoriteToggledMsg(editor.ToggleFavorite(ctx, id))
	}
}

func (m Model) commit(mode models.CommitMode, name string) tea.Cmd {
	ctx, editor, logger := m.ctx, m.editor, m.logger
	return func() tea.Msg {
		result, err := editor.Commit(ctx, mode, name)
		if err != nil {
			logger.Error("commit failed", "mode", mode, "error", err)
		}
		return committedMsg(result, err)
	}
}

// waitForProgress blocks until the next progress update arrives.
func (m Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	ch := m.progress
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m Model) View() string {
	var b strings.Builder
	switch m.view {
	case PlaylistView:
		b.WriteString(m.playlistView())
	case TrackView:
		b.WriteString(m.trackView())
	case FilterView:
		b.WriteString(m.filterView())
	case SaveView:
		b.WriteString(m.saveView())
	case ResultView:
		b.WriteString(m.resultView())
	}
	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	return b.String()
}

func (m Model) playlistView() string {
	var b strings.Builder
	if m.loading && len(m.playlists.Items()) == 0 {
		b.WriteString(m.spinner.View() + " Loading playlists...\n")
	}
	b.WriteString(m.playlists.View())
	b.WriteString("\n")
	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View() + "\n")
	}
	b.WriteString(styles.help.Render("sort: "+m.editor.PlaylistSort().String()) + "\n")
	b.WriteString(m.help.View(m.keys.playlistHelp()))
	return b.String()
}

func (m Model) trackHeader() string {
	pl := m.editor.Current()
	if pl == nil {
		return ""
	}
	state := m.editor.TracksState()
	header := styles.title.Render(pl.Name)

	loaded := fmt.Sprintf("%d/%d tracks", state.Loaded, state.Total)
	if state.IsLoading || state.IsLoadingMore {
		loaded = fmt.Sprintf("%s %s (%.0f%%)", m.spinner.View(), loaded, state.Progress)
	}
	if state.HasError {
		loaded += styles.err.Render(" partial: " + state.Err.Error())
	}

	parts := []string{loaded, "sort: " + m.editor.Sort().String()}
	if f := m.editor.Filter(); !f.IsEmpty() {
		parts = append(parts, "filter: "+f.String())
	}
	if n := len(m.editor.Pending()); n > 0 {
		parts = append(parts, styles.warn.Render(fmt.Sprintf("%d pending deletes", n)))
	}
	if m.editor.MultiSelect() {
		parts = append(parts, styles.ok.Render("MULTI-SELECT"))
	}
	return header + "\n" + styles.header.Render(strings.Join(parts, " • "))
}

func (m Model) trackView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.trackHeader(),
		m.tracks.View(),
		m.help.View(m.keys.trackHelp()),
	)
}

func (m Model) filterView() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Filter tracks") + "\n")
	for _, in := range m.filters {
		b.WriteString(in.View() + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys.filterHelp()))
	return b.String()
}

func (m Model) saveView() string {
	pl := m.editor.Current()
	if pl == nil {
		return styles.err.Render("No playlist open")
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Save changes") + "\n")
	kept := 0
	for _, t := range m.rows {
		if !t.IsDeleted {
			kept++
		}
	}
	fmt.Fprintf(&b, "Playlist: %s (%s)\n", pl.Name, shared.VisibilityString(pl.Public))
	fmt.Fprintf(&b, "Tracks: %d kept, %d deleted\n", kept, len(m.editor.Pending()))
	fmt.Fprintf(&b, "Order: %s\n\n", m.editor.Sort())

	switch {
	case m.committing:
		b.WriteString(m.spinner.View() + " " + m.last.Message + "\n")
	case m.naming:
		b.WriteString(m.name.View() + "\n\n")
		b.WriteString(styles.help.Render("enter: create • esc: back"))
	default:
		b.WriteString(m.help.View(m.keys.saveHelp()))
	}
	return b.String()
}

func (m Model) resultView() string {
	var b strings.Builder
	if m.err != nil {
		b.WriteString(styles.err.Render("✗ Commit failed") + "\n\n")
		b.WriteString(m.err.Error() + "\n")
		var ce *tasks.CommitError
		if errors.As(m.err, &ce) && ce.Created {
			fmt.Fprintf(&b, "\nThe new playlist %s was created with %d tracks.\n", ce.PlaylistID, ce.ItemsApplied)
		}
	} else if m.result != nil {
		b.WriteString(styles.ok.Render("✓ Saved") + "\n\n")
		if m.result.Created {
			fmt.Fprintf(&b, "Created playlist %s\n", m.result.PlaylistID)
		}
		switch {
		case m.result.DeleteOnly:
			fmt.Fprintf(&b, "Removed %d tracks in %d requests\n", m.result.ItemsApplied, m.result.Chunks)
		default:
			fmt.Fprintf(&b, "Wrote %d tracks in %d requests\n", m.result.ItemsApplied, m.result.Chunks)
		}
		if m.result.SkippedLocal > 0 {
			fmt.Fprintf(&b, "Skipped %d local files\n", m.result.SkippedLocal)
		}
	}
	b.WriteString("\n" + styles.help.Render("press any key to continue • q: quit"))
	return b.String()
}
