package ui

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/repositories"
	"github.com/desertthunder/pureplaylist/internal/tasks"
	tu "github.com/desertthunder/pureplaylist/internal/testing"
)

func newTestModel(t *testing.T) (Model, *tasks.Editor, *tu.FakeService) {
	t.Helper()
	svc := tu.NewFakeService("me")
	svc.AddPlaylist(models.Playlist{ID: "p1", Name: "Mix", OwnerID: "me"}, tu.MakeTracks(5, "Live at Leeds", "Tommy")...)
	svc.AddPlaylist(models.Playlist{ID: "p2", Name: "Other", OwnerID: "me"})

	logger := log.New(io.Discard)
	editor, err := tasks.NewEditor(context.Background(), tasks.EditorOpts{
		Service: svc,
		Store:   repositories.NewMemoryStore(),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewEditor() error = %v", err)
	}

	m := NewModel(context.Background(), editor, nil, logger)
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, editor, svc
}

// step applies msg and returns the updated model.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// stepRun applies msg, runs the returned command and applies its message.
func stepRun(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("Update(%v) returned no command", msg)
	}
	return step(t, m, cmd())
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m = step(t, m, keyMsg(string(r)))
	}
	return m
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// openMix loads playlists and opens the first one.
func openMix(t *testing.T, m Model, editor *tasks.Editor) Model {
	t.Helper()
	m = step(t, m, m.loadPlaylists()())
	if err := editor.WaitPlaylists(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	m.refreshPlaylists()
	m = stepRun(t, m, keyMsg("enter"))
	if err := editor.WaitTracks(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	m.refreshTracks()
	return m
}

func TestModel(t *testing.T) {
	t.Run("loads playlists", func(t *testing.T) {
		m, editor, _ := newTestModel(t)
		m = step(t, m, m.loadPlaylists()())
		_ = editor.WaitPlaylists(waitCtx(t))
		m.refreshPlaylists()

		if m.loading {
			t.Error("still loading")
		}
		if got := len(m.playlists.Items()); got != 2 {
			t.Errorf("items = %d, want 2", got)
		}
		if !strings.Contains(m.View(), "Mix") {
			t.Error("view is missing the playlist name")
		}
	})

	t.Run("load failure is shown", func(t *testing.T) {
		m, _, svc := newTestModel(t)
		svc.Errs = map[string]error{"ListPlaylists": context.DeadlineExceeded}
		m = step(t, m, m.loadPlaylists()())
		if !strings.Contains(m.status, "Failed to load playlists") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("search and sort", func(t *testing.T) {
		m, editor, _ := newTestModel(t)
		m = step(t, m, m.loadPlaylists()())
		_ = editor.WaitPlaylists(waitCtx(t))

		m = step(t, m, keyMsg("s"))
		if editor.PlaylistSort() != models.PlaylistSortNameAsc {
			t.Errorf("sort = %v", editor.PlaylistSort())
		}

		m = step(t, m, keyMsg("/"))
		if !m.searching {
			t.Fatal("search not active")
		}
		m = typeText(t, m, "oth")
		if got := len(m.playlists.Items()); got != 1 {
			t.Errorf("items = %d, want 1", got)
		}

		m = step(t, m, keyMsg("esc"))
		if m.searching || len(m.playlists.Items()) != 2 {
			t.Errorf("search not cleared: %d items", len(m.playlists.Items()))
		}
	})

	t.Run("favorite toggles", func(t *testing.T) {
		m, editor, _ := newTestModel(t)
		m = step(t, m, m.loadPlaylists()())
		_ = editor.WaitPlaylists(waitCtx(t))
		m.refreshPlaylists()

		m = stepRun(t, m, keyMsg("f"))
		if favs := editor.Favorites(); len(favs) != 1 || favs[0] != "p1" {
			t.Errorf("Favorites() = %v", favs)
		}
		if !strings.Contains(m.status, "Added") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("opens a playlist", func(t *testing.T) {
		m, editor, _ := newTestModel(t)
		m = openMix(t, m, editor)

		if m.view != TrackView {
			t.Fatalf("view = %v, want TrackView", m.view)
		}
		if len(m.rows) != 5 {
			t.Errorf("rows = %d, want 5", len(m.rows))
		}
		if !strings.Contains(m.View(), "5/5 tracks") {
			t.Errorf("header missing counts:\n%s", m.View())
		}

		m = step(t, m, keyMsg("esc"))
		if m.view != PlaylistView {
			t.Errorf("view = %v, want PlaylistView", m.view)
		}
	})

	t.Run("deletes and restores", func(t *testing.T) {
		m, editor, svc := newTestModel(t)
		m = openMix(t, m, editor)

		m = step(t, m, keyMsg("d"))
		if _, ok := editor.Pending()["spotify:track:t1"]; !ok || len(editor.Pending()) != 1 {
			t.Errorf("Pending() = %v", editor.Pending())
		}

		m = step(t, m, keyMsg("m"))
		m.tracks.SetCursor(1)
		m = step(t, m, keyMsg(" "))
		m = step(t, m, keyMsg(" "))
		m = step(t, m, keyMsg("d"))
		if got := len(editor.Pending()); got != 3 {
			t.Errorf("pending = %d, want 3", got)
		}

		m = step(t, m, keyMsg("u"))
		if got := len(editor.Pending()); got != 0 {
			t.Errorf("pending after restore = %d", got)
		}
		if n := len(svc.CallsTo("DeleteTracks")); n != 0 {
			t.Errorf("remote deletes = %d, want 0", n)
		}
	})

	t.Run("filters and sorts", func(t *testing.T) {
		m, editor, _ := newTestModel(t)
		m = openMix(t, m, editor)

		m = step(t, m, keyMsg("/"))
		if m.view != FilterView {
			t.Fatalf("view = %v", m.view)
		}
		m = step(t, m, keyMsg("tab"))
		m = typeText(t, m, "leeds")
		m = step(t, m, keyMsg("enter"))

		if f := editor.Filter(); len(f.Albums) != 1 || f.Albums[0] != "leeds" {
			t.Errorf("Filter() = %+v", f)
		}
		filtered := 0
		for _, r := range m.rows {
			if r.IsFiltered {
				filtered++
			}
		}
		if filtered != 3 {
			t.Errorf("filtered rows = %d, want 3", filtered)
		}

		m = step(t, m, keyMsg("D"))
		if got := len(editor.Pending()); got != 3 {
			t.Errorf("pending = %d, want 3", got)
		}

		m = step(t, m, keyMsg("c"))
		if !editor.Filter().IsEmpty() {
			t.Error("filter not cleared")
		}

		m = step(t, m, keyMsg("2"))
		if s := editor.Sort(); s.Field != models.SortByTitle {
			t.Errorf("Sort() = %v", s)
		}
	})

	t.Run("saves as a new playlist", func(t *testing.T) {
		m, editor, svc := newTestModel(t)
		m = openMix(t, m, editor)
		m = step(t, m, keyMsg("d"))

		m = step(t, m, keyMsg("w"))
		if m.view != SaveView {
			t.Fatalf("view = %v", m.view)
		}
		m = step(t, m, keyMsg("n"))
		if got := m.name.Value(); got != "Mix (edited)" {
			t.Errorf("default name = %q", got)
		}
		m = stepRun(t, m, keyMsg("enter"))

		if m.view != ResultView || m.err != nil {
			t.Fatalf("view = %v, err = %v", m.view, m.err)
		}
		if m.result == nil || !m.result.Created {
			t.Fatalf("result = %+v", m.result)
		}
		if got := svc.Stored(m.result.PlaylistID); len(got) != 4 {
			t.Errorf("stored = %v", got)
		}
		if !strings.Contains(m.View(), "Created playlist") {
			t.Errorf("result view:\n%s", m.View())
		}

		m = step(t, m, keyMsg("x"))
		if m.view != TrackView {
			t.Errorf("view = %v, want TrackView", m.view)
		}
	})

	t.Run("shows commit errors", func(t *testing.T) {
		m, editor, svc := newTestModel(t)
		m = openMix(t, m, editor)
		svc.Errs = map[string]error{"DeleteTracks": context.DeadlineExceeded}
		m = step(t, m, keyMsg("d"))

		m = step(t, m, keyMsg("w"))
		m = stepRun(t, m, keyMsg("u"))
		if m.err == nil || !strings.Contains(m.View(), "Commit failed") {
			t.Errorf("err = %v, view:\n%s", m.err, m.View())
		}
	})
}
