package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/repositories"
	"github.com/desertthunder/pureplaylist/internal/shared"
	tu "github.com/desertthunder/pureplaylist/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

type memTokens struct {
	token   *oauth2.Token
	saved   int
	cleared bool
}

func (m *memTokens) Load() (*oauth2.Token, error) { return m.token, nil }
func (m *memTokens) Save(t *oauth2.Token) error {
	m.token = t
	m.saved++
	return nil
}
func (m *memTokens) Clear() error {
	m.token = nil
	m.cleared = true
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	records []*models.CommitRecord
}

func (m *memHistory) Create(_ context.Context, record *models.CommitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	m.records = append(m.records, record)
	return nil
}

func (m *memHistory) List(_ context.Context, playlistID string, limit int) ([]*models.CommitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CommitRecord
	for _, r := range slices.Backward(m.records) {
		if playlistID != "" && r.PlaylistID != playlistID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type fixture struct {
	runner  *Runner
	svc     *tu.FakeService
	tokens  *memTokens
	history *memHistory
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := tu.NewFakeService("me")
	svc.AddPlaylist(models.Playlist{ID: "p1", Name: "Mix", OwnerID: "me", OwnerName: "me"}, tu.MakeTracks(5, "Live at Leeds", "Tommy")...)
	svc.AddPlaylist(models.Playlist{ID: "p2", Name: "Alpha", OwnerID: "me"}, tu.MakeTracks(2)...)
	svc.AddPlaylist(models.Playlist{ID: "p3", Name: "Shared", OwnerID: "other"}, tu.MakeTracks(3)...)

	f := &fixture{
		svc:     svc,
		tokens:  &memTokens{token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}},
		history: &memHistory{},
		out:     &bytes.Buffer{},
	}
	f.runner = NewRunner(RunnerOpts{
		Config:  shared.DefaultConfig(),
		Service: svc,
		Tokens:  f.tokens,
		Store:   repositories.NewMemoryStore(),
		History: f.history,
		Logger:  log.New(io.Discard),
		Output:  f.out,
	})
	return f
}

// run executes args against a fresh command tree and returns the output.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	f.out.Reset()
	app := &cli.Command{
		Name:     "ppl",
		Flags:    rootFlags(),
		Before:   f.runner.Before,
		Commands: f.runner.register(),
		Writer:   io.Discard,
	}
	err := app.Run(context.Background(), append([]string{"ppl"}, args...))
	return f.out.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("applies defaults", func(t *testing.T) {
			r := NewRunner(RunnerOpts{})
			if r.logger == nil || r.output == nil || r.httpClient == nil {
				t.Error("expected defaults to be set")
			}
			if r.configPath != "config.toml" {
				t.Errorf("configPath = %q", r.configPath)
			}
		})

		t.Run("registers commands", func(t *testing.T) {
			var names []string
			for _, c := range NewRunner(RunnerOpts{}).register() {
				names = append(names, c.Name)
			}
			want := []string{"setup", "auth", "playlists", "tracks", "history", "tui"}
			if !slices.Equal(names, want) {
				t.Errorf("commands = %v, want %v", names, want)
			}
		})
	})

	t.Run("Config", func(t *testing.T) {
		t.Run("loads the file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			cfg := shared.DefaultConfig()
			cfg.Client.PageSize = 20
			if err := shared.SaveConfig(path, cfg); err != nil {
				t.Fatal(err)
			}

			r := NewRunner(RunnerOpts{ConfigPath: path, Logger: log.New(io.Discard)})
			got, err := r.Config()
			if err != nil {
				t.Fatalf("Config() error = %v", err)
			}
			if got.Client.PageSize != 20 {
				t.Errorf("PageSize = %d", got.Client.PageSize)
			}
		})

		t.Run("falls back to defaults", func(t *testing.T) {
			r := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")})
			got, err := r.Config()
			if err != nil || got == nil {
				t.Fatalf("Config() = %v, %v", got, err)
			}
		})
	})

	t.Run("Service", func(t *testing.T) {
		t.Run("requires credentials", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.Credentials.Spotify.ClientID = ""
			r := NewRunner(RunnerOpts{Config: cfg, Tokens: &memTokens{}})
			if _, err := r.Service(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("error = %v, want ErrMissingCredentials", err)
			}
		})

		t.Run("requires a stored token", func(t *testing.T) {
			r := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Tokens: &memTokens{}})
			if _, err := r.Service(context.Background()); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("error = %v, want ErrNotAuthenticated", err)
			}
		})

		t.Run("authenticates from the token store", func(t *testing.T) {
			tokens := &memTokens{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}
			r := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Tokens: tokens})
			svc, err := r.Service(context.Background())
			if err != nil {
				t.Fatalf("Service() error = %v", err)
			}
			if svc.Name() != "Spotify" {
				t.Errorf("Name() = %q", svc.Name())
			}
		})
	})

	t.Run("write helpers", func(t *testing.T) {
		r := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := r.writeJSON(map[string]int{"a": 1}, false); err == nil {
			t.Error("expected writeJSON error")
		}
		if err := r.writePlain("x"); err == nil {
			t.Error("expected writePlain error")
		}

		var buf bytes.Buffer
		r = NewRunner(RunnerOpts{Output: &buf})
		r.writePlainHeader("Title")
		if !strings.Contains(buf.String(), "Title\n") {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestPlaylistCommands(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "playlists", "list")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		if !strings.Contains(out, "Found 3 playlists") || !strings.Contains(out, "ID: p1") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("list as json with sort and search", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "playlists", "list", "--json", "--sort", "name-asc", "--search", "a")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}

		var got []models.AnnotatedPlaylist
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid json: %v\n%s", err, out)
		}
		var names []string
		for _, p := range got {
			names = append(names, p.Name)
		}
		if !slices.Equal(names, []string{"Alpha", "Shared"}) {
			t.Errorf("names = %v", names)
		}
	})

	t.Run("rejects an unknown sort", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "playlists", "list", "--sort", "bogus"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("error = %v, want ErrInvalidFlag", err)
		}
	})

	t.Run("favorite toggles and lists first", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "playlists", "favorite", "p3")
		if err != nil || !strings.Contains(out, "added") {
			t.Fatalf("favorite = %q, %v", out, err)
		}

		out, _ = f.run(t, "playlists", "list")
		if !strings.Contains(out, "1. ★ Shared") {
			t.Errorf("favorite not first:\n%s", out)
		}

		out, err = f.run(t, "playlists", "favorite", "p3")
		if err != nil || !strings.Contains(out, "removed") {
			t.Errorf("second favorite = %q, %v", out, err)
		}
	})

	t.Run("favorite needs an id", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "playlists", "favorite"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
	})
}

func TestTrackCommands(t *testing.T) {
	t.Run("list as text marks filtered rows", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "tracks", "list", "--id", "p1", "--album", "tommy")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		lines := strings.Split(out, "\n")
		var marked []string
		for _, l := range lines {
			if strings.HasPrefix(l, "*") {
				marked = append(marked, l)
			}
		}
		if len(marked) != 2 || !strings.Contains(marked[0], "Track 2") {
			t.Errorf("marked = %v\n%s", marked, out)
		}
	})

	t.Run("list as csv", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "tracks", "list", "--id", "p1", "--format", "csv", "--sort", "title", "--order", "desc")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 6 || !strings.HasPrefix(lines[0], "Position,Index,Title") {
			t.Fatalf("csv:\n%s", out)
		}
		if !strings.Contains(lines[1], "Track 5") {
			t.Errorf("first row = %q", lines[1])
		}
	})

	t.Run("list writes files", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "mix.json")
		out, err := f.run(t, "tracks", "list", "--id", "p1", "--format", "json", "--output", path)
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(out, "Wrote "+path) {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("list rejects bad flags", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "tracks", "list", "--id", "p1", "--sort", "color"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("sort error = %v", err)
		}
		if _, err := f.run(t, "tracks", "list", "--id", "p1", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("format error = %v", err)
		}
		if _, err := f.run(t, "tracks", "list", "--id", "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("missing playlist error = %v", err)
		}
	})

	t.Run("save removes tracks", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "tracks", "save", "--id", "p1", "--remove", "spotify:track:t1")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		if got := f.svc.Stored("p1"); len(got) != 4 || slices.Contains(got, "spotify:track:t1") {
			t.Errorf("stored = %v", got)
		}
		if !strings.Contains(out, "Saved Mix") {
			t.Errorf("output:\n%s", out)
		}
		if len(f.history.records) != 1 || f.history.records[0].Status != models.CommitSucceeded {
			t.Errorf("history = %+v", f.history.records)
		}
	})

	t.Run("save as new playlist in sorted order", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "tracks", "save", "--id", "p1", "--sort", "title", "--order", "desc", "--new", "Reversed")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		want := []string{"spotify:track:t5", "spotify:track:t4", "spotify:track:t3", "spotify:track:t2", "spotify:track:t1"}
		if got := f.svc.Stored("new-1"); !slices.Equal(got, want) {
			t.Errorf("stored = %v", got)
		}
		if !strings.Contains(out, "New playlist: Reversed (new-1)") {
			t.Errorf("output:\n%s", out)
		}
		if got := f.svc.Stored("p1"); len(got) != 5 {
			t.Errorf("source changed: %v", got)
		}
	})

	t.Run("save removes filtered tracks", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "tracks", "save", "--id", "p1", "--album", "leeds", "--remove-filtered"); err != nil {
			t.Fatalf("run error = %v", err)
		}
		want := []string{"spotify:track:t2", "spotify:track:t4"}
		if got := f.svc.Stored("p1"); !slices.Equal(got, want) {
			t.Errorf("stored = %v", got)
		}
	})

	t.Run("remove-filtered needs a filter", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "tracks", "save", "--id", "p1", "--remove-filtered"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("error = %v, want ErrInvalidFlag", err)
		}
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "tracks", "save", "--id", "p1", "--remove", "spotify:track:t2", "--dry-run")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		for _, m := range []string{"ReplaceTracks", "AppendTracks", "DeleteTracks", "CreatePlaylist"} {
			if n := len(f.svc.CallsTo(m)); n != 0 {
				t.Errorf("%s called %d times", m, n)
			}
		}
		if !strings.Contains(out, "Tracks to write: 4") || !strings.Contains(out, "Tracks to remove: 1") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("refuses to update a playlist owned by someone else", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.run(t, "tracks", "save", "--id", "p3", "--remove", "spotify:track:t1")
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("error = %v, want ErrPermissionDenied", err)
		}
		if n := len(f.svc.CallsTo("DeleteTracks")); n != 0 {
			t.Errorf("DeleteTracks called %d times", n)
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "history")
	if err != nil || !strings.Contains(out, "No commits recorded") {
		t.Fatalf("empty history = %q, %v", out, err)
	}

	if _, err := f.run(t, "tracks", "save", "--id", "p1", "--remove", "spotify:track:t3"); err != nil {
		t.Fatal(err)
	}

	out, err = f.run(t, "history")
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !strings.Contains(out, "Mix") || !strings.Contains(out, "1 commit") {
		t.Errorf("output:\n%s", out)
	}

	out, err = f.run(t, "history", "--id", "p2", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "null" {
		t.Errorf("filtered history = %s", out)
	}
}

func TestAuthCommands(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		f := newFixture(t)
		out, err := f.run(t, "auth", "status")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		if !strings.Contains(out, "valid until") || !strings.Contains(out, "Authenticated as me (me)") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("status without token", func(t *testing.T) {
		f := newFixture(t)
		f.tokens.token = nil
		out, err := f.run(t, "auth", "status")
		if err != nil || !strings.Contains(out, "Not authenticated") {
			t.Errorf("status = %q, %v", out, err)
		}
	})

	t.Run("logout", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.run(t, "auth", "logout"); err != nil {
			t.Fatal(err)
		}
		if !f.tokens.cleared || f.tokens.token != nil {
			t.Error("token not cleared")
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		f := newFixture(t)

		out, err := f.run(t, "--config", path, "setup", "config")
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(out, "Config written to "+path) {
			t.Errorf("output = %q", out)
		}

		if _, err := f.run(t, "--config", path, "setup", "config"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("second run error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("database", func(t *testing.T) {
		dir := t.TempDir()
		tu.MustChdir(t, dir)

		r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: io.Discard})
		t.Cleanup(func() { r.Close() })

		app := &cli.Command{Name: "ppl", Flags: rootFlags(), Before: r.Before, Commands: r.register()}
		if err := app.Run(context.Background(), []string{"ppl", "setup", "database"}); err != nil {
			t.Fatalf("run error = %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(dir, "pureplaylist.db"))

		history, err := r.History(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if records, err := history.List(context.Background(), "", 10); err != nil || len(records) != 0 {
			t.Errorf("List() = %v, %v", records, err)
		}
	})

	t.Run("database rollback", func(t *testing.T) {
		dir := t.TempDir()
		tu.MustChdir(t, dir)

		var out bytes.Buffer
		r := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &out})
		t.Cleanup(func() { r.Close() })

		app := &cli.Command{Name: "ppl", Flags: rootFlags(), Before: r.Before, Commands: r.register()}
		if err := app.Run(context.Background(), []string{"ppl", "setup", "database", "--rollback"}); err != nil {
			t.Fatalf("run error = %v", err)
		}
		if got := out.String(); !strings.Contains(got, "Rolled back migration 0002") || !strings.Contains(got, "schema version 1") {
			t.Errorf("output = %q", got)
		}
	})
}
