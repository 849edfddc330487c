// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// Call records one request made to [FakeService].
type Call struct {
	Method     string
	PlaylistID string
	Offset     int
	Limit      int
	IDs        []string
}

// FakeService is an in-memory [services.Service]. Writes change the stored playlists,
// so a reload after a commit sees the result.
//
// Errs fails every call to a method by name. FailCall fails only the n-th call (1-based)
// to a method, keyed as "Method#n". Hook runs before every call and may block or return an error.
type FakeService struct {
	User      models.User
	Playlists []models.Playlist
	Tracks    map[string][]models.TrackEntry
	Features  map[string]*models.AudioFeatures
	Errs      map[string]error
	FailCall  map[string]error
	Hook      func(ctx context.Context, c Call) error

	mu     sync.Mutex
	calls  []Call
	counts map[string]int
	nextID int
}

// NewFakeService returns a service acting as userID.
func NewFakeService(userID string) *FakeService {
	return &FakeService{
		User:     models.User{ID: userID, DisplayName: userID},
		Tracks:   make(map[string][]models.TrackEntry),
		Features: make(map[string]*models.AudioFeatures),
		Errs:     make(map[string]error),
		FailCall: make(map[string]error),
		counts:   make(map[string]int),
	}
}

// AddPlaylist stores p with tracks and returns it.
func (f *FakeService) AddPlaylist(p models.Playlist, tracks ...models.TrackEntry) models.Playlist {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.TrackCount = len(tracks)
	f.Playlists = append(f.Playlists, p)
	f.Tracks[p.ID] = slices.Clone(tracks)
	return p
}

// Calls returns a copy of every recorded call.
func (f *FakeService) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the recorded calls to method.
func (f *FakeService) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Stored returns the uris currently held for playlistID.
func (f *FakeService) Stored(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uris []string
	for _, t := range f.Tracks[playlistID] {
		uris = append(uris, t.URI)
	}
	return uris
}

func (f *FakeService) record(ctx context.Context, c Call) error {
	if f.Hook != nil {
		if err := f.Hook(ctx, c); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[c.Method]++
	f.calls = append(f.calls, c)

	if err := f.FailCall[fmt.Sprintf("%s#%d", c.Method, f.counts[c.Method])]; err != nil {
		return err
	}
	return f.Errs[c.Method]
}

func (f *FakeService) Name() string { return "fake" }

func (f *FakeService) CurrentUser(ctx context.Context) (*models.User, error) {
	if err := f.record(ctx, Call{Method: "CurrentUser"}); err != nil {
		return nil, err
	}
	u := f.User
	return &u, nil
}

func (f *FakeService) ListPlaylists(ctx context.Context, offset, limit int) (*models.Page[models.Playlist], error) {
	if err := f.record(ctx, Call{Method: "ListPlaylists", Offset: offset, Limit: limit}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	items := window(f.Playlists, offset, limit)
	for i := range items {
		items[i].TrackCount = len(f.Tracks[items[i].ID])
	}
	return &models.Page[models.Playlist]{
		Items: items, Offset: offset, Limit: limit, Total: len(f.Playlists), Consumed: len(items),
	}, nil
}

func (f *FakeService) ListTracks(ctx context.Context, playlistID string, offset, limit int) (*models.Page[models.TrackEntry], error) {
	if err := f.record(ctx, Call{Method: "ListTracks", PlaylistID: playlistID, Offset: offset, Limit: limit}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	all, ok := f.Tracks[playlistID]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	items := window(all, offset, limit)
	for i := range items {
		items[i].OriginalIndex = offset + i + 1
	}
	return &models.Page[models.TrackEntry]{
		Items: items, Offset: offset, Limit: limit, Total: len(all), Consumed: len(items),
	}, nil
}

func (f *FakeService) PlaylistDetails(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if err := f.record(ctx, Call{Method: "PlaylistDetails", PlaylistID: playlistID}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Playlists {
		if p.ID == playlistID {
			p.TrackCount = len(f.Tracks[p.ID])
			return &p, nil
		}
	}
	return nil, shared.ErrPlaylistNotFound
}

func (f *FakeService) AudioFeatures(ctx context.Context, ids []string) (map[string]*models.AudioFeatures, error) {
	if err := f.record(ctx, Call{Method: "AudioFeatures", IDs: slices.Clone(ids)}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.AudioFeatures, len(ids))
	for _, id := range ids {
		out[id] = f.Features[id]
	}
	return out, nil
}

func (f *FakeService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*models.Playlist, error) {
	if err := f.record(ctx, Call{Method: "CreatePlaylist", PlaylistID: name}); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p := models.Playlist{
		ID:          fmt.Sprintf("new-%d", f.nextID),
		Name:        name,
		Description: description,
		OwnerID:     userID,
		Public:      public,
	}
	f.Playlists = append(f.Playlists, p)
	f.Tracks[p.ID] = nil
	return &p, nil
}

func (f *FakeService) AppendTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := f.record(ctx, Call{Method: "AppendTracks", PlaylistID: playlistID, IDs: slices.Clone(uris)}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tracks[playlistID] = append(f.Tracks[playlistID], f.lookupLocked(uris)...)
	return nil
}

func (f *FakeService) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := f.record(ctx, Call{Method: "ReplaceTracks", PlaylistID: playlistID, IDs: slices.Clone(uris)}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tracks[playlistID] = f.lookupLocked(uris)
	return nil
}

func (f *FakeService) DeleteTracks(ctx context.Context, playlistID string, uris []string) error {
	if err := f.record(ctx, Call{Method: "DeleteTracks", PlaylistID: playlistID, IDs: slices.Clone(uris)}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tracks[playlistID] = slices.DeleteFunc(f.Tracks[playlistID], func(t models.TrackEntry) bool {
		return slices.Contains(uris, t.URI)
	})
	return nil
}

// lookupLocked resolves uris against every stored track. Unknown uris get a bare entry.
func (f *FakeService) lookupLocked(uris []string) []models.TrackEntry {
	byURI := make(map[string]models.TrackEntry)
	for _, tracks := range f.Tracks {
		for _, t := range tracks {
			byURI[t.URI] = t
		}
	}
	out := make([]models.TrackEntry, 0, len(uris))
	for _, uri := range uris {
		t, ok := byURI[uri]
		if !ok {
			t = models.TrackEntry{URI: uri}
		}
		out = append(out, t)
	}
	return out
}

func window[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(offset+limit, len(all))
	return slices.Clone(all[offset:end])
}

// MakeTracks builds n catalog tracks with ids t1..tn. The title of track i is "Track i" and the
// album cycles through albums when given.
func MakeTracks(n int, albums ...string) []models.TrackEntry {
	tracks := make([]models.TrackEntry, n)
	for i := range tracks {
		id := fmt.Sprintf("t%d", i+1)
		tracks[i] = models.TrackEntry{
			ID:         id,
			URI:        "spotify:track:" + id,
			Title:      fmt.Sprintf("Track %d", i+1),
			Artists:    []string{"Artist"},
			DurationMS: 180000 + i*1000,
		}
		if len(albums) > 0 {
			tracks[i].Album = albums[i%len(albums)]
		}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

// MustChdir changes into dir and restores the previous working directory when the test ends.
func MustChdir(t *testing.T, dir string) {
	t.Helper()
	prev := MustGetwd(t)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
