package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/services"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/desertthunder/pureplaylist/internal/view"
)

// playlistsKey is the pager key for the user's own playlist listing.
const playlistsKey = "me"

type EditorOpts struct {
	Service      services.Service
	Store        shared.KeyValueStore
	Recorder     CommitRecorder
	PageSize     int
	FeatureBatch int
	ChunkSize    int
	Locale       string
	Logger       *log.Logger
	Progress     chan<- ProgressUpdate
}

// Editor is the surface the CLI and TUI drive: it owns the pagers, the feature cache,
// the overlay and the committer, and derives display lists on demand.
type Editor struct {
	svc       services.Service
	logger    *log.Logger
	locale    string
	playlists *Pager[models.Playlist]
	tracks    *Pager[models.TrackEntry]
	features  *FeatureCache
	overlay   *Overlay
	committer *Committer

	// openMu orders the switch of current and the tracks run between overlapping opens.
	openMu sync.Mutex

	mu             sync.RWMutex
	openGen        uint64
	user           *models.User
	current        *models.Playlist
	filter         models.FilterCriteria
	sort           models.SortSpec
	playlistSearch string
	playlistSort   models.PlaylistSort
}

// NewEditor wires the components and loads favorites from opts.Store.
func NewEditor(ctx context.Context, opts EditorOpts) (*Editor, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("%w: service", shared.ErrMissingArgument)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	overlay, err := NewOverlay(ctx, opts.Store, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Editor{
		svc:    opts.Service,
		logger: opts.Logger,
		locale: opts.Locale,
		playlists: NewPager(func(p models.Playlist) string { return p.ID }, PagerOpts{
			PageSize: opts.PageSize,
			Logger:   shared.WithLogger(opts.Logger, "pager", "playlists"),
			Progress: opts.Progress,
			Phase:    FetchPlaylists,
		}),
		tracks: NewPager(models.TrackEntry.Key, PagerOpts{
			PageSize: opts.PageSize,
			Logger:   shared.WithLogger(opts.Logger, "pager", "tracks"),
			Progress: opts.Progress,
			Phase:    FetchTracks,
		}),
		features: NewFeatureCache(opts.Service, FeatureCacheOpts{
			BatchSize: opts.FeatureBatch,
			Logger:    opts.Logger,
			Progress:  opts.Progress,
		}),
		overlay: overlay,
		committer: NewCommitter(opts.Service, CommitOpts{
			ChunkSize: opts.ChunkSize,
			Logger:    opts.Logger,
			Progress:  opts.Progress,
			Recorder:  opts.Recorder,
		}),
		sort: models.DefaultSort(),
	}, nil
}

// User returns the authenticated user, fetching it once.
func (e *Editor) User(ctx context.Context) (*models.User, error) {
	e.mu.RLock()
	user := e.user
	e.mu.RUnlock()
	if user != nil {
		return user, nil
	}

	user, err := e.svc.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.user = user
	e.mu.Unlock()
	return user, nil
}

// LoadPlaylists starts listing the user's playlists. The first page is loaded before it returns.
func (e *Editor) LoadPlaylists(ctx context.Context) error {
	return e.playlists.Start(ctx, playlistsKey, e.svc.ListPlaylists)
}

// Playlists derives the playlist list from what has loaded so far.
func (e *Editor) Playlists() []models.AnnotatedPlaylist {
	e.mu.RLock()
	search, sort := e.playlistSearch, e.playlistSort
	e.mu.RUnlock()

	return view.Playlists(view.PlaylistInput{
		Items:     e.playlists.Snapshot().Items,
		Favorites: e.overlay.Snapshot().Favorites,
		Search:    search,
		Sort:      sort,
		Locale:    e.locale,
	})
}

func (e *Editor) PlaylistsState() PagerState[models.Playlist] {
	return e.playlists.Snapshot()
}

// OpenPlaylist switches the working collection. Pending edits, the filter and the sort are reset.
//
// When a newer call starts before this one has switched, this one changes nothing and returns
// [shared.ErrSuperseded].
func (e *Editor) OpenPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	e.mu.Lock()
	e.openGen++
	gen := e.openGen
	e.mu.Unlock()

	details, err := e.svc.PlaylistDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	e.openMu.Lock()
	defer e.openMu.Unlock()

	e.mu.Lock()
	if e.openGen != gen {
		e.mu.Unlock()
		e.logger.Debug("dropping superseded open", "playlist", id)
		return nil, fmt.Errorf("%w: open %s", shared.ErrSuperseded, id)
	}
	e.current = details
	e.filter = models.FilterCriteria{}
	e.sort = models.DefaultSort()
	e.mu.Unlock()

	e.overlay.ClearPending()
	e.overlay.SetMultiSelect(false)

	fetch := func(ctx context.Context, offset, limit int) (*models.Page[models.TrackEntry], error) {
		return e.svc.ListTracks(ctx, id, offset, limit)
	}
	if err := e.tracks.Start(ctx, id, fetch); err != nil {
		return details, err
	}
	return details, nil
}

// Current returns the open playlist or nil.
func (e *Editor) Current() *models.Playlist {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil
	}
	p := *e.current
	return &p
}

// Tracks derives the track list from the loaded items and local edits.
func (e *Editor) Tracks() []models.AnnotatedTrack {
	e.mu.RLock()
	filter, sort := e.filter, e.sort
	e.mu.RUnlock()

	return view.Tracks(view.TrackInput{
		Items:    e.tracks.Snapshot().Items,
		Overlay:  e.overlay.Snapshot(),
		Filter:   filter,
		Sort:     sort,
		Features: e.features.Snapshot(),
		Locale:   e.locale,
	})
}

func (e *Editor) TracksState() PagerState[models.TrackEntry] {
	return e.tracks.Snapshot()
}

// WaitTracks blocks until every page of the open playlist has loaded or failed.
func (e *Editor) WaitTracks(ctx context.Context) error {
	return e.tracks.Wait(ctx)
}

// WaitPlaylists blocks until the playlist listing has finished.
func (e *Editor) WaitPlaylists(ctx context.Context) error {
	return e.playlists.Wait(ctx)
}

func (e *Editor) SetFilter(f models.FilterCriteria) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = f.Normalize()
}

func (e *Editor) ClearFilter() {
	e.SetFilter(models.FilterCriteria{})
}

func (e *Editor) Filter() models.FilterCriteria {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter
}

func (e *Editor) SetSort(s models.SortSpec) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sort = s
}

// ToggleSort selects field, flipping the order if it is already active.
func (e *Editor) ToggleSort(field models.SortField) models.SortSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sort = e.sort.Toggle(field)
	return e.sort
}

func (e *Editor) Sort() models.SortSpec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sort
}

func (e *Editor) SetPlaylistSearch(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playlistSearch = q
}

func (e *Editor) SetPlaylistSort(s models.PlaylistSort) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playlistSort = s
}

func (e *Editor) PlaylistSort() models.PlaylistSort {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playlistSort
}

func (e *Editor) SetMultiSelect(on bool) {
	e.overlay.SetMultiSelect(on)
}

func (e *Editor) MultiSelect() bool {
	return e.overlay.MultiSelect()
}

func (e *Editor) ToggleSelect(uri string) bool {
	return e.overlay.ToggleSelect(uri)
}

// DeleteSelected marks the selection for removal and returns the uris.
func (e *Editor) DeleteSelected() []string {
	return e.overlay.DeleteSelected()
}

// DeleteFiltered marks every row matching the current filter for removal.
func (e *Editor) DeleteFiltered() []string {
	uris := view.FilteredURIs(e.Tracks())
	e.overlay.MarkDeleted(uris...)
	return uris
}

// Delete marks uris for removal.
func (e *Editor) Delete(uris ...string) {
	e.overlay.MarkDeleted(uris...)
}

func (e *Editor) Restore(uris ...string) {
	e.overlay.Restore(uris...)
}

// Pending returns the uris queued for removal.
func (e *Editor) Pending() map[string]struct{} {
	return e.overlay.Snapshot().Deleted
}

func (e *Editor) ToggleFavorite(ctx context.Context, playlistID string) (bool, error) {
	return e.overlay.ToggleFavorite(ctx, playlistID)
}

func (e *Editor) Favorites() []string {
	return e.overlay.Favorites()
}

// VisibleRange requests features for rows start..stop of the current track list that have none yet.
func (e *Editor) VisibleRange(ctx context.Context, start, stop int) error {
	ids := view.IDsNeedingEnrichment(e.Tracks(), start, stop, e.features.Known)
	if len(ids) == 0 {
		return nil
	}
	return e.features.Request(ctx, ids)
}

// EnrichAll requests features for every loaded track.
func (e *Editor) EnrichAll(ctx context.Context) error {
	rows := e.Tracks()
	return e.VisibleRange(ctx, 0, len(rows)-1)
}

// Features looks up cached features for a track id.
func (e *Editor) Features(id string) (*models.AudioFeatures, FeatureState) {
	return e.features.Lookup(id)
}

// Commit writes the current list back. name is required for [models.CreateNew].
//
// The track listing must be complete: an update from a partial load would drop the tracks that never arrived.
// On success pending edits are cleared and both listings reload.
func (e *Editor) Commit(ctx context.Context, mode models.CommitMode, name string) (*CommitResult, error) {
	current := e.Current()
	if current == nil {
		return nil, shared.ErrNoPlaylist
	}

	if err := e.tracks.Wait(ctx); err != nil {
		return nil, err
	}
	state := e.tracks.Snapshot()
	if state.Key != current.ID {
		return nil, fmt.Errorf("%w: tracks loaded for %q, open playlist is %q", shared.ErrSuperseded, state.Key, current.ID)
	}
	if mode == models.UpdateExisting {
		if state.HasError {
			return nil, fmt.Errorf("refusing to rewrite a partially loaded playlist: %w", state.Err)
		}
		if state.Loaded < state.Total {
			return nil, fmt.Errorf("refusing to rewrite a partially loaded playlist: %w: %d of %d tracks", shared.ErrPartialPage, state.Loaded, state.Total)
		}
	}

	user, err := e.User(ctx)
	if err != nil {
		return nil, err
	}

	original := make([]string, len(state.Items))
	for i, item := range state.Items {
		original[i] = item.URI
	}

	ov := e.overlay.Snapshot()
	req := CommitRequest{
		Mode:         mode,
		PlaylistID:   current.ID,
		PlaylistName: current.Name,
		OwnerID:      current.OwnerID,
		UserID:       user.ID,
		Name:         name,
		Description:  current.Description,
		Public:       current.Public,
		URIs:         view.URIs(e.Tracks()),
		OriginalURIs: original,
		Deleted:      ov.Deleted,
	}

	result, err := e.committer.Commit(ctx, req)
	if err != nil {
		return nil, err
	}

	e.overlay.ClearPending()
	if err := e.tracks.Restart(ctx); err != nil {
		e.logger.Warn("failed to reload tracks after commit", "error", err)
	}
	if err := e.playlists.Restart(ctx); err != nil && !errors.Is(err, shared.ErrNoPlaylist) {
		e.logger.Warn("failed to reload playlists after commit", "error", err)
	}
	return result, nil
}

// SetPublic controls the visibility of playlists created by [Editor.Commit] in CreateNew mode.
func (e *Editor) SetPublic(public bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.Public = public
	}
}
