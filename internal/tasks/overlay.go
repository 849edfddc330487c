package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// Overlay holds local edits that have not been written back: selection, pending deletions and favorites.
//
// Selection and deletion are keyed by track uri and never leave the process.
// Favorites are playlist ids persisted to the key-value store on every change.
type Overlay struct {
	store  shared.KeyValueStore
	logger *log.Logger

	mu          sync.RWMutex
	multiSelect bool
	selected    map[string]struct{}
	deleted     map[string]struct{}
	favorites   map[string]struct{}
}

// NewOverlay loads favorites from store. A nil store keeps favorites in memory only.
//
// A corrupt favorites entry is logged and treated as empty.
func NewOverlay(ctx context.Context, store shared.KeyValueStore, logger *log.Logger) (*Overlay, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	o := &Overlay{
		store:     store,
		logger:    logger,
		selected:  make(map[string]struct{}),
		deleted:   make(map[string]struct{}),
		favorites: make(map[string]struct{}),
	}

	if store == nil {
		return o, nil
	}

	raw, ok, err := store.Get(ctx, shared.FavoritesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	if !ok {
		return o, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		logger.Warn("ignoring unreadable favorites", "key", shared.FavoritesKey, "error", err)
		return o, nil
	}
	for _, id := range ids {
		o.favorites[id] = struct{}{}
	}
	return o, nil
}

// SetMultiSelect switches selection mode. Any change of mode clears the selection.
func (o *Overlay) SetMultiSelect(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.multiSelect != on {
		o.multiSelect = on
		clear(o.selected)
	}
}

func (o *Overlay) MultiSelect() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.multiSelect
}

// Select adds uri to the selection. Ignored outside multi-select mode or for deleted uris.
func (o *Overlay) Select(uri string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.canSelectLocked(uri) {
		o.selected[uri] = struct{}{}
	}
}

// Deselect removes uri from the selection. Unknown uris are ignored.
func (o *Overlay) Deselect(uri string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.selected, uri)
}

// ToggleSelect flips uri and reports whether it is now selected.
func (o *Overlay) ToggleSelect(uri string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.selected[uri]; ok {
		delete(o.selected, uri)
		return false
	}
	if !o.canSelectLocked(uri) {
		return false
	}
	o.selected[uri] = struct{}{}
	return true
}

func (o *Overlay) canSelectLocked(uri string) bool {
	if !o.multiSelect || uri == "" {
		return false
	}
	_, gone := o.deleted[uri]
	return !gone
}

// MarkDeleted queues uris for removal on the next commit. Marking twice is a no-op.
func (o *Overlay) MarkDeleted(uris ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, uri := range uris {
		if uri == "" {
			continue
		}
		o.deleted[uri] = struct{}{}
		delete(o.selected, uri)
	}
}

// DeleteSelected moves the whole selection to the deleted set and returns it sorted.
func (o *Overlay) DeleteSelected() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	uris := slices.Sorted(maps.Keys(o.selected))
	for _, uri := range uris {
		o.deleted[uri] = struct{}{}
	}
	clear(o.selected)
	return uris
}

// Restore un-marks pending deletions.
func (o *Overlay) Restore(uris ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, uri := range uris {
		delete(o.deleted, uri)
	}
}

// ClearPending drops selection and deletions. Favorites are kept.
func (o *Overlay) ClearPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	clear(o.selected)
	clear(o.deleted)
}

// ToggleFavorite flips id and persists the new set. If the write fails the change is undone.
func (o *Overlay) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	_, was := o.favorites[id]
	if was {
		delete(o.favorites, id)
	} else {
		o.favorites[id] = struct{}{}
	}

	if o.store != nil {
		data, err := json.Marshal(slices.Sorted(maps.Keys(o.favorites)))
		if err == nil {
			err = o.store.Set(ctx, shared.FavoritesKey, string(data))
		}
		if err != nil {
			if was {
				o.favorites[id] = struct{}{}
			} else {
				delete(o.favorites, id)
			}
			return was, fmt.Errorf("failed to save favorites: %w", err)
		}
	}

	return !was, nil
}

// Favorites returns the favorite playlist ids sorted.
func (o *Overlay) Favorites() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Sorted(maps.Keys(o.favorites))
}

// Snapshot deep-copies the overlay for the view.
func (o *Overlay) Snapshot() models.OverlaySnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return models.OverlaySnapshot{
		MultiSelect: o.multiSelect,
		Selected:    maps.Clone(o.selected),
		Deleted:     maps.Clone(o.deleted),
		Favorites:   maps.Clone(o.favorites),
	}
}
