package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// DefaultPageSize matches the largest page the listing endpoints return.
const DefaultPageSize = 50

// PageFunc fetches one page starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (*models.Page[T], error)

type PagerOpts struct {
	PageSize int
	Logger   *log.Logger
	Progress chan<- ProgressUpdate
	Phase    Phase
}

// PagerState is a copy of the pager at one instant.
type PagerState[T any] struct {
	Key           string
	Items         []T
	Loaded        int
	Total         int
	Progress      float64 // 0..100
	IsLoading     bool    // first page in flight
	IsLoadingMore bool    // later pages in flight
	HasError      bool
	Err           error
}

// Pager loads a remote collection page by page, merging items by key.
//
// The first page is fetched on the caller's goroutine. The rest load in the background
// so the first rows can be shown immediately. Starting a new run cancels the previous one,
// and pages from a superseded run are discarded.
type Pager[T any] struct {
	keyOf    func(T) string
	pageSize int
	logger   *log.Logger
	progress chan<- ProgressUpdate
	phase    Phase

	mu          sync.Mutex
	runID       string
	key         string
	fetch       PageFunc[T]
	items       map[string]T
	order       []string
	loaded      int
	total       int
	loading     bool
	loadingMore bool
	err         error
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewPager creates a pager. keyOf must return a stable identity for merging.
func NewPager[T any](keyOf func(T) string, opts PagerOpts) *Pager[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	closed := make(chan struct{})
	close(closed)

	return &Pager[T]{
		keyOf:    keyOf,
		pageSize: opts.PageSize,
		logger:   opts.Logger,
		progress: opts.Progress,
		phase:    opts.Phase,
		items:    make(map[string]T),
		done:     closed,
	}
}

// Start begins a new run for key. An error fetching the first page is returned and leaves the pager empty;
// later failures are recorded in the state as a partial load.
func (p *Pager[T]) Start(ctx context.Context, key string, fetch PageFunc[T]) error {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runID := shared.GenerateID()
	p.runID = runID
	p.key = key
	p.fetch = fetch
	p.items = make(map[string]T)
	p.order = nil
	p.loaded, p.total = 0, 0
	p.loading, p.loadingMore = true, false
	p.err = nil
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	page, err := fetch(runCtx, 0, p.pageSize)
	if err != nil {
		p.mu.Lock()
		if p.runID == runID {
			p.loading = false
			p.err = err
		}
		p.mu.Unlock()
		close(done)
		return err
	}

	next, more := p.merge(runID, page)

	p.mu.Lock()
	current := p.runID == runID
	if current {
		p.loading = false
		p.loadingMore = more
	}
	p.mu.Unlock()

	if !current || !more {
		close(done)
		return nil
	}

	go p.loadRest(runCtx, runID, fetch, next, done)
	return nil
}

func (p *Pager[T]) loadRest(ctx context.Context, runID string, fetch PageFunc[T], offset int, done chan struct{}) {
	defer close(done)

	for {
		page, err := fetch(ctx, offset, p.pageSize)
		if err != nil {
			p.fail(ctx, runID, offset, err)
			return
		}

		next, more := p.merge(runID, page)
		if !more {
			p.mu.Lock()
			if p.runID == runID {
				p.loadingMore = false
			}
			p.mu.Unlock()
			return
		}
		offset = next
	}
}

func (p *Pager[T]) fail(ctx context.Context, runID string, offset int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runID != runID {
		return
	}
	p.loadingMore = false

	if cause := ctx.Err(); cause != nil {
		err = cause
	}
	p.err = fmt.Errorf("%w: offset %d: %w", shared.ErrPartialPage, offset, err)
	p.logger.Warn("page fetch failed, keeping loaded items", "key", p.key, "offset", offset, "loaded", p.loaded, "error", err)
	sendProgress(p.progress, pageFailedUpdate(p.phase, p.loaded, p.total, err))
}

// merge adds page to the current run and reports the next offset and whether to continue.
func (p *Pager[T]) merge(runID string, page *models.Page[T]) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runID != runID || page == nil {
		return 0, false
	}

	for _, item := range page.Items {
		k := p.keyOf(item)
		if _, seen := p.items[k]; !seen {
			p.order = append(p.order, k)
		}
		p.items[k] = item
	}

	consumed := page.Consumed
	if consumed == 0 {
		consumed = len(page.Items)
	}

	p.total = page.Total
	p.loaded = max(p.loaded, page.Offset+consumed)

	sendProgress(p.progress, pageLoadedUpdate(p.phase, p.loaded, p.total, p.progressLocked()))

	if consumed == 0 {
		return p.loaded, false
	}
	return p.loaded, p.loaded < p.total
}

func (p *Pager[T]) progressLocked() float64 {
	if p.total <= 0 {
		if p.loading {
			return 0
		}
		return 100
	}
	return min(100, float64(p.loaded)/float64(p.total)*100)
}

// Snapshot copies the current state. Items are in first-seen order.
func (p *Pager[T]) Snapshot() PagerState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make([]T, 0, len(p.order))
	for _, k := range p.order {
		items = append(items, p.items[k])
	}

	return PagerState[T]{
		Key:           p.key,
		Items:         items,
		Loaded:        p.loaded,
		Total:         p.total,
		Progress:      p.progressLocked(),
		IsLoading:     p.loading,
		IsLoadingMore: p.loadingMore,
		HasError:      p.err != nil,
		Err:           p.err,
	}
}

// Wait blocks until the current run has finished loading or ctx is done.
func (p *Pager[T]) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart runs the last key again from the first page.
func (p *Pager[T]) Restart(ctx context.Context) error {
	p.mu.Lock()
	key, fetch := p.key, p.fetch
	p.mu.Unlock()

	if fetch == nil {
		return shared.ErrNoPlaylist
	}
	return p.Start(ctx, key, fetch)
}

// Reset cancels any run and forgets everything.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.runID = ""
	p.key = ""
	p.fetch = nil
	p.items = make(map[string]T)
	p.order = nil
	p.loaded, p.total = 0, 0
	p.loading, p.loadingMore = false, false
	p.err = nil
}
