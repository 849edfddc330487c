package tasks

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// DefaultFeatureBatch is the most ids one audio-features request accepts.
const DefaultFeatureBatch = 100

// FeatureFetcher is the slice of [services.Service] the cache needs.
type FeatureFetcher interface {
	AudioFeatures(ctx context.Context, ids []string) (map[string]*models.AudioFeatures, error)
}

// FeatureState describes what the cache knows about one id.
type FeatureState int

const (
	FeatureUnknown FeatureState = iota
	FeaturePending
	FeatureAvailable
	FeatureUnavailable // fetched, but the catalog has no record
)

func (s FeatureState) String() string {
	switch s {
	case FeaturePending:
		return "pending"
	case FeatureAvailable:
		return "available"
	case FeatureUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type FeatureCacheOpts struct {
	BatchSize int
	Logger    *log.Logger
	Progress  chan<- ProgressUpdate
}

// FeatureCache fetches audio features on demand and never asks twice for the same id.
//
// An id is pending while a request for it is in flight. Failed requests release their ids
// so a later call can try again.
type FeatureCache struct {
	fetcher   FeatureFetcher
	batchSize int
	logger    *log.Logger
	progress  chan<- ProgressUpdate

	mu       sync.RWMutex
	resolved map[string]*models.AudioFeatures // nil value: unavailable
	pending  map[string]struct{}
}

func NewFeatureCache(fetcher FeatureFetcher, opts FeatureCacheOpts) *FeatureCache {
	if opts.BatchSize <= 0 || opts.BatchSize > DefaultFeatureBatch {
		opts.BatchSize = DefaultFeatureBatch
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &FeatureCache{
		fetcher:   fetcher,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
		progress:  opts.Progress,
		resolved:  make(map[string]*models.AudioFeatures),
		pending:   make(map[string]struct{}),
	}
}

// Request fetches every id that is neither resolved nor pending, one call per batch.
func (c *FeatureCache) Request(ctx context.Context, ids []string) error {
	want := c.claim(ids)
	if len(want) == 0 {
		return nil
	}

	batches := slices.Collect(slices.Chunk(want, c.batchSize))
	for i, batch := range batches {
		result, err := c.fetcher.AudioFeatures(ctx, batch)
		if err != nil {
			c.release(slices.Concat(batches[i:]...))
			c.logger.Warn("audio features request failed", "ids", len(batch), "error", err)
			return fmt.Errorf("failed to fetch audio features: %w", err)
		}

		resolved := c.store(batch, result)
		sendProgress(c.progress, featuresUpdate(i+1, len(batches), resolved))
	}
	return nil
}

// claim marks the ids it returns as pending.
func (c *FeatureCache) claim(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var want []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.resolved[id]; ok {
			continue
		}
		if _, ok := c.pending[id]; ok {
			continue
		}
		c.pending[id] = struct{}{}
		want = append(want, id)
	}
	return want
}

func (c *FeatureCache) release(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.pending, id)
	}
}

func (c *FeatureCache) store(batch []string, result map[string]*models.AudioFeatures) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range batch {
		c.resolved[id] = result[id]
		delete(c.pending, id)
	}
	return len(c.resolved)
}

// Lookup returns the features for id, if any, and what the cache knows about it.
func (c *FeatureCache) Lookup(id string) (*models.AudioFeatures, FeatureState) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if f, ok := c.resolved[id]; ok {
		if f == nil {
			return nil, FeatureUnavailable
		}
		return f, FeatureAvailable
	}
	if _, ok := c.pending[id]; ok {
		return nil, FeaturePending
	}
	return nil, FeatureUnknown
}

// Known reports whether id is resolved or in flight.
func (c *FeatureCache) Known(id string) bool {
	_, state := c.Lookup(id)
	return state != FeatureUnknown
}

// Snapshot copies the resolved records. Unavailable ids map to nil.
func (c *FeatureCache) Snapshot() map[string]*models.AudioFeatures {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.resolved)
}

// Pending returns the number of ids currently in flight.
func (c *FeatureCache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}
