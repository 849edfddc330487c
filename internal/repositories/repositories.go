// package repositories provides the local persistence backends for client-side state.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/pureplaylist/internal/repositories/redis"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

// OpenStore returns the [shared.KeyValueStore] selected by cfg.Backend and a function releasing it.
//
// The sqlite backend reuses db and leaves closing it to the caller.
func OpenStore(ctx context.Context, cfg shared.StoreConfig, db *sql.DB) (shared.KeyValueStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", shared.StoreSQLite:
		if db == nil {
			return nil, nil, fmt.Errorf("%w: sqlite store needs a database", shared.ErrInvalidConfig)
		}
		return NewKVRepository(db), noop, nil
	case shared.StoreRedis:
		store, err := redis.Open(ctx, cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case shared.StoreMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}
