// package redis implements [shared.KeyValueStore] on a Redis server so favorites can be shared between machines
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/pureplaylist/internal/shared"
	goredis "github.com/redis/go-redis/v9"
)

// Store namespaces every key with a prefix.
type Store struct {
	client *goredis.Client
	prefix string
}

// Open parses url (redis://host:port/db), connects and pings the server.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}

	store := New(goredis.NewClient(opt), prefix)
	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", shared.ErrStore, err)
	}
	return store, nil
}

// New wraps an existing client.
func New(client *goredis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: redis get %s: %v", shared.ErrStore, key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", shared.ErrStore, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %v", shared.ErrStore, key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
