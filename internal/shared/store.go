package shared

import "context"

// KeyValueStore is the local persistence port for small client-side state such as favorites.
//
// Get reports ok=false for a missing key without an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// FavoritesKey is the store key holding the JSON array of favorite playlist ids.
const FavoritesKey = "favoritePlaylistIds"
