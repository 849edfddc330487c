// Package repositories implements local persistence for the editor's client-side state.
//
// Nothing here mirrors remote data: playlists and tracks are always fetched fresh.
// What is stored locally is small and owned by the client.
//
// Key Implementations:
//   - [KVRepository] : SQLite-backed key-value pairs (the default favorites store)
//   - [MemoryStore] : process-local key-value pairs for tests and throwaway sessions
//   - redis.Store : Redis-backed key-value pairs, selected with store.backend = "redis"
//   - [CommitLogRepository] : history of commit attempts, including partial ones
//
// [OpenStore] picks the key-value backend from configuration.
package repositories
