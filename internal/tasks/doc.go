// Package tasks runs the stateful parts of the playlist editor: paging, enrichment, local edits and commits.
//
// # Components
//
//   - [Pager] loads a paginated collection. The first page is fetched before [Pager.Start] returns
//     and the rest load in the background. A new run supersedes the old one and stale pages are dropped.
//   - [FeatureCache] fetches audio features on demand in batches of at most 100 ids and never requests
//     an id that is resolved or already in flight.
//   - [Overlay] holds selection, pending deletions and favorites. Favorites are persisted through a
//     [shared.KeyValueStore]; everything else stays in memory until a commit.
//   - [Committer] writes an edited list back in chunks of at most 100 uris. A failed chunk stops the
//     commit and the returned [CommitError] reports how much was applied.
//
// [Editor] composes them for the CLI and TUI and derives display lists through package view.
//
// # Progress Reporting
//
// Every component accepts an optional progress channel. Sends never block; a full channel drops updates.
package tasks
