// Package models defines the domain types shared by the playlist editor.
//
// The types fall into three groups:
//
// 1. Remote entities, decoded at the service boundary
//   - [Playlist] : playlist metadata with its owner
//   - [TrackEntry] : one playlist item with its fetch-time OriginalIndex
//   - [AudioFeatures] : tempo and related attributes, fetched lazily
//   - [Page] : one slice of a paginated listing
//
// 2. User intent
//   - [FilterCriteria] : OR'd substring predicates over title, album and artist
//   - [SortSpec] : the active track ordering
//   - [PlaylistSort] : the active playlist ordering
//   - [OverlaySnapshot] : selections, pending deletions and favorites
//
// 3. Derived rows consumed by the CLI and TUI
//   - [AnnotatedTrack]
//   - [AnnotatedPlaylist]
package models
