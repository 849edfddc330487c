// Package view turns fetched items plus local edits into the lists the user sees.
//
// Every function here is pure: no I/O, no locks, no errors. Callers pass snapshots
// (pager items, overlay, feature cache) and get a fresh slice back.
//
// # Tracks
//
// [Tracks] keeps every non-deleted track visible. A filter does not hide rows; it moves the
// matching ones to the top and flags them, and the active sort orders each group.
// Title and album compare with locale-aware collation; missing dates sort first and
// missing tempo counts as 0.
//
// # Playlists
//
// [Playlists] narrows by accent-insensitive search terms (all must match), puts favorites first,
// then applies the chosen [models.PlaylistSort].
//
// # Enrichment
//
// [IDsNeedingEnrichment] tells the renderer which visible rows still lack audio features.
package view
