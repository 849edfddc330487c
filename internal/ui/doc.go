// Package ui implements the interactive playlist editor using bubbletea's Elm architecture.
//
// Views:
//  1. [PlaylistView] : Browse playlists, search, sort and mark favorites
//  2. [TrackView] : Edit the open playlist: filter, sort, select and delete tracks
//  3. [FilterView] : Enter title, album and artist keywords
//  4. [SaveView] : Update the playlist or save the edits as a new one
//  5. [ResultView] : Outcome of the last commit
//
// The [Model] drives a [tasks.Editor]. Progress updates from paging, enrichment and commits arrive on a channel
// and double as a refresh signal, so rows appear as background pages land. Audio features are requested for the
// rows around the cursor whenever the table moves.
//
// Keyboard navigation uses vim-style bindings with contextual help from charmbracelet/bubbles/help.
package ui
