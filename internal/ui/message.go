package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsLoaded MsgKind = iota
	MsgPlaylistOpened
	MsgProgressUpdate
	MsgFeaturesLoaded
	MsgFavoriteToggled
	MsgCommitted
)

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, err: err}
}

// playlistOpenedMsg is the constructor for [MsgPlaylistOpened]
func playlistOpenedMsg(playlist *models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistOpened, data: playlist, err: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// featuresLoadedMsg is the constructor for [MsgFeaturesLoaded]
func featuresLoadedMsg(err error) Msg {
	return Msg{kind: MsgFeaturesLoaded, err: err}
}

// favoriteToggledMsg is the constructor for [MsgFavoriteToggled]; data is the new state.
func favoriteToggledMsg(on bool, err error) Msg {
	return Msg{kind: MsgFavoriteToggled, data: on, err: err}
}

// committedMsg is the constructor for [MsgCommitted]
func committedMsg(result *tasks.CommitResult, err error) Msg {
	return Msg{kind: MsgCommitted, data: result, err: err}
}
