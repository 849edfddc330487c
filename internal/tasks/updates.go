package tasks

import (
	"fmt"

	"github.com/desertthunder/pureplaylist/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchTracks
	FetchFeatures
	CreatePlaylist
	ReplaceTracks
	AppendTracks
	DeleteTracks
	CommitDone
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case FetchFeatures:
		return "fetch_features"
	case CreatePlaylist:
		return "create_playlist"
	case ReplaceTracks:
		return "replace_tracks"
	case AppendTracks:
		return "append_tracks"
	case DeleteTracks:
		return "delete_tracks"
	case CommitDone:
		return "commit_done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// pageLoadedUpdate carries the load percentage in Data as a float64.
func pageLoadedUpdate(phase Phase, loaded, total int, percent float64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    loaded,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d of %d (%.1f%%)", loaded, total, percent),
		Data:    percent,
	}
}

func pageFailedUpdate(phase Phase, loaded, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    loaded,
		Total:   total,
		Message: fmt.Sprintf("Stopped after %d of %d: %v", loaded, total, err),
	}
}

func featuresUpdate(step, total, resolved int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetched audio features (%d resolved)", resolved),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func chunkUpdate(phase Phase, chunk, total, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    chunk,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %d items", chunk, total, phase, items),
	}
}

func commitDoneUpdate(result *CommitResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CommitDone,
		Step:    result.Chunks,
		Total:   result.Chunks,
		Message: fmt.Sprintf("✓ %d items written to %s", result.ItemsApplied, result.PlaylistID),
		Data:    result,
	}
}
