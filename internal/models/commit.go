package models

import (
	"fmt"
	"time"
)

// CommitMode selects whether edits overwrite the open playlist or go to a new one.
type CommitMode int

const (
	UpdateExisting CommitMode = iota
	CreateNew
)

func (m CommitMode) String() string {
	switch m {
	case UpdateExisting:
		return "update"
	case CreateNew:
		return "create"
	default:
		return fmt.Sprintf("CommitMode(%d)", int(m))
	}
}

// Commit statuses recorded in the commit log.
const (
	CommitSucceeded = "succeeded"
	CommitPartial   = "partial"
	CommitFailed    = "failed"
)

// CommitRecord is one attempt to write edits back to a playlist.
type CommitRecord struct {
	ID            string    `json:"id"`
	PlaylistID    string    `json:"playlist_id"`
	PlaylistName  string    `json:"playlist_name"`
	Mode          string    `json:"mode"`
	Status        string    `json:"status"`
	Stage         string    `json:"stage,omitempty"`
	TotalItems    int       `json:"total_items"`
	ItemsApplied  int       `json:"items_applied"`
	ChunksApplied int       `json:"chunks_applied"`
	TotalChunks   int       `json:"total_chunks"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
