package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/shared"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.AnnotatedPlaylist] to implement [list.Item].
type playlistItem struct {
	playlist models.AnnotatedPlaylist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string {
	if i.playlist.IsFavorite {
		return "★ " + i.playlist.Name
	}
	return i.playlist.Name
}
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks • %s", i.playlist.TrackCount, i.playlist.OwnerName)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

func playlistItems(playlists []models.AnnotatedPlaylist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, pl := range playlists {
		items[i] = playlistItem{playlist: pl}
	}
	return items
}

func trackColumns() []table.Column {
	return []table.Column{
		{Title: "", Width: 2},
		{Title: "#", Width: 5},
		{Title: "Title", Width: 32},
		{Title: "Artist", Width: 22},
		{Title: "Album", Width: 22},
		{Title: "Released", Width: 10},
		{Title: "BPM", Width: 5},
		{Title: "Time", Width: 7},
	}
}

// trackRows renders one table row per track. The first column marks selection (✓) and filter matches (*).
func trackRows(tracks []models.AnnotatedTrack) []table.Row {
	rows := make([]table.Row, len(tracks))
	for i, t := range tracks {
		mark := " "
		switch {
		case t.IsSelected:
			mark = "✓"
		case t.IsFiltered:
			mark = "*"
		}
		released := ""
		if !t.ReleaseDate.IsZero() {
			released = t.ReleaseDate.Format("2006-01-02")
		}
		bpm := ""
		if t.Features != nil {
			bpm = strconv.Itoa(int(t.Features.Tempo + 0.5))
		}
		title := t.Title
		if t.IsLocal {
			title += " (local)"
		}
		rows[i] = table.Row{
			mark,
			strconv.Itoa(t.OriginalIndex),
			title,
			t.ArtistLine(),
			t.Album,
			released,
			bpm,
			shared.FormatDuration(t.DurationMS),
		}
	}
	return rows
}
