// package models defines the data model for the playlist editor
package models

import (
	"strings"
	"time"
)

// LocalURIPrefix marks tracks that live on the user's device and have no catalog id.
const LocalURIPrefix = "spotify:local:"

// Image is a cover art reference.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// User is the authenticated account acting on playlists.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
}

// Playlist is a remote collection owned or followed by the user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	TrackCount  int    `json:"track_count"`
	OwnerID     string `json:"owner_id"`
	OwnerName   string `json:"owner_name,omitempty"`
	Public      bool   `json:"public"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
}

// OwnedBy reports whether userID can rewrite the playlist.
func (p Playlist) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// TrackEntry is one item of a playlist plus the position it had when fetched.
//
// OriginalIndex is 1-based and derived from the page offset, so it survives filtering and re-sorting.
type TrackEntry struct {
	ID            string    `json:"id"`
	URI           string    `json:"uri"`
	Title         string    `json:"title"`
	Artists       []string  `json:"artists"`
	Album         string    `json:"album"`
	AlbumImages   []Image   `json:"album_images,omitempty"`
	ReleaseDate   time.Time `json:"release_date"`
	DurationMS    int       `json:"duration_ms"`
	OriginalIndex int       `json:"original_index"`
	IsLocal       bool      `json:"is_local,omitempty"`
}

// Key identifies the entry for merging. Local files have no catalog id, so the URI stands in.
func (t TrackEntry) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.URI
}

// ArtistLine joins artist names for display and matching.
func (t TrackEntry) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// AudioFeatures holds the secondary per-track attributes fetched on demand.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Tempo            float64 `json:"tempo"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Loudness         float64 `json:"loudness"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	TimeSignature    int     `json:"time_signature"`
}

// Page is one slice of a remotely paginated collection.
//
// Consumed counts the remote positions the page covered, including items dropped while decoding,
// so the next offset is Offset+Consumed even when len(Items) is smaller.
type Page[T any] struct {
	Items    []T
	Offset   int
	Limit    int
	Total    int
	Consumed int
	Next     string
}

// HasNext reports whether the remote side advertised another page.
func (p Page[T]) HasNext() bool {
	return p.Next != ""
}

var releaseDateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseReleaseDate accepts the day, month and year precisions used by the catalog.
// Anything else yields the zero time, which orders before every real date.
func ParseReleaseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
