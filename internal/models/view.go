package models

// OverlaySnapshot is a consistent copy of the uncommitted local edits.
type OverlaySnapshot struct {
	MultiSelect bool
	Selected    map[string]struct{}
	Deleted     map[string]struct{}
	Favorites   map[string]struct{}
}

func (s OverlaySnapshot) IsSelected(uri string) bool {
	_, ok := s.Selected[uri]
	return ok
}

func (s OverlaySnapshot) IsDeleted(uri string) bool {
	_, ok := s.Deleted[uri]
	return ok
}

func (s OverlaySnapshot) IsFavorite(id string) bool {
	_, ok := s.Favorites[id]
	return ok
}

// AnnotatedTrack is a row of the derived track view.
type AnnotatedTrack struct {
	TrackEntry
	Position   int            `json:"position"`
	IsFiltered bool           `json:"is_filtered"`
	IsDeleted  bool           `json:"is_deleted"`
	IsSelected bool           `json:"is_selected"`
	Features   *AudioFeatures `json:"features,omitempty"`
}

// Tempo returns the BPM, or 0 when features are absent.
func (a AnnotatedTrack) Tempo() float64 {
	if a.Features == nil {
		return 0
	}
	return a.Features.Tempo
}

// AnnotatedPlaylist is a row of the derived playlist view.
type AnnotatedPlaylist struct {
	Playlist
	Position   int  `json:"position"`
	IsFavorite bool `json:"is_favorite"`
}
