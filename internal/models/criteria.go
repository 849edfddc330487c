package models

import (
	"fmt"
	"strings"
)

// FilterCriteria holds case-insensitive substring predicates.
//
// Keywords are OR'd within a field and the non-empty fields are OR'd together.
type FilterCriteria struct {
	TitleKeywords []string `json:"title_keywords,omitempty"`
	Albums        []string `json:"albums,omitempty"`
	Artists       []string `json:"artists,omitempty"`
}

// IsEmpty reports whether no field carries a usable keyword.
func (f FilterCriteria) IsEmpty() bool {
	n := f.Normalize()
	return len(n.TitleKeywords) == 0 && len(n.Albums) == 0 && len(n.Artists) == 0
}

// Normalize trims keywords and drops blank ones.
func (f FilterCriteria) Normalize() FilterCriteria {
	return FilterCriteria{
		TitleKeywords: compact(f.TitleKeywords),
		Albums:        compact(f.Albums),
		Artists:       compact(f.Artists),
	}
}

func (f FilterCriteria) String() string {
	var parts []string
	n := f.Normalize()
	if len(n.TitleKeywords) > 0 {
		parts = append(parts, "title: "+strings.Join(n.TitleKeywords, ", "))
	}
	if len(n.Albums) > 0 {
		parts = append(parts, "album: "+strings.Join(n.Albums, ", "))
	}
	if len(n.Artists) > 0 {
		parts = append(parts, "artist: "+strings.Join(n.Artists, ", "))
	}
	return strings.Join(parts, "; ")
}

// ParseKeywords splits a comma separated input line into keywords.
func ParseKeywords(s string) []string {
	return compact(strings.Split(s, ","))
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SortField selects the comparator applied to tracks.
type SortField int

const (
	SortByNumber SortField = iota
	SortByTitle
	SortByAlbum
	SortByDate
	SortByBPM
	SortByDuration
)

var sortFieldNames = map[SortField]string{
	SortByNumber:   "number",
	SortByTitle:    "title",
	SortByAlbum:    "album",
	SortByDate:     "date",
	SortByBPM:      "bpm",
	SortByDuration: "duration",
}

func (f SortField) String() string {
	return sortFieldNames[f]
}

// SortFields lists every field in display order.
func SortFields() []SortField {
	return []SortField{SortByNumber, SortByTitle, SortByAlbum, SortByDate, SortByBPM, SortByDuration}
}

// ParseSortField maps a field name to its [SortField].
func ParseSortField(s string) (SortField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "default" || s == "index" {
		return SortByNumber, nil
	}
	for f, name := range sortFieldNames {
		if name == s {
			return f, nil
		}
	}
	return SortByNumber, fmt.Errorf("unknown sort field %q", s)
}

// SortOrder is the direction of a sort.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSortOrder accepts asc/desc and their long forms.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown sort order %q", s)
	}
}

// SortSpec is the active track ordering.
type SortSpec struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultSort is remote order, ascending.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortByNumber, Order: Ascending}
}

// Toggle picks field: choosing the active field again flips the order, a new field starts ascending.
func (s SortSpec) Toggle(field SortField) SortSpec {
	if s.Field == field {
		if s.Order == Ascending {
			return SortSpec{Field: field, Order: Descending}
		}
		return SortSpec{Field: field, Order: Ascending}
	}
	return SortSpec{Field: field, Order: Ascending}
}

func (s SortSpec) String() string {
	return s.Field.String() + " " + s.Order.String()
}

// PlaylistSort orders the playlist list. Favorites precede everything regardless.
type PlaylistSort int

const (
	PlaylistSortDefault PlaylistSort = iota
	PlaylistSortNameAsc
	PlaylistSortNameDesc
	PlaylistSortSizeAsc
	PlaylistSortSizeDesc
)

var playlistSortNames = map[PlaylistSort]string{
	PlaylistSortDefault:  "default",
	PlaylistSortNameAsc:  "name-asc",
	PlaylistSortNameDesc: "name-desc",
	PlaylistSortSizeAsc:  "size-asc",
	PlaylistSortSizeDesc: "size-desc",
}

func (p PlaylistSort) String() string {
	return playlistSortNames[p]
}

// Next cycles through the playlist orderings.
func (p PlaylistSort) Next() PlaylistSort {
	return (p + 1) % PlaylistSort(len(playlistSortNames))
}

// ParsePlaylistSort maps a name like "name-asc" to its [PlaylistSort].
func ParsePlaylistSort(s string) (PlaylistSort, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PlaylistSortDefault, nil
	}
	for p, name := range playlistSortNames {
		if name == s {
			return p, nil
		}
	}
	return PlaylistSortDefault, fmt.Errorf("unknown playlist sort %q", s)
}
