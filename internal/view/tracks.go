package view

import (
	"cmp"
	"slices"

	"github.com/charlievieth/strcase"
	"github.com/desertthunder/pureplaylist/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TrackInput is everything the track view derives from.
type TrackInput struct {
	Items    []models.TrackEntry
	Overlay  models.OverlaySnapshot
	Filter   models.FilterCriteria
	Sort     models.SortSpec
	Features map[string]*models.AudioFeatures
	// Locale is a BCP 47 tag for title and album collation. Empty means English.
	Locale string
}

// Tracks derives the display list.
//
// Deleted entries are dropped. Entries matching the filter come first and are flagged IsFiltered;
// within each group the active sort applies, and ties keep their remote order.
func Tracks(in TrackInput) []models.AnnotatedTrack {
	filter := in.Filter.Normalize()
	active := !filter.IsEmpty()

	rows := make([]models.AnnotatedTrack, 0, len(in.Items))
	for _, item := range in.Items {
		if in.Overlay.IsDeleted(item.URI) {
			continue
		}
		row := models.AnnotatedTrack{
			TrackEntry: item,
			IsSelected: in.Overlay.IsSelected(item.URI),
		}
		if item.ID != "" {
			row.Features = in.Features[item.ID]
		}
		if active {
			row.IsFiltered = Matches(item, filter)
		}
		rows = append(rows, row)
	}

	compare := trackComparator(in.Sort, newCollator(in.Locale))
	slices.SortStableFunc(rows, func(a, b models.AnnotatedTrack) int {
		if a.IsFiltered != b.IsFiltered {
			if a.IsFiltered {
				return -1
			}
			return 1
		}
		return compare(a, b)
	})

	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

// Matches reports whether any keyword of any non-empty field is a case-insensitive substring of that field.
func Matches(t models.TrackEntry, f models.FilterCriteria) bool {
	return containsAny(t.Title, f.TitleKeywords) ||
		containsAny(t.Album, f.Albums) ||
		containsAny(t.ArtistLine(), f.Artists)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strcase.Contains(s, k) {
			return true
		}
	}
	return false
}

func newCollator(locale string) *collate.Collator {
	tag := language.English
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			tag = t
		}
	}
	return collate.New(tag, collate.IgnoreCase)
}

func trackComparator(spec models.SortSpec, c *collate.Collator) func(a, b models.AnnotatedTrack) int {
	var base func(a, b models.AnnotatedTrack) int

	switch spec.Field {
	case models.SortByTitle:
		base = func(a, b models.AnnotatedTrack) int { return c.CompareString(a.Title, b.Title) }
	case models.SortByAlbum:
		base = func(a, b models.AnnotatedTrack) int { return c.CompareString(a.Album, b.Album) }
	case models.SortByDate:
		base = func(a, b models.AnnotatedTrack) int { return a.ReleaseDate.Compare(b.ReleaseDate) }
	case models.SortByBPM:
		base = func(a, b models.AnnotatedTrack) int { return cmp.Compare(a.Tempo(), b.Tempo()) }
	case models.SortByDuration:
		base = func(a, b models.AnnotatedTrack) int { return cmp.Compare(a.DurationMS, b.DurationMS) }
	default:
		base = func(a, b models.AnnotatedTrack) int { return cmp.Compare(a.OriginalIndex, b.OriginalIndex) }
	}

	if spec.Order == models.Descending {
		return func(a, b models.AnnotatedTrack) int { return base(b, a) }
	}
	return base
}

// URIs returns the uris of rows in display order.
func URIs(rows []models.AnnotatedTrack) []string {
	uris := make([]string, len(rows))
	for i, r := range rows {
		uris[i] = r.URI
	}
	return uris
}

// FilteredURIs returns the uris of rows matching the active filter.
func FilteredURIs(rows []models.AnnotatedTrack) []string {
	var uris []string
	for _, r := range rows {
		if r.IsFiltered {
			uris = append(uris, r.URI)
		}
	}
	return uris
}
