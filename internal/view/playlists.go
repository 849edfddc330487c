package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/deluan/sanitize"
	"github.com/desertthunder/pureplaylist/internal/models"
)

// PlaylistInput is everything the playlist view derives from.
type PlaylistInput struct {
	Items     []models.Playlist
	Favorites map[string]struct{}
	Search    string
	Sort      models.PlaylistSort
	Locale    string
}

// Playlists derives the playlist list: search narrows, favorites lead, then the chosen order.
func Playlists(in PlaylistInput) []models.AnnotatedPlaylist {
	terms := searchTerms(in.Search)

	rows := make([]models.AnnotatedPlaylist, 0, len(in.Items))
	for _, p := range in.Items {
		if !matchesTerms(p.Name, terms) {
			continue
		}
		_, fav := in.Favorites[p.ID]
		rows = append(rows, models.AnnotatedPlaylist{Playlist: p, IsFavorite: fav})
	}

	compare := playlistComparator(in.Sort, in.Locale)
	slices.SortStableFunc(rows, func(a, b models.AnnotatedPlaylist) int {
		if a.IsFavorite != b.IsFavorite {
			if a.IsFavorite {
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

func searchTerms(q string) []string {
	return strings.Fields(strings.ToLower(sanitize.Accents(q)))
}

func matchesTerms(name string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	folded := strings.ToLower(sanitize.Accents(name))
	for _, t := range terms {
		if !strings.Contains(folded, t) {
			return false
		}
	}
	return true
}

func playlistComparator(sort models.PlaylistSort, locale string) func(a, b models.AnnotatedPlaylist) int {
	switch sort {
	case models.PlaylistSortNameAsc, models.PlaylistSortNameDesc:
		c := newCollator(locale)
		if sort == models.PlaylistSortNameDesc {
			return func(a, b models.AnnotatedPlaylist) int { return c.CompareString(b.Name, a.Name) }
		}
		return func(a, b models.AnnotatedPlaylist) int { return c.CompareString(a.Name, b.Name) }
	case models.PlaylistSortSizeAsc:
		return func(a, b models.AnnotatedPlaylist) int { return cmp.Compare(a.TrackCount, b.TrackCount) }
	case models.PlaylistSortSizeDesc:
		return func(a, b models.AnnotatedPlaylist) int { return cmp.Compare(b.TrackCount, a.TrackCount) }
	default:
		return func(a, b models.AnnotatedPlaylist) int { return 0 }
	}
}
