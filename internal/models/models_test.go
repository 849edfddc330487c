package models

import (
	"testing"
	"time"
)

func TestParseReleaseDate(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "day precision", in: "1999-03-30", want: time.Date(1999, 3, 30, 0, 0, 0, 0, time.UTC)},
		{name: "month precision", in: "1999-03", want: time.Date(1999, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "year precision", in: "1999", want: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "empty", in: "", want: time.Time{}},
		{name: "garbage", in: "soon", want: time.Time{}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReleaseDate(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("ParseReleaseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrackEntry(t *testing.T) {
	t.Run("Key prefers id", func(t *testing.T) {
		tr := TrackEntry{ID: "abc", URI: "spotify:track:abc"}
		if tr.Key() != "abc" {
			t.Errorf("expected key abc, got %s", tr.Key())
		}
	})

	t.Run("Key falls back to uri for local files", func(t *testing.T) {
		tr := TrackEntry{URI: LocalURIPrefix + "a:b:c:180"}
		if tr.Key() != tr.URI {
			t.Errorf("expected uri key, got %s", tr.Key())
		}
	})

	t.Run("ArtistLine", func(t *testing.T) {
		tr := TrackEntry{Artists: []string{"Daft Punk", "Pharrell Williams"}}
		if got := tr.ArtistLine(); got != "Daft Punk, Pharrell Williams" {
			t.Errorf("unexpected artist line %q", got)
		}
	})
}

func TestPlaylistOwnedBy(t *testing.T) {
	p := Playlist{OwnerID: "me"}
	if !p.OwnedBy("me") {
		t.Error("expected owner match")
	}
	if p.OwnedBy("you") {
		t.Error("expected owner mismatch")
	}
	if (Playlist{}).OwnedBy("") {
		t.Error("empty user must never own a playlist")
	}
}

func TestFilterCriteria(t *testing.T) {
	t.Run("IsEmpty ignores blank keywords", func(t *testing.T) {
		f := FilterCriteria{TitleKeywords: []string{"  ", ""}}
		if !f.IsEmpty() {
			t.Error("expected blank keywords to count as empty")
		}
	})

	t.Run("IsEmpty with one field set", func(t *testing.T) {
		f := FilterCriteria{Artists: []string{"bjork"}}
		if f.IsEmpty() {
			t.Error("expected criteria to be non-empty")
		}
	})

	t.Run("ParseKeywords", func(t *testing.T) {
		got := ParseKeywords(" live, remix ,, acoustic ")
		want := []string{"live", "remix", "acoustic"}
		if len(got) != len(want) {
			t.Fatalf("expected %d keywords, got %d (%v)", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})

	t.Run("String", func(t *testing.T) {
		f := FilterCriteria{TitleKeywords: []string{"live"}, Artists: []string{"nin"}}
		if got := f.String(); got != "title: live; artist: nin" {
			t.Errorf("unexpected summary %q", got)
		}
	})
}

func TestSortSpec(t *testing.T) {
	t.Run("Toggle same field flips order", func(t *testing.T) {
		s := SortSpec{Field: SortByTitle, Order: Ascending}.Toggle(SortByTitle)
		if s.Order != Descending {
			t.Errorf("expected desc, got %s", s.Order)
		}
		s = s.Toggle(SortByTitle)
		if s.Order != Ascending {
			t.Errorf("expected asc, got %s", s.Order)
		}
	})

	t.Run("Toggle new field starts ascending", func(t *testing.T) {
		s := SortSpec{Field: SortByTitle, Order: Descending}.Toggle(SortByBPM)
		if s.Field != SortByBPM || s.Order != Ascending {
			t.Errorf("expected bpm asc, got %s", s)
		}
	})

	t.Run("ParseSortField", func(t *testing.T) {
		for _, f := range SortFields() {
			got, err := ParseSortField(f.String())
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", f, err)
			}
			if got != f {
				t.Errorf("expected %s, got %s", f, got)
			}
		}
		if _, err := ParseSortField("popularity"); err == nil {
			t.Error("expected error for unknown field")
		}
	})

	t.Run("ParseSortOrder", func(t *testing.T) {
		if o, _ := ParseSortOrder("DESC"); o != Descending {
			t.Error("expected descending")
		}
		if _, err := ParseSortOrder("sideways"); err == nil {
			t.Error("expected error for unknown order")
		}
	})
}

func TestPlaylistSort(t *testing.T) {
	got, err := ParsePlaylistSort("size-desc")
	if err != nil || got != PlaylistSortSizeDesc {
		t.Errorf("expected size-desc, got %v (%v)", got, err)
	}
	if PlaylistSortSizeDesc.Next() != PlaylistSortDefault {
		t.Error("expected cycle to wrap to default")
	}
}
