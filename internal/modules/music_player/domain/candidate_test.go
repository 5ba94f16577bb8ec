package domain

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func TestCandidate_Normalize(t *testing.T) {
	c := Candidate{}.Normalize()

	if c.Title != UnknownTrackTitle {
		t.Errorf("Title = %q, want %q", c.Title, UnknownTrackTitle)
	}
	if c.Author.Name != UnknownArtistName {
		t.Errorf("Author = %q, want %q", c.Author.Name, UnknownArtistName)
	}
	if c.URL != "" || c.Thumbnail != "" {
		t.Error("expected missing URL and thumbnail to stay empty")
	}
	if c.Duration != 0 || c.DurationText() != "00:00" {
		t.Errorf("expected zero duration, got %v", c.Duration)
	}
	if c.Type != TrackTypeTrack {
		t.Errorf("Type = %q, want track", c.Type)
	}
}

func TestCandidate_ToTrack(t *testing.T) {
	c := Candidate{
		Title:      "Song",
		Author:     Author{Name: "Band"},
		Duration:   2 * time.Minute,
		Type:       TrackTypeAlbum,
		SourceKind: SourceKindCatalog,
	}

	track := c.ToTrack(snowflake.ID(5), "user")

	if track.Metadata.Title != "Song" || track.Metadata.Author.Name != "Band" {
		t.Errorf("unexpected metadata %+v", track.Metadata)
	}
	if track.Metadata.RequesterID != 5 || track.Metadata.RequesterName != "user" {
		t.Errorf("unexpected requester %+v", track.Metadata)
	}
	if track.Metadata.DurationText() != "02:00" {
		t.Errorf("DurationText() = %q", track.Metadata.DurationText())
	}
	if track.IsMaterialized() {
		t.Error("converted track must not be materialized yet")
	}
}

func TestDescribeSource(t *testing.T) {
	playlist := &PlaylistInfo{Name: "Mix"}

	tests := []struct {
		name       string
		candidates []Candidate
		want       string
	}{
		{
			name:       "single track",
			candidates: []Candidate{{Type: TrackTypeTrack}},
			want:       "Track",
		},
		{
			name: "album",
			candidates: []Candidate{
				{Type: TrackTypeAlbum, Playlist: playlist},
				{Type: TrackTypeAlbum, Playlist: playlist},
			},
			want: "Album «Mix»",
		},
		{
			name:       "artist",
			candidates: []Candidate{{Type: TrackTypeArtist, Author: Author{Name: "Band"}}},
			want:       "Tracks by «Band»",
		},
		{
			name:       "playlist",
			candidates: []Candidate{{Type: TrackTypePlaylist, Playlist: playlist}},
			want:       "Playlist «Mix»",
		},
		{
			name:       "mixed types",
			candidates: []Candidate{{Type: TrackTypeAlbum}, {Type: TrackTypeTrack}},
			want:       "Track",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescribeSource(tt.candidates); got != tt.want {
				t.Errorf("DescribeSource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectionInfo(t *testing.T) {
	withPlaylist := []Candidate{{
		Author: Author{Name: "Band"},
		Playlist: &PlaylistInfo{
			Name:   "Greatest Hits",
			Author: Author{Name: "Band"},
			URL:    "https://example.com/album",
			Type:   TrackTypeAlbum,
		},
	}}
	info := CollectionInfo(withPlaylist)
	if info.Name != "Greatest Hits" || info.Type != TrackTypeAlbum {
		t.Errorf("unexpected info %+v", info)
	}

	info = CollectionInfo([]Candidate{{Author: Author{Name: "Band"}}})
	if info.Name != "Tracks by «Band»" {
		t.Errorf("expected artist fallback name, got %q", info.Name)
	}
	if info.Type != TrackTypePlaylist {
		t.Errorf("expected playlist fallback type, got %q", info.Type)
	}
}
