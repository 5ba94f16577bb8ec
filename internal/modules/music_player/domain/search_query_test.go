package domain

import (
	"testing"
)

func TestParseSearchQuery(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expectedKind   QueryKind
		expectedEntity TrackType
		expectedID     string
		expectedRaw    string
	}{
		{
			name:         "search term",
			input:        "never gonna give you up",
			expectedKind: QueryKindKeyword,
			expectedRaw:  "never gonna give you up",
		},
		{
			name:         "search term with whitespace",
			input:        "  hello world  ",
			expectedKind: QueryKindKeyword,
			expectedRaw:  "hello world",
		},
		{
			name:           "catalog track link",
			input:          "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expectedKind:   QueryKindCatalogLink,
			expectedEntity: TrackTypeTrack,
			expectedID:     "4uLU6hMCjMI75M1A2tKUQC",
			expectedRaw:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:           "catalog playlist link with query string",
			input:          "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc",
			expectedKind:   QueryKindCatalogLink,
			expectedEntity: TrackTypePlaylist,
			expectedID:     "37i9dQZF1DXcBWIGoYBM5M",
			expectedRaw:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc",
		},
		{
			name:         "catalog link with short id is keywords",
			input:        "https://open.spotify.com/album/short",
			expectedKind: QueryKindKeyword,
			expectedRaw:  "https://open.spotify.com/album/short",
		},
		{
			name:         "watch link",
			input:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expectedKind: QueryKindVideoLink,
			expectedID:   "dQw4w9WgXcQ",
			expectedRaw:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:         "short link",
			input:        "youtu.be/dQw4w9WgXcQ",
			expectedKind: QueryKindVideoLink,
			expectedID:   "dQw4w9WgXcQ",
			expectedRaw:  "youtu.be/dQw4w9WgXcQ",
		},
		{
			name:         "watch link with extra params",
			input:        "https://youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=10",
			expectedKind: QueryKindVideoLink,
			expectedID:   "dQw4w9WgXcQ",
			expectedRaw:  "https://youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=10",
		},
		{
			name:         "empty string",
			input:        "",
			expectedKind: QueryKindKeyword,
			expectedRaw:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ParseSearchQuery(tt.input)

			if q.Kind != tt.expectedKind {
				t.Errorf("Kind = %v, expected %v", q.Kind, tt.expectedKind)
			}
			if q.EntityType != tt.expectedEntity {
				t.Errorf("EntityType = %q, expected %q", q.EntityType, tt.expectedEntity)
			}
			if q.ID != tt.expectedID {
				t.Errorf("ID = %q, expected %q", q.ID, tt.expectedID)
			}
			if q.Raw != tt.expectedRaw {
				t.Errorf("Raw = %q, expected %q", q.Raw, tt.expectedRaw)
			}
		})
	}
}

func TestSearchQuery_IsValid(t *testing.T) {
	if ParseSearchQuery("   ").IsValid() {
		t.Error("expected blank query to be invalid")
	}
	if !ParseSearchQuery("song").IsValid() {
		t.Error("expected keyword query to be valid")
	}
}

func TestExtractVideoID(t *testing.T) {
	if _, ok := ExtractVideoID("https://example.com/watch?v=abc"); ok {
		t.Error("expected non-video link to be rejected")
	}
	id, ok := ExtractVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if !ok || id != "dQw4w9WgXcQ" {
		t.Errorf("expected dQw4w9WgXcQ, got %q (ok=%v)", id, ok)
	}
}

func TestVideoURL(t *testing.T) {
	if got := VideoURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("VideoURL() = %q", got)
	}
}
