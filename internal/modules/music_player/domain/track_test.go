package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func TestNewTrack(t *testing.T) {
	meta := TrackMetadata{
		Title:         "Test Song",
		URL:           "https://example.com/track",
		Author:        Author{Name: "Test Artist"},
		Duration:      3*time.Minute + 30*time.Second,
		RequesterID:   snowflake.ID(123456789),
		RequesterName: "TestUser",
		Type:          TrackTypeTrack,
		SourceKind:    SourceKindCatalog,
	}

	a := NewTrack(meta)
	b := NewTrack(meta)

	if a.ID == "" {
		t.Fatal("expected track ID to be generated")
	}
	if a.ID == b.ID {
		t.Error("expected distinct IDs for distinct entries")
	}
	if a.Metadata != meta {
		t.Errorf("expected metadata %+v, got %+v", meta, a.Metadata)
	}
	if a.IsMaterialized() {
		t.Error("new track must not be materialized")
	}
	if !a.StartedAt().IsZero() {
		t.Error("new track must not have a start time")
	}
}

func TestTrack_SetFilename(t *testing.T) {
	track := NewTrack(TrackMetadata{Title: "Song"})

	if err := track.SetFilename(""); !errors.Is(err, ErrEmptyFilename) {
		t.Errorf("expected ErrEmptyFilename, got %v", err)
	}
	if err := track.SetFilename("song.mp3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := track.SetFilename("song.mp3"); err != nil {
		t.Errorf("rebinding the same file should succeed, got %v", err)
	}
	if err := track.SetFilename("other.mp3"); !errors.Is(err, ErrAlreadyMaterialized) {
		t.Errorf("expected ErrAlreadyMaterialized, got %v", err)
	}
	if track.Filename() != "song.mp3" {
		t.Errorf("expected filename song.mp3, got %q", track.Filename())
	}
}

func TestTrack_ElapsedDisplay(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		started bool
		now     time.Time
		want    string
	}{
		{
			name:    "not started",
			started: false,
			now:     start.Add(time.Minute),
			want:    "00:00",
		},
		{
			name:    "ninety seconds in",
			started: true,
			now:     start.Add(90 * time.Second),
			want:    "01:30",
		},
		{
			name:    "past one hour keeps counting minutes",
			started: true,
			now:     start.Add(65*time.Minute + 5*time.Second),
			want:    "65:05",
		},
		{
			name:    "clock skew before start",
			started: true,
			now:     start.Add(-time.Second),
			want:    "00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := NewTrack(TrackMetadata{Title: "Song"})
			if tt.started {
				track.MarkStarted(start)
			}
			if got := track.ElapsedDisplay(tt.now); got != tt.want {
				t.Errorf("ElapsedDisplay() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrack_SeekFlag(t *testing.T) {
	track := NewTrack(TrackMetadata{Title: "Song"})

	if track.ConsumeSeeked() {
		t.Error("expected seek flag to start cleared")
	}

	track.MarkSeeked()
	if !track.ConsumeSeeked() {
		t.Error("expected seek flag to be set")
	}
	if track.ConsumeSeeked() {
		t.Error("expected seek flag to be cleared after consumption")
	}
}

func TestTrack_ResetRuntime(t *testing.T) {
	track := NewTrack(TrackMetadata{Title: "Song"})
	track.MarkStarted(time.Now())
	track.MarkSeeked()

	track.ResetRuntime()

	if !track.StartedAt().IsZero() {
		t.Error("expected start time cleared")
	}
	if track.ConsumeSeeked() {
		t.Error("expected seek flag cleared")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{3*time.Minute + 7*time.Second, "03:07"},
		{212500 * time.Millisecond, "03:32"},
		{-time.Second, "00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
