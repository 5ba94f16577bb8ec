package domain

import (
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// TrackID is a unique identifier for a queue entry.
type TrackID string

// TrackType describes which catalog entity a track was resolved from.
type TrackType string

const (
	TrackTypeTrack    TrackType = "track"
	TrackTypeAlbum    TrackType = "album"
	TrackTypeArtist   TrackType = "artist"
	TrackTypePlaylist TrackType = "playlist"
)

// Author identifies the artist or uploader of a track.
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// TrackMetadata describes a playable item. It is never modified after the
// track is constructed, so it can be shared freely with event subscribers.
type TrackMetadata struct {
	Title         string
	URL           string
	Author        Author
	Thumbnail     string
	Duration      time.Duration
	RequesterID   snowflake.ID
	RequesterName string
	Type          TrackType
	SourceKind    SourceKind
}

// DurationText returns the duration formatted as mm:ss.
func (m TrackMetadata) DurationText() string {
	return FormatClock(m.Duration)
}

// PlaybackRuntime holds the mutable playback state of a queued track.
type PlaybackRuntime struct {
	StartedAt time.Time
	Seeked    bool
}

// Track is one entry of a guild queue. Runtime state is owned by the queue
// holding the track and must only be touched under that queue's lock.
type Track struct {
	ID       TrackID
	Metadata TrackMetadata

	filename string
	runtime  PlaybackRuntime
}

// NewTrack creates a queue entry for the given metadata.
func NewTrack(metadata TrackMetadata) *Track {
	return &Track{
		ID:       TrackID(uuid.NewString()),
		Metadata: metadata,
	}
}

// Filename returns the cache file backing this track, or "" before it is materialized.
func (t *Track) Filename() string {
	return t.filename
}

// IsMaterialized reports whether a local audio file backs this track.
func (t *Track) IsMaterialized() bool {
	return t.filename != ""
}

// SetFilename binds the track to its cache file. The binding happens once.
func (t *Track) SetFilename(filename string) error {
	if filename == "" {
		return ErrEmptyFilename
	}
	if t.filename != "" && t.filename != filename {
		return ErrAlreadyMaterialized
	}
	t.filename = filename
	return nil
}

// MarkStarted records the time playback of this track began.
func (t *Track) MarkStarted(at time.Time) {
	t.runtime.StartedAt = at
}

// StartedAt returns when playback began, or the zero time if it has not.
func (t *Track) StartedAt() time.Time {
	return t.runtime.StartedAt
}

// MarkSeeked flags that the next playing transition comes from a seek.
func (t *Track) MarkSeeked() {
	t.runtime.Seeked = true
}

// ConsumeSeeked clears the seek flag and reports whether it was set.
func (t *Track) ConsumeSeeked() bool {
	seeked := t.runtime.Seeked
	t.runtime.Seeked = false
	return seeked
}

// ResetRuntime clears the playback state, e.g. when a track is requeued.
func (t *Track) ResetRuntime() {
	t.runtime = PlaybackRuntime{}
}

// Elapsed returns how long the track has been playing.
func (t *Track) Elapsed(now time.Time) time.Duration {
	if t.runtime.StartedAt.IsZero() || now.Before(t.runtime.StartedAt) {
		return 0
	}
	return now.Sub(t.runtime.StartedAt)
}

// ElapsedDisplay returns the elapsed playback time as mm:ss.
func (t *Track) ElapsedDisplay(now time.Time) string {
	return FormatClock(t.Elapsed(now))
}

// FormatClock formats d as mm:ss. Minutes keep counting past an hour.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int(d / time.Second)
	return pad(totalSeconds/60) + ":" + pad(totalSeconds%60)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
