package ports

import (
	"context"
	"io"
	"time"
)

// AudioExtractor pulls the audio stream of a video.
type AudioExtractor interface {
	// ExtractAudio streams the best available audio of locator.
	// The caller must close the returned reader; Close reports extraction failures.
	ExtractAudio(ctx context.Context, locator string) (io.ReadCloser, error)
}

// Transcoder converts an audio stream into a compressed file.
type Transcoder interface {
	Transcode(ctx context.Context, src io.Reader, bitrateKbps int, outputPath string) error
}

// AudioTags are written into materialized files.
type AudioTags struct {
	Title    string
	Artist   string
	SourceID string
}

// AudioTagger writes metadata tags into an audio file.
type AudioTagger interface {
	Tag(path string, tags AudioTags) error
}

// AudioInfo is what can be read back from an audio file.
type AudioInfo struct {
	Title    string
	Artist   string
	SourceID string // empty when the file carries no source comment
	Duration time.Duration
}

// AudioProbe inspects an existing audio file.
type AudioProbe interface {
	Probe(path string) (*AudioInfo, error)
}
