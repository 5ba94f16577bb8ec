package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/tcolgate/mp3"
)

// ErrNoAudioFrames is returned when a file holds no decodable MP3 frames.
var ErrNoAudioFrames = errors.New("no mp3 frames found")

// MP3Probe reads tags and duration from MP3 files.
type MP3Probe struct{}

// NewMP3Probe creates a new MP3Probe.
func NewMP3Probe() *MP3Probe {
	return &MP3Probe{}
}

// Probe returns what can be read back from the file. A file without
// audio frames is reported as ErrNoAudioFrames.
func (p *MP3Probe) Probe(path string) (*ports.AudioInfo, error) {
	duration, err := mp3Duration(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	info := &ports.AudioInfo{Duration: duration}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// Missing tags are not an error, the file still plays.
	if meta, err := tag.ReadFrom(f); err == nil {
		info.Title = strings.TrimSpace(meta.Title())
		info.Artist = strings.TrimSpace(meta.Artist())
		info.SourceID = strings.TrimSpace(meta.Comment())
	}

	return info, nil
}

func mp3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration()
		frames++
	}

	if frames == 0 {
		return 0, ErrNoAudioFrames
	}
	return total, nil
}

// Ensure MP3Probe implements ports.AudioProbe.
var _ ports.AudioProbe = (*MP3Probe)(nil)
