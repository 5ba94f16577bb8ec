package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// MaterializeBitrate is the fixed bitrate of cached files, in kbps.
const MaterializeBitrate = 256

// Messages reported in MaterializeResult.
const (
	MessageAlreadyDownloaded = "Track already downloaded"
	MessageDownloaded        = "Track downloaded successfully"
	MessageNoMatch           = "No matching video found on YouTube"
	MessageInvalidVideoURL   = "Invalid YouTube URL"
)

// MaterializeStatus reports whether a file is available for a track.
type MaterializeStatus string

const (
	MaterializeSuccess MaterializeStatus = "success"
	MaterializeError   MaterializeStatus = "error"
)

// MaterializeResult is the outcome of AudioCache.EnsureLocal.
type MaterializeResult struct {
	Status   MaterializeStatus
	Message  string
	Filename string // set on success only
	SourceID string
	Duration time.Duration // read from the file, zero when unknown
}

// Materializer produces local audio files for tracks.
type Materializer interface {
	EnsureLocal(ctx context.Context, meta domain.TrackMetadata) (MaterializeResult, error)
	Path(filename string) string
	Discard(filename string)
}

var _ Materializer = (*AudioCache)(nil)

// AudioCache materializes tracks into a directory of mp3 files with a persisted index.
type AudioCache struct {
	dir        string
	index      ports.CacheIndex
	video      ports.VideoPlatform
	extractor  ports.AudioExtractor
	transcoder ports.Transcoder
	tagger     ports.AudioTagger // optional
	probe      ports.AudioProbe  // optional

	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAudioCache creates a new AudioCache rooted at dir.
func NewAudioCache(
	dir string,
	index ports.CacheIndex,
	video ports.VideoPlatform,
	extractor ports.AudioExtractor,
	transcoder ports.Transcoder,
	tagger ports.AudioTagger,
	probe ports.AudioProbe,
) *AudioCache {
	return &AudioCache{
		dir:        dir,
		index:      index,
		video:      video,
		extractor:  extractor,
		transcoder: transcoder,
		tagger:     tagger,
		probe:      probe,
		inFlight:   make(map[string]struct{}),
	}
}

// Dir returns the cache directory.
func (c *AudioCache) Dir() string {
	return c.dir
}

// Path returns the absolute location of a cached file.
func (c *AudioCache) Path(filename string) string {
	return filepath.Join(c.dir, filename)
}

// EnsureLocal makes sure a playable file exists for the track.
// A result with MaterializeError status means no source could be located;
// a non-nil error means extraction or transcoding failed.
// Concurrent calls for the same source share one materialization.
func (c *AudioCache) EnsureLocal(
	ctx context.Context,
	meta domain.TrackMetadata,
) (MaterializeResult, error) {
	sourceID, message := c.locate(ctx, meta)
	if sourceID == "" {
		return MaterializeResult{Status: MaterializeError, Message: message}, nil
	}

	// The shared materialization outlives any single caller.
	v, err, _ := c.group.Do(sourceID, func() (any, error) {
		return c.materialize(context.WithoutCancel(ctx), sourceID, meta)
	})
	if err != nil {
		return MaterializeResult{Status: MaterializeError, Message: err.Error(), SourceID: sourceID},
			err
	}
	return v.(MaterializeResult), nil
}

// InFlight returns the filenames currently being written.
func (c *AudioCache) InFlight() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]struct{}, len(c.inFlight))
	for name := range c.inFlight {
		result[name] = struct{}{}
	}
	return result
}

// Discard deletes a cached file and its index entries.
func (c *AudioCache) Discard(filename string) {
	if filename == "" {
		return
	}

	for _, entry := range c.index.Entries() {
		if entry.Filename != filename {
			continue
		}
		if err := c.index.Remove(entry.VideoID); err != nil {
			slog.Warn("failed to remove cache index entry", "video", entry.VideoID, "error", err)
		}
	}

	if err := os.Remove(c.Path(filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to delete cached file", "file", filename, "error", err)
	}
}

// locate returns the source id for the track, or a failure message.
func (c *AudioCache) locate(ctx context.Context, meta domain.TrackMetadata) (string, string) {
	if meta.SourceKind == domain.SourceKindVideo {
		id, ok := domain.ExtractVideoID(meta.URL)
		if !ok {
			return "", MessageInvalidVideoURL
		}
		return id, ""
	}

	query := fmt.Sprintf("%s - %s (Official Audio)", meta.Title, meta.Author.Name)
	video, err := c.video.SearchVideo(ctx, query)
	if err != nil {
		slog.Warn("video search failed", "query", query, "error", err)
		return "", MessageNoMatch
	}
	if video == nil || video.ID == "" {
		return "", MessageNoMatch
	}
	return video.ID, ""
}

func (c *AudioCache) materialize(
	ctx context.Context,
	sourceID string,
	meta domain.TrackMetadata,
) (MaterializeResult, error) {
	if entry, ok := c.index.Lookup(sourceID); ok && c.exists(entry.Filename) {
		info, err := c.inspect(entry.Filename)
		if err == nil {
			return MaterializeResult{
				Status:   MaterializeSuccess,
				Message:  MessageAlreadyDownloaded,
				Filename: entry.Filename,
				SourceID: sourceID,
				Duration: info.Duration,
			}, nil
		}
		slog.Warn("indexed file is unreadable, downloading again",
			"video", sourceID,
			"file", entry.Filename,
			"error", err,
		)
	}

	filename := CacheFilename(meta.Title, meta.Author.Name, sourceID)

	// A file left from an earlier run is adopted when it decodes and its
	// tags name the same source.
	if c.exists(filename) && c.probe != nil {
		info, err := c.probe.Probe(c.Path(filename))
		if err == nil && tagsMatch(info, sourceID, meta) {
			if err := c.record(sourceID, meta, filename); err != nil {
				return MaterializeResult{}, err
			}
			return MaterializeResult{
				Status:   MaterializeSuccess,
				Message:  MessageAlreadyDownloaded,
				Filename: filename,
				SourceID: sourceID,
				Duration: info.Duration,
			}, nil
		}
		slog.Info("replacing unrecognized cache file", "file", filename)
	}

	c.markInFlight(filename, true)
	defer c.markInFlight(filename, false)

	if err := c.download(ctx, sourceID, filename); err != nil {
		return MaterializeResult{}, fmt.Errorf("%w: %w", ErrMaterializationFailed, err)
	}

	if c.tagger != nil {
		tags := ports.AudioTags{Title: meta.Title, Artist: meta.Author.Name, SourceID: sourceID}
		if err := c.tagger.Tag(c.Path(filename), tags); err != nil {
			slog.Warn("failed to tag cached file", "file", filename, "error", err)
		}
	}

	info, err := c.inspect(filename)
	if err != nil {
		_ = os.Remove(c.Path(filename))
		return MaterializeResult{}, fmt.Errorf("%w: %w", ErrMaterializationFailed, err)
	}

	if err := c.record(sourceID, meta, filename); err != nil {
		return MaterializeResult{}, err
	}

	slog.Info("track materialized", "video", sourceID, "file", filename, "duration", info.Duration)

	return MaterializeResult{
		Status:   MaterializeSuccess,
		Message:  MessageDownloaded,
		Filename: filename,
		SourceID: sourceID,
		Duration: info.Duration,
	}, nil
}

// inspect reads a cached file back. Without a probe every file is accepted.
func (c *AudioCache) inspect(filename string) (*ports.AudioInfo, error) {
	if c.probe == nil {
		return &ports.AudioInfo{}, nil
	}
	return c.probe.Probe(c.Path(filename))
}

// tagsMatch reports whether a file's tags identify it as the given source.
// The source comment decides when present, title and artist otherwise.
func tagsMatch(info *ports.AudioInfo, sourceID string, meta domain.TrackMetadata) bool {
	if info.SourceID != "" {
		return info.SourceID == sourceID
	}
	return info.Title != "" &&
		strings.EqualFold(info.Title, meta.Title) &&
		strings.EqualFold(info.Artist, meta.Author.Name)
}

func (c *AudioCache) download(ctx context.Context, sourceID, filename string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	stream, err := c.extractor.ExtractAudio(ctx, domain.VideoURL(sourceID))
	if err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	partial := c.Path(filename) + ".part"
	transcodeErr := c.transcoder.Transcode(ctx, stream, MaterializeBitrate, partial)
	closeErr := stream.Close()

	if transcodeErr == nil && closeErr != nil {
		transcodeErr = fmt.Errorf("extract audio: %w", closeErr)
	}
	if transcodeErr != nil {
		_ = os.Remove(partial)
		return transcodeErr
	}

	return os.Rename(partial, c.Path(filename))
}

func (c *AudioCache) record(sourceID string, meta domain.TrackMetadata, filename string) error {
	err := c.index.Record(ports.CacheEntry{
		Title:    meta.Title,
		Author:   meta.Author,
		VideoID:  sourceID,
		Filename: filename,
	})
	if err != nil {
		return fmt.Errorf("%w: persist index: %w", ErrMaterializationFailed, err)
	}
	return nil
}

func (c *AudioCache) exists(filename string) bool {
	if filename == "" {
		return false
	}
	info, err := os.Stat(c.Path(filename))
	return err == nil && !info.IsDir()
}

func (c *AudioCache) markInFlight(filename string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if active {
		c.inFlight[filename] = struct{}{}
	} else {
		delete(c.inFlight, filename)
	}
}

var pathSeparators = strings.NewReplacer("/", " ", `\`, " ")

// CacheFilename builds the deterministic cache filename for a track.
func CacheFilename(title, author, sourceID string) string {
	return fmt.Sprintf("%s - %s [%s].mp3",
		pathSeparators.Replace(title),
		pathSeparators.Replace(author),
		sourceID,
	)
}
