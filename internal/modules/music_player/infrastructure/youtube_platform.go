package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// ErrNoVideoMetadata is returned when yt-dlp printed nothing usable for a video.
var ErrNoVideoMetadata = errors.New("no video metadata")

const ytdlpMetadataTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(uploader_url)s\t%(duration)s\t%(thumbnail)s"

// videoHit is a search result before its full metadata is fetched.
type videoHit struct {
	ID     string
	Title  string
	Author string
}

type videoSearchFunc func(ctx context.Context, text string) ([]videoHit, error)

// YouTubePlatform looks up videos on YouTube. Keyword searches go through the
// web search first and YouTube Music second, metadata comes from yt-dlp.
type YouTubePlatform struct {
	searchers     []namedSearcher
	fetchMetadata func(ctx context.Context, locator string) (string, error)
	searchTimeout time.Duration
}

type namedSearcher struct {
	name   string
	search videoSearchFunc
}

// NewYouTubePlatform creates a new YouTubePlatform.
func NewYouTubePlatform() *YouTubePlatform {
	return &YouTubePlatform{
		searchers: []namedSearcher{
			{name: "youtube", search: searchYouTube},
			{name: "youtube music", search: searchYouTubeMusic},
		},
		fetchMetadata: printYtdlpMetadata,
		searchTimeout: 5 * time.Second,
	}
}

// SearchVideo returns the first video matching text, or nil if nothing matched.
func (p *YouTubePlatform) SearchVideo(ctx context.Context, text string) (*ports.VideoMetadata, error) {
	var errs []error

	for _, s := range p.searchers {
		searchCtx, cancel := context.WithTimeout(ctx, p.searchTimeout)
		hits, err := s.search(searchCtx, text)
		cancel()
		if err != nil {
			slog.Debug("video search failed", "searcher", s.name, "query", text, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		for _, hit := range hits {
			if hit.ID == "" {
				continue
			}
			return p.resolveHit(ctx, hit), nil
		}
	}

	if len(errs) == len(p.searchers) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// resolveHit upgrades a search hit to full metadata. When yt-dlp fails the
// hit itself is still good enough to locate the audio.
func (p *YouTubePlatform) resolveHit(ctx context.Context, hit videoHit) *ports.VideoMetadata {
	meta, err := p.FetchMetadata(ctx, domain.VideoURL(hit.ID))
	if err == nil {
		return meta
	}

	slog.Warn("failed to fetch video metadata, using search result", "video", hit.ID, "error", err)
	return &ports.VideoMetadata{
		ID:     hit.ID,
		Title:  hit.Title,
		Author: hit.Author,
	}
}

// FetchMetadata returns the metadata of the video behind locator.
func (p *YouTubePlatform) FetchMetadata(ctx context.Context, locator string) (*ports.VideoMetadata, error) {
	output, err := p.fetchMetadata(ctx, locator)
	if err != nil {
		return nil, err
	}
	return parseVideoMetadata(output)
}

func parseVideoMetadata(output string) (*ports.VideoMetadata, error) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 6 || parts[0] == "" {
			continue
		}

		meta := &ports.VideoMetadata{
			ID:        parts[0],
			Title:     naToEmpty(parts[1]),
			Author:    naToEmpty(parts[2]),
			AuthorURL: naToEmpty(parts[3]),
			Thumbnail: naToEmpty(parts[5]),
		}
		if d, err := time.ParseDuration(parts[4] + "s"); err == nil {
			meta.Duration = d.Round(time.Second)
		}
		return meta, nil
	}
	return nil, ErrNoVideoMetadata
}

// naToEmpty maps yt-dlp's placeholder for missing fields to "".
func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func printYtdlpMetadata(ctx context.Context, locator string) (string, error) {
	res, err := ytdlp.New().
		Print(ytdlpMetadataTemplate).
		NoSimulate().
		NoPlaylist().
		IgnoreConfig().
		NoWarnings().
		Run(ctx, "--skip-download", locator)
	if err != nil {
		if res != nil && res.Stderr != "" {
			return "", fmt.Errorf("yt-dlp: %w: %s", err, lastLine(res.Stderr))
		}
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return res.Stdout, nil
}

func searchYouTube(ctx context.Context, text string) ([]videoHit, error) {
	client := ytsearch.NewClient(nil)
	res, err := client.Search(ctx, text)
	if err != nil {
		return nil, err
	}

	hits := make([]videoHit, 0, len(res.Results))
	for _, v := range res.Results {
		hits = append(hits, videoHit{ID: v.VideoID, Title: v.Title})
	}
	return hits, nil
}

func searchYouTubeMusic(_ context.Context, text string) ([]videoHit, error) {
	res, err := ytmusic.TrackSearch(text).Next()
	if err != nil {
		return nil, err
	}

	hits := make([]videoHit, 0, len(res.Tracks))
	for _, v := range res.Tracks {
		hit := videoHit{ID: v.VideoID, Title: v.Title}
		if len(v.Artists) > 0 {
			hit.Author = v.Artists[0].Name
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Ensure YouTubePlatform implements ports.VideoPlatform.
var _ ports.VideoPlatform = (*YouTubePlatform)(nil)
