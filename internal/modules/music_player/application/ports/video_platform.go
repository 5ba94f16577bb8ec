package ports

import (
	"context"
	"time"
)

// VideoMetadata describes one video on the video platform.
type VideoMetadata struct {
	ID        string
	Title     string
	Author    string
	AuthorURL string
	Thumbnail string
	Duration  time.Duration
}

// VideoPlatform defines the interface for looking up videos.
type VideoPlatform interface {
	// SearchVideo returns the first video matching text, or nil if nothing matched.
	SearchVideo(ctx context.Context, text string) (*VideoMetadata, error)

	// FetchMetadata returns the metadata of the video behind locator.
	FetchMetadata(ctx context.Context, locator string) (*VideoMetadata, error)
}
