package domain

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Placeholders used when an upstream catalog omits a field.
const (
	UnknownTrackTitle  = "Unknown Track"
	UnknownArtistName  = "Unknown Artist"
	MaxCollectionItems = 100
)

// PlaylistInfo describes the collection a multi-track result belongs to.
type PlaylistInfo struct {
	Name      string
	Author    Author
	Thumbnail string
	URL       string
	Type      TrackType
}

// Candidate is a normalized lookup result that has not been queued yet.
type Candidate struct {
	Title      string
	URL        string
	Author     Author
	Thumbnail  string
	Duration   time.Duration
	Type       TrackType
	SourceKind SourceKind
	Playlist   *PlaylistInfo
}

// Normalize fills the fields an upstream left empty with their placeholders.
func (c Candidate) Normalize() Candidate {
	if c.Title == "" {
		c.Title = UnknownTrackTitle
	}
	if c.Author.Name == "" {
		c.Author.Name = UnknownArtistName
	}
	if c.Duration < 0 {
		c.Duration = 0
	}
	if c.Type == "" {
		c.Type = TrackTypeTrack
	}
	if c.SourceKind == "" {
		c.SourceKind = SourceKindCatalog
	}
	return c
}

// DurationText returns the candidate duration as mm:ss.
func (c Candidate) DurationText() string {
	return FormatClock(c.Duration)
}

// ToTrack turns the candidate into a queue entry requested by the given user.
func (c Candidate) ToTrack(requesterID snowflake.ID, requesterName string) *Track {
	n := c.Normalize()
	return NewTrack(TrackMetadata{
		Title:         n.Title,
		URL:           n.URL,
		Author:        n.Author,
		Thumbnail:     n.Thumbnail,
		Duration:      n.Duration,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		Type:          n.Type,
		SourceKind:    n.SourceKind,
	})
}

// DescribeSource returns a short label for a batch of candidates,
// such as "Album «name»" or "Track".
func DescribeSource(candidates []Candidate) string {
	if len(candidates) == 0 {
		return string(TrackTypeTrack)
	}

	first := candidates[0]
	allOf := func(t TrackType) bool {
		for _, c := range candidates {
			if c.Type != t {
				return false
			}
		}
		return true
	}

	switch {
	case allOf(TrackTypeAlbum):
		return fmt.Sprintf("Album «%s»", first.playlistName())
	case allOf(TrackTypeArtist):
		return fmt.Sprintf("Tracks by «%s»", first.Author.Name)
	case allOf(TrackTypePlaylist):
		return fmt.Sprintf("Playlist «%s»", first.playlistName())
	default:
		return "Track"
	}
}

// CollectionInfo builds the playlist payload announced when several
// tracks from one lookup are queued.
func CollectionInfo(candidates []Candidate) PlaylistInfo {
	if len(candidates) == 0 {
		return PlaylistInfo{Type: TrackTypePlaylist}
	}

	first := candidates[0]
	info := PlaylistInfo{
		Name: fmt.Sprintf("Tracks by «%s»", first.Author.Name),
		Type: TrackTypePlaylist,
	}
	if p := first.Playlist; p != nil {
		if p.Name != "" {
			info.Name = p.Name
		}
		info.Author = p.Author
		info.Thumbnail = p.Thumbnail
		info.URL = p.URL
		if p.Type != "" {
			info.Type = p.Type
		}
	}
	return info
}

func (c Candidate) playlistName() string {
	if c.Playlist == nil {
		return ""
	}
	return c.Playlist.Name
}
