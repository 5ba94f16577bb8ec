package domain

import (
	"regexp"
	"strings"
)

// QueryKind tells how a search query should be resolved.
type QueryKind int

const (
	QueryKindKeyword QueryKind = iota
	QueryKindCatalogLink
	QueryKindVideoLink
)

var (
	catalogLinkPattern = regexp.MustCompile(
		`https://open\.spotify\.com/(track|artist|album|playlist)/([a-zA-Z0-9]{22})`,
	)
	videoLinkPattern = regexp.MustCompile(
		`(?:https?://)?(?:www\.)?(?:youtube\.com/.*[?&]v=|youtu\.be/)([^"&?/\s]{11})`,
	)
)

// SearchQuery represents parsed user input.
type SearchQuery struct {
	Raw        string    // The trimmed input
	Kind       QueryKind // How the input was recognized
	EntityType TrackType // Catalog entity type for catalog links
	ID         string    // Catalog entity id or video id for links
}

// ParseSearchQuery classifies user input as a catalog link, a video link or keywords.
func ParseSearchQuery(input string) SearchQuery {
	input = strings.TrimSpace(input)

	if m := catalogLinkPattern.FindStringSubmatch(input); m != nil {
		return SearchQuery{
			Raw:        input,
			Kind:       QueryKindCatalogLink,
			EntityType: TrackType(m[1]),
			ID:         m[2],
		}
	}

	if id, ok := ExtractVideoID(input); ok {
		return SearchQuery{
			Raw:  input,
			Kind: QueryKindVideoLink,
			ID:   id,
		}
	}

	return SearchQuery{Raw: input, Kind: QueryKindKeyword}
}

// IsValid returns true if the query is not empty.
func (q SearchQuery) IsValid() bool {
	return q.Raw != ""
}

// ExtractVideoID returns the video id embedded in a video link.
func ExtractVideoID(link string) (string, bool) {
	m := videoLinkPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// VideoURL returns the canonical watch URL for a video id.
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
