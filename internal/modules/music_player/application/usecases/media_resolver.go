package usecases

import (
	"context"
	"log/slog"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// DefaultSearchOptions matches the catalog search used when no options are configured.
var DefaultSearchOptions = ports.SearchOptions{
	Types:  []domain.TrackType{domain.TrackTypeTrack},
	Limit:  1,
	Market: "RU",
}

// resolveStep is one source the resolver may consult for a query.
type resolveStep struct {
	name    string
	applies func(q domain.SearchQuery) bool
	run     func(ctx context.Context, q domain.SearchQuery) ([]domain.Candidate, error)
}

// MediaResolver turns free-form user input into playable candidates.
type MediaResolver struct {
	catalog ports.CatalogClient // nil when no catalog credentials are configured
	video   ports.VideoPlatform
	opts    ports.SearchOptions
	steps   []resolveStep
}

// NewMediaResolver creates a new MediaResolver. catalog may be nil.
func NewMediaResolver(
	catalog ports.CatalogClient,
	video ports.VideoPlatform,
	opts ports.SearchOptions,
) *MediaResolver {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchOptions.Limit
	}
	if len(opts.Types) == 0 {
		opts.Types = DefaultSearchOptions.Types
	}
	if opts.Market == "" {
		opts.Market = DefaultSearchOptions.Market
	}

	r := &MediaResolver{
		catalog: catalog,
		video:   video,
		opts:    opts,
	}
	r.steps = []resolveStep{
		{
			name: "catalog link",
			applies: func(q domain.SearchQuery) bool {
				return r.catalog != nil && q.Kind == domain.QueryKindCatalogLink
			},
			run: r.lookupCatalog,
		},
		{
			name: "video link",
			applies: func(q domain.SearchQuery) bool {
				return r.video != nil && q.Kind == domain.QueryKindVideoLink
			},
			run: r.fetchVideo,
		},
		{
			name: "catalog search",
			applies: func(domain.SearchQuery) bool {
				return r.catalog != nil
			},
			run: r.searchCatalog,
		},
		{
			name: "video search",
			applies: func(domain.SearchQuery) bool {
				return r.video != nil
			},
			run: r.searchVideo,
		},
	}
	return r
}

// Search resolves input to candidates. It returns nil when nothing matched.
// Links are looked up first; when that fails or yields nothing the raw input
// falls through to the keyword searches. Source failures are logged and the
// next source is tried.
func (r *MediaResolver) Search(ctx context.Context, input string) []domain.Candidate {
	query := domain.ParseSearchQuery(input)
	if !query.IsValid() {
		return nil
	}

	for _, step := range r.steps {
		if !step.applies(query) {
			continue
		}

		candidates, err := step.run(ctx, query)
		if err != nil {
			slog.Warn("media source failed", "source", step.name, "query", query.Raw, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		result := make([]domain.Candidate, 0, len(candidates))
		for _, c := range candidates {
			result = append(result, c.Normalize())
		}
		return result
	}

	return nil
}

func (r *MediaResolver) lookupCatalog(
	ctx context.Context,
	q domain.SearchQuery,
) ([]domain.Candidate, error) {
	candidates, err := r.catalog.Lookup(ctx, q.EntityType, q.ID)
	if err != nil {
		return nil, err
	}
	if len(candidates) > domain.MaxCollectionItems {
		candidates = candidates[:domain.MaxCollectionItems]
	}
	return candidates, nil
}

func (r *MediaResolver) searchCatalog(
	ctx context.Context,
	q domain.SearchQuery,
) ([]domain.Candidate, error) {
	return r.catalog.Search(ctx, q.Raw, r.opts)
}

func (r *MediaResolver) fetchVideo(
	ctx context.Context,
	q domain.SearchQuery,
) ([]domain.Candidate, error) {
	meta, err := r.video.FetchMetadata(ctx, domain.VideoURL(q.ID))
	if err != nil {
		return nil, err
	}
	return videoCandidates(meta), nil
}

func (r *MediaResolver) searchVideo(
	ctx context.Context,
	q domain.SearchQuery,
) ([]domain.Candidate, error) {
	meta, err := r.video.SearchVideo(ctx, q.Raw)
	if err != nil {
		return nil, err
	}
	return videoCandidates(meta), nil
}

func videoCandidates(meta *ports.VideoMetadata) []domain.Candidate {
	if meta == nil {
		return nil
	}
	return []domain.Candidate{{
		Title:      meta.Title,
		URL:        domain.VideoURL(meta.ID),
		Author:     domain.Author{Name: meta.Author, URL: meta.AuthorURL},
		Thumbnail:  meta.Thumbnail,
		Duration:   meta.Duration,
		Type:       domain.TrackTypeTrack,
		SourceKind: domain.SourceKindVideo,
	}}
}
