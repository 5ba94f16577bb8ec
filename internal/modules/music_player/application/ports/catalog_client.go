package ports

import (
	"context"

	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// SearchOptions controls a catalog keyword search.
type SearchOptions struct {
	Types  []domain.TrackType // Entity types to search, e.g. track, album
	Limit  int                // Maximum number of results
	Market string             // Catalog locale, e.g. "RU"
}

// CatalogClient defines the interface for a music metadata catalog.
type CatalogClient interface {
	// AccessToken returns a valid bearer token, refreshing it when expired.
	// Returns an error wrapping usecases.ErrAuthFailure if credentials are rejected.
	AccessToken(ctx context.Context) (string, error)

	// Lookup fetches the tracks of a catalog entity. Collections carry PlaylistInfo.
	Lookup(ctx context.Context, entity domain.TrackType, id string) ([]domain.Candidate, error)

	// Search performs a keyword search.
	Search(ctx context.Context, query string, opts SearchOptions) ([]domain.Candidate, error)
}
