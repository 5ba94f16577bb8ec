package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyAPIBaseURL  = "https://api.spotify.com/v1"
	spotifyTokenURL    = "https://accounts.spotify.com/api/token"
	spotifyDefaultRate = 10
)

// SpotifyConfig configures a SpotifyClient.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	// Market is sent with requests that require one, such as artist top tracks.
	Market string
	// RequestsPerSecond limits outgoing API calls. Zero uses the default.
	RequestsPerSecond float64

	HTTPClient *http.Client
	APIBaseURL string
	TokenURL   string
}

// SpotifyClient resolves catalog links and keyword searches against the Spotify Web API.
type SpotifyClient struct {
	httpClient *http.Client
	apiBaseURL string
	market     string
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
}

// NewSpotifyClient creates a new SpotifyClient. The access token is fetched
// lazily and reused until it expires.
func NewSpotifyClient(cfg SpotifyConfig) (*SpotifyClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", usecases.ErrAuthFailure)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = spotifyAPIBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = spotifyDefaultRate
	}

	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &SpotifyClient{
		httpClient: httpClient,
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		market:     cfg.Market,
		tokens:     credentials.TokenSource(tokenCtx),
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)*2),
	}, nil
}

// AccessToken returns a valid access token, fetching a new one when the cached token expired.
func (c *SpotifyClient) AccessToken(_ context.Context) (string, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", usecases.ErrAuthFailure, err)
	}
	return token.AccessToken, nil
}

// Lookup resolves a catalog entity to its tracks. Collections are capped at
// domain.MaxCollectionItems entries.
func (c *SpotifyClient) Lookup(
	ctx context.Context,
	entity domain.TrackType,
	id string,
) ([]domain.Candidate, error) {
	switch entity {
	case domain.TrackTypeTrack:
		var track spotifyTrack
		if err := c.get(ctx, "/tracks/"+url.PathEscape(id), nil, &track); err != nil {
			return nil, err
		}
		return []domain.Candidate{track.candidate(domain.TrackTypeTrack, nil)}, nil

	case domain.TrackTypeAlbum, domain.TrackTypePlaylist:
		path := "/albums/"
		query := url.Values{}
		if entity == domain.TrackTypePlaylist {
			path = "/playlists/"
			query.Set("limit", strconv.Itoa(domain.MaxCollectionItems))
		}
		var collection spotifyCollection
		if err := c.get(ctx, path+url.PathEscape(id), query, &collection); err != nil {
			return nil, err
		}
		tracks := make([]spotifyTrack, 0, len(collection.Tracks.Items))
		for _, item := range collection.Tracks.Items {
			if t := item.track(); t != nil {
				tracks = append(tracks, *t)
			}
		}
		return collection.candidates(entity, tracks), nil

	case domain.TrackTypeArtist:
		query := url.Values{}
		if c.market != "" {
			query.Set("market", c.market)
		}
		var top spotifyTopTracks
		if err := c.get(ctx, "/artists/"+url.PathEscape(id)+"/top-tracks", query, &top); err != nil {
			return nil, err
		}
		return (&spotifyCollection{}).candidates(entity, top.Tracks), nil

	default:
		return nil, fmt.Errorf("unsupported catalog entity %q", entity)
	}
}

// Search runs a keyword search and returns the matching tracks.
func (c *SpotifyClient) Search(
	ctx context.Context,
	query string,
	opts ports.SearchOptions,
) ([]domain.Candidate, error) {
	types := make([]string, 0, len(opts.Types))
	for _, t := range opts.Types {
		types = append(types, string(t))
	}
	if len(types) == 0 {
		types = append(types, string(domain.TrackTypeTrack))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", strings.Join(types, ","))
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Market != "" {
		params.Set("market", opts.Market)
	}

	var result spotifySearchResult
	if err := c.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(result.Tracks.Items))
	for _, track := range result.Tracks.Items {
		candidates = append(candidates, track.candidate(domain.TrackTypeTrack, nil))
	}
	return candidates, nil
}

func (c *SpotifyClient) get(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.apiBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: spotify returned %d", usecases.ErrAuthFailure, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("spotify request %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify request %s: decode: %w", path, err)
	}
	return nil
}

type spotifyExternalURLs struct {
	Spotify string `json:"spotify"`
}

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	Name         string              `json:"name"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
}

type spotifyTrack struct {
	Name         string              `json:"name"`
	Artists      []spotifyArtist     `json:"artists"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
	DurationMS   int64               `json:"duration_ms"`
	Album        *struct {
		Images []spotifyImage `json:"images"`
	} `json:"album"`
}

// spotifyItem is an album track or a playlist entry wrapping its track.
type spotifyItem struct {
	spotifyTrack
	Track *spotifyTrack `json:"track"`
}

func (i *spotifyItem) track() *spotifyTrack {
	if i.Track != nil {
		return i.Track
	}
	if i.Name == "" && len(i.Artists) == 0 {
		return nil
	}
	return &i.spotifyTrack
}

type spotifyCollection struct {
	Name         string              `json:"name"`
	ExternalURLs spotifyExternalURLs `json:"external_urls"`
	Images       []spotifyImage      `json:"images"`
	Artists      []spotifyArtist     `json:"artists"`
	Owner        *struct {
		DisplayName  string              `json:"display_name"`
		ExternalURLs spotifyExternalURLs `json:"external_urls"`
	} `json:"owner"`
	Tracks struct {
		Items []spotifyItem `json:"items"`
	} `json:"tracks"`
}

type spotifyTopTracks struct {
	Tracks []spotifyTrack `json:"tracks"`
}

type spotifySearchResult struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

func (t *spotifyTrack) candidate(entity domain.TrackType, playlist *domain.PlaylistInfo) domain.Candidate {
	c := domain.Candidate{
		Title:      t.Name,
		URL:        t.ExternalURLs.Spotify,
		Author:     artistsAuthor(t.Artists),
		Duration:   time.Duration(t.DurationMS) * time.Millisecond,
		Type:       entity,
		SourceKind: domain.SourceKindCatalog,
		Playlist:   playlist,
	}
	if t.Album != nil && len(t.Album.Images) > 0 {
		c.Thumbnail = t.Album.Images[0].URL
	}
	return c.Normalize()
}

func (c *spotifyCollection) candidates(entity domain.TrackType, tracks []spotifyTrack) []domain.Candidate {
	if len(tracks) > domain.MaxCollectionItems {
		tracks = tracks[:domain.MaxCollectionItems]
	}

	result := make([]domain.Candidate, 0, len(tracks))
	for i := range tracks {
		track := &tracks[i]
		playlist := c.playlistInfo(entity, track)
		candidate := track.candidate(entity, playlist)
		if candidate.Thumbnail == "" {
			candidate.Thumbnail = playlist.Thumbnail
		}
		result = append(result, candidate)
	}
	return result
}

func (c *spotifyCollection) playlistInfo(entity domain.TrackType, item *spotifyTrack) *domain.PlaylistInfo {
	info := &domain.PlaylistInfo{
		Name: c.Name,
		URL:  c.ExternalURLs.Spotify,
		Type: entity,
	}
	if info.URL == "" && len(item.Artists) > 0 {
		info.URL = item.Artists[0].ExternalURLs.Spotify
	}

	switch {
	case c.Owner != nil:
		info.Author = domain.Author{Name: c.Owner.DisplayName, URL: c.Owner.ExternalURLs.Spotify}
	case len(c.Artists) > 0:
		info.Author = artistsAuthor(c.Artists)
	default:
		info.Author = artistsAuthor(item.Artists)
	}

	if len(c.Images) > 0 {
		info.Thumbnail = c.Images[0].URL
	}
	return info
}

func artistsAuthor(artists []spotifyArtist) domain.Author {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	author := domain.Author{Name: strings.Join(names, ", ")}
	if len(artists) > 0 {
		author.URL = artists[0].ExternalURLs.Spotify
	}
	return author
}

// Ensure SpotifyClient implements ports.CatalogClient.
var _ ports.CatalogClient = (*SpotifyClient)(nil)
