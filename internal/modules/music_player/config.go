package music_player

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
)

// Config holds the music player module configuration.
type Config struct {
	// Spotify credentials. Without them only YouTube lookups are available.
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	SearchMarket string `env:"SEARCH_MARKET" envDefault:"RU"`
	SearchLimit  int    `env:"SEARCH_LIMIT"  envDefault:"1"`

	LeaveOnEnd   bool          `env:"LEAVE_ON_END"   envDefault:"true"`
	LeaveOnEmpty bool          `env:"LEAVE_ON_EMPTY" envDefault:"true"`
	EmptyTimeout time.Duration `env:"EMPTY_TIMEOUT"  envDefault:"0s"`

	CacheDir           string        `env:"CACHE_DIR"            envDefault:"downloads"`
	FFmpegPath         string        `env:"FFMPEG_PATH"          envDefault:"ffmpeg"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"30m"`
	CacheSweepGrace    time.Duration `env:"CACHE_SWEEP_GRACE"    envDefault:"10m"`
}

// LoadConfig parses the module configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasSpotify reports whether catalog lookups are configured.
func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// SearchOptions returns the resolver search options.
func (c *Config) SearchOptions() ports.SearchOptions {
	return ports.SearchOptions{
		Types:  usecases.DefaultSearchOptions.Types,
		Limit:  c.SearchLimit,
		Market: c.SearchMarket,
	}
}

// HubOptions returns the queue teardown policies.
func (c *Config) HubOptions() usecases.PlayerHubOptions {
	return usecases.PlayerHubOptions{
		LeaveOnEnd:   c.LeaveOnEnd,
		LeaveOnEmpty: c.LeaveOnEmpty,
		EmptyTimeout: c.EmptyTimeout,
	}
}
