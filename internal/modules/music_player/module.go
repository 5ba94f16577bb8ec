package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/bot"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodicord/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/melodicord/internal/modules/music_player/presentation/discord"
)

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*MusicPlayerModule)(nil)

// ErrNoSession is returned when the module is initialized without a gateway session.
var ErrNoSession = errors.New("music_player requires a Discord session")

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	commandHandlers *discord.CommandHandlers
	autocomplete    *discord.AutocompleteHandler
	eventHandlers   *discord.EventHandlers

	hub        *usecases.PlayerHub
	cacheIndex *infrastructure.JSONCacheIndex

	// Event-driven components
	eventBus            *infrastructure.ChannelEventBus
	notificationHandler *application.NotificationEventHandler

	// Background cache sweeping
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":       m.commandHandlers.HandlePlay,
		"skip":       m.commandHandlers.HandleSkip,
		"skipto":     m.commandHandlers.HandleSkipTo,
		"seek":       m.commandHandlers.HandleSeek,
		"pause":      m.commandHandlers.HandlePause,
		"resume":     m.commandHandlers.HandleResume,
		"repeat":     m.commandHandlers.HandleRepeat,
		"volume":     m.commandHandlers.HandleVolume,
		"shuffle":    m.commandHandlers.HandleShuffle,
		"queue":      m.commandHandlers.HandleQueue,
		"nowplaying": m.commandHandlers.HandleNowPlaying,
		"stop":       m.commandHandlers.HandleStop,
		"leave":      m.commandHandlers.HandleLeave,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.eventHandlers.HandleVoiceStateUpdate(s, event)
		},
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			m.autocomplete.Handle(s, i)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return ErrNoSession
	}
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}
	cfg := m.config
	session := deps.Session

	m.ctx, m.cancel = context.WithCancel(context.Background())

	// Create event bus
	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)

	// Create cache infrastructure
	index, err := infrastructure.OpenJSONCacheIndex(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache index: %w", err)
	}
	m.cacheIndex = index
	if err := index.Watch(); err != nil {
		slog.Warn("cache directory watch disabled", "error", err)
	}

	youtube := infrastructure.NewYouTubePlatform()
	transcoder := infrastructure.NewFFmpegTranscoder(cfg.FFmpegPath)
	cache := usecases.NewAudioCache(
		cfg.CacheDir,
		index,
		youtube,
		infrastructure.NewYtdlpExtractor(),
		transcoder,
		infrastructure.NewID3Tagger(),
		infrastructure.NewMP3Probe(),
	)

	// Catalog lookups are optional
	var catalog ports.CatalogClient
	if cfg.HasSpotify() {
		spotify, err := infrastructure.NewSpotifyClient(infrastructure.SpotifyConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			Market:       cfg.SearchMarket,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		catalog = spotify
	} else {
		slog.Warn("Spotify credentials not configured, only YouTube lookups are available")
	}
	resolver := usecases.NewMediaResolver(catalog, youtube, cfg.SearchOptions())

	// Create the hub
	voiceState := infrastructure.NewVoiceStateProvider(session)
	m.hub = usecases.NewPlayerHub(
		infrastructure.NewMemoryRepository[*usecases.GuildQueue](),
		resolver,
		cache,
		infrastructure.NewDiscordVoice(session),
		func(guildID snowflake.ID) ports.AudioPlayer {
			return infrastructure.NewOpusPlayer(guildID, transcoder)
		},
		voiceState,
		m.eventBus,
		cfg.HubOptions(),
	)

	// Register notification handlers
	m.notificationHandler = application.NewNotificationEventHandler(
		m.eventBus,
		infrastructure.NewNotifier(session),
		infrastructure.NewDiscordUserInfoProvider(session),
	)
	if err := m.notificationHandler.Start(); err != nil {
		return err
	}

	// Sweep orphaned cache files in the background
	sweeper := usecases.NewCacheSweeper(
		cfg.CacheDir,
		infrastructure.IndexFilename,
		index,
		m.hub.ActiveFilenames,
		cache.InFlight,
		cfg.CacheSweepGrace,
	)
	if cfg.CacheSweepInterval > 0 {
		m.wg.Go(func() {
			sweeper.Run(m.ctx, cfg.CacheSweepInterval)
		})
	}

	// Create presentation handlers
	m.commandHandlers = discord.NewCommandHandlers(m.hub, voiceState)
	m.autocomplete = discord.NewAutocompleteHandler(m.hub)
	m.eventHandlers = discord.NewEventHandlers(func() snowflake.ID {
		return sessionUserID(session)
	}, m.hub)

	slog.Info("music_player module initialized",
		"cache_dir", cfg.CacheDir,
		"spotify", catalog != nil,
	)

	return nil
}

// Shutdown cleans up module resources.
func (m *MusicPlayerModule) Shutdown() error {
	// Cancel context first to stop the sweeper
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	// Leave every voice channel
	if m.hub != nil {
		m.hub.Close()
	}

	// Close event bus
	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.cacheIndex != nil {
		return m.cacheIndex.Close()
	}
	return nil
}

// sessionUserID returns the bot's user ID, or 0 before the session is ready.
func sessionUserID(s *discordgo.Session) snowflake.ID {
	if s.State == nil || s.State.User == nil {
		return 0
	}
	id, err := snowflake.Parse(s.State.User.ID)
	if err != nil {
		return 0
	}
	return id
}
