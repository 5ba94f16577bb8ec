package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Messages posted to the text channel when playback stops.
const (
	MessageQueueEnd         = "Queue finished, nothing left to play."
	MessageQueueDestroyed   = "Playback stopped and the queue was cleared."
	MessageClientDisconnect = "I was disconnected from the voice channel, the queue was cleared."
	MessageChannelEmpty     = "Everyone left the voice channel, stopping playback."
)

// NotificationEventHandler turns queue events into Discord messages.
// It keeps at most one "Now Playing" message per guild and deletes it once
// the track it describes is no longer playing.
type NotificationEventHandler struct {
	subscriber       ports.EventSubscriber
	notifier         ports.NotificationSender
	userInfoProvider ports.UserInfoProvider

	mu         sync.Mutex
	nowPlaying map[snowflake.ID]ports.NowPlayingMessage
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
func NewNotificationEventHandler(
	subscriber ports.EventSubscriber,
	notifier ports.NotificationSender,
	userInfoProvider ports.UserInfoProvider,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		subscriber:       subscriber,
		notifier:         notifier,
		userInfoProvider: userInfoProvider,
		nowPlaying:       make(map[snowflake.ID]ports.NowPlayingMessage),
	}
}

// Start registers event handlers with the subscriber.
func (h *NotificationEventHandler) Start() error {
	handlers := map[domain.EventKind]func(context.Context, domain.Event){
		domain.EventSongAdd:          h.handleSongAdd,
		domain.EventPlaylistAdd:      h.handlePlaylistAdd,
		domain.EventSongStarted:      h.handleSongStarted,
		domain.EventSongEnded:        h.handleSongEnded,
		domain.EventQueueEnd:         h.handleStopped(MessageQueueEnd),
		domain.EventQueueDestroyed:   h.handleStopped(MessageQueueDestroyed),
		domain.EventClientDisconnect: h.handleStopped(MessageClientDisconnect),
		domain.EventChannelEmpty:     h.handleStopped(MessageChannelEmpty),
	}

	for kind, handler := range handlers {
		if err := h.subscriber.Subscribe(kind, handler); err != nil {
			return err
		}
	}

	slog.Debug("notification event handlers properly registered")

	return nil
}

// NowPlaying returns the tracked "Now Playing" message for the guild.
func (h *NotificationEventHandler) NowPlaying(guildID snowflake.ID) (ports.NowPlayingMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, ok := h.nowPlaying[guildID]
	return msg, ok
}

func (h *NotificationEventHandler) handleSongAdd(_ context.Context, e domain.Event) {
	event := e.(domain.SongAddEvent)
	snapshot := event.Snapshot()

	// A track added to an empty queue is announced by its "Now Playing" message.
	if snapshot.Length <= 1 {
		return
	}

	if err := h.notifier.SendTrackAdded(snapshot.TextChannelID, event.Track, snapshot.Length-1); err != nil {
		slog.Warn(
			"failed to send track added notification",
			"guild", snapshot.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handlePlaylistAdd(_ context.Context, e domain.Event) {
	event := e.(domain.PlaylistAddEvent)
	snapshot := event.Snapshot()

	err := h.notifier.SendPlaylistAdded(snapshot.TextChannelID, event.Playlist, len(event.Tracks))
	if err != nil {
		slog.Warn(
			"failed to send playlist added notification",
			"guild", snapshot.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handleSongStarted(_ context.Context, e domain.Event) {
	event := e.(domain.SongStartedEvent)
	snapshot := event.Snapshot()

	h.deleteNowPlaying(snapshot.GuildID)

	info := &ports.NowPlayingInfo{
		Track:         event.Track,
		RequesterName: event.Track.Metadata.RequesterName,
		RepeatMode:    snapshot.RepeatMode,
		QueueLength:   snapshot.Length,
	}
	if h.userInfoProvider != nil && event.Track.Metadata.RequesterID != 0 {
		userInfo, err := h.userInfoProvider.GetUserInfo(snapshot.GuildID, event.Track.Metadata.RequesterID)
		if err == nil {
			info.RequesterName = userInfo.DisplayName
			info.RequesterAvatarURL = userInfo.AvatarURL
		} else {
			slog.Debug(
				"failed to look up requester",
				"guild", snapshot.GuildID,
				"user", event.Track.Metadata.RequesterID,
				"error", err,
			)
		}
	}

	slog.Debug(
		"sending now playing notification",
		"guild", snapshot.GuildID,
		"track", event.Track.ID,
	)

	messageID, err := h.notifier.SendNowPlaying(snapshot.TextChannelID, info)
	if err != nil {
		slog.Error(
			"failed to send now playing notification",
			"guild", snapshot.GuildID,
			"error", err,
		)
		return
	}

	h.mu.Lock()
	h.nowPlaying[snapshot.GuildID] = ports.NowPlayingMessage{
		ChannelID: snapshot.TextChannelID,
		MessageID: messageID,
	}
	h.mu.Unlock()
}

func (h *NotificationEventHandler) handleSongEnded(_ context.Context, e domain.Event) {
	h.deleteNowPlaying(e.Snapshot().GuildID)
}

func (h *NotificationEventHandler) handleStopped(message string) func(context.Context, domain.Event) {
	return func(_ context.Context, e domain.Event) {
		snapshot := e.Snapshot()
		h.deleteNowPlaying(snapshot.GuildID)

		if snapshot.TextChannelID == 0 {
			return
		}
		if err := h.notifier.SendInfo(snapshot.TextChannelID, message); err != nil {
			slog.Warn(
				"failed to send notification",
				"guild", snapshot.GuildID,
				"event", e.Kind(),
				"error", err,
			)
		}
	}
}

func (h *NotificationEventHandler) deleteNowPlaying(guildID snowflake.ID) {
	h.mu.Lock()
	msg, ok := h.nowPlaying[guildID]
	delete(h.nowPlaying, guildID)
	h.mu.Unlock()

	if !ok {
		return
	}

	if err := h.notifier.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		slog.Warn(
			"failed to delete previous now playing message",
			"guild", guildID,
			"now_playing", msg,
			"error", err,
		)
	}
}
