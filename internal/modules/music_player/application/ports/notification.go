package ports

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// NowPlayingMessage stores where a "Now Playing" message was posted.
type NowPlayingMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// NowPlayingInfo contains the data rendered in a "Now Playing" message.
type NowPlayingInfo struct {
	Track              *domain.Track
	RequesterName      string
	RequesterAvatarURL string
	RepeatMode         domain.RepeatMode
	QueueLength        int
}

// NotificationSender defines the interface for sending notifications to Discord channels.
type NotificationSender interface {
	// SendNowPlaying sends a "Now Playing" embed to the channel and returns the message ID.
	SendNowPlaying(channelID snowflake.ID, info *NowPlayingInfo) (messageID snowflake.ID, err error)

	// SendTrackAdded announces a single queued track.
	SendTrackAdded(channelID snowflake.ID, track *domain.Track, position int) error

	// SendPlaylistAdded announces a batch of queued tracks.
	SendPlaylistAdded(channelID snowflake.ID, playlist domain.PlaylistInfo, count int) error

	// SendInfo sends a short informational embed.
	SendInfo(channelID snowflake.ID, message string) error

	// DeleteMessage deletes a message from the channel.
	DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error
}
