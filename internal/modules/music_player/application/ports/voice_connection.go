package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// VoiceTransport opens voice connections.
type VoiceTransport interface {
	// Connect joins the voice channel and returns a ready connection.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (VoiceConnection, error)
}

// VoiceConnection is an open connection to one voice channel.
type VoiceConnection interface {
	// ChannelID returns the connected voice channel.
	ChannelID() snowflake.ID

	// Subscribe routes the player's output into this connection.
	Subscribe(player AudioPlayer) error

	// Destroy disconnects from the voice channel.
	Destroy() error
}
