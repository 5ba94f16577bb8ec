package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
)

// VoiceStateHandler reacts to voice presence changes in a guild.
type VoiceStateHandler interface {
	HandleVoiceStateUpdate(input usecases.VoiceStateUpdateInput)
}

// EventHandlers handles Discord gateway events for the music player.
// selfID is resolved per event since the bot user is only known once the
// gateway session is ready.
type EventHandlers struct {
	selfID func() snowflake.ID
	hub    VoiceStateHandler
}

// NewEventHandlers creates a new EventHandlers.
func NewEventHandlers(selfID func() snowflake.ID, hub VoiceStateHandler) *EventHandlers {
	return &EventHandlers{
		selfID: selfID,
		hub:    hub,
	}
}

// HandleVoiceStateUpdate forwards every member's voice state change so the
// hub can track both the bot's own connection and empty channels.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if event.VoiceState == nil {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	userID, err := snowflake.Parse(event.UserID)
	if err != nil {
		slog.Error("failed to parse user ID in voice state update", "error", err)
		return
	}

	// Empty channel ID means disconnected
	var channelID snowflake.ID
	if event.ChannelID != "" {
		channelID, err = snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
	}

	h.hub.HandleVoiceStateUpdate(usecases.VoiceStateUpdateInput{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
		IsSelf:    userID == h.selfID(),
	})
}
