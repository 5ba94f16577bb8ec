package infrastructure

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// VoiceStateProvider provides Discord voice state information.
type VoiceStateProvider struct {
	state *discordgo.State
}

// NewVoiceStateProvider creates a new VoiceStateProvider.
func NewVoiceStateProvider(session *discordgo.Session) *VoiceStateProvider {
	return &VoiceStateProvider{
		state: session.State,
	}
}

// GetUserVoiceChannel returns the voice channel ID that the user is currently in.
// Returns 0 if the user is not in a voice channel.
func (v *VoiceStateProvider) GetUserVoiceChannel(
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	guild, err := v.state.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID.String() && vs.ChannelID != "" {
			channelID, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, err
			}
			return channelID, nil
		}
	}

	return 0, nil
}

// CountListeners returns how many non-bot users are connected to the channel.
func (v *VoiceStateProvider) CountListeners(guildID, channelID snowflake.ID) (int, error) {
	guild, err := v.state.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID.String() {
			continue
		}
		if v.isBot(guild.ID, vs) {
			continue
		}
		count++
	}

	return count, nil
}

func (v *VoiceStateProvider) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if v.state.User != nil && vs.UserID == v.state.User.ID {
		return true
	}
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	member, err := v.state.Member(guildID, vs.UserID)
	if err != nil || member.User == nil {
		// Unknown members count as listeners.
		return false
	}
	return member.User.Bot
}

// Ensure VoiceStateProvider implements ports.VoiceStateProvider.
var _ ports.VoiceStateProvider = (*VoiceStateProvider)(nil)
