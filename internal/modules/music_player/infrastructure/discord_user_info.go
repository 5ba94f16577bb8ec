package infrastructure

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// Ensure DiscordUserInfoProvider implements ports.UserInfoProvider.
var (
	_ ports.UserInfoProvider = (*DiscordUserInfoProvider)(nil)
)

// DiscordUserInfoProvider implements ports.UserInfoProvider using a Discord session.
// Members cached in the session state are served without a REST call.
type DiscordUserInfoProvider struct {
	session *discordgo.Session
}

// NewDiscordUserInfoProvider creates a new DiscordUserInfoProvider.
func NewDiscordUserInfoProvider(session *discordgo.Session) *DiscordUserInfoProvider {
	return &DiscordUserInfoProvider{session: session}
}

// GetUserInfo fetches display info for a user in a guild.
func (p *DiscordUserInfoProvider) GetUserInfo(
	guildID, userID snowflake.ID,
) (*ports.UserInfo, error) {
	member, err := p.member(guildID.String(), userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	if member.User == nil {
		return nil, fmt.Errorf("guild member %s has no user", userID)
	}

	return &ports.UserInfo{
		DisplayName: DisplayName(member),
		AvatarURL:   member.AvatarURL(""),
	}, nil
}

func (p *DiscordUserInfoProvider) member(guildID, userID string) (*discordgo.Member, error) {
	if p.session.State != nil {
		if member, err := p.session.State.Member(guildID, userID); err == nil {
			return member, nil
		}
	}
	return p.session.GuildMember(guildID, userID)
}

// DisplayName returns the effective display name for a guild member.
// Priority: guild nickname > global display name > username.
func DisplayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User == nil {
		return ""
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}
