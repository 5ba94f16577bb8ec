package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
)

const (
	// Discord limits
	maxChoices        = 25
	maxChoiceNameLen  = 100
	maxChoiceValueLen = 100

	// searchTimeout keeps autocomplete within the 3 second interaction deadline.
	searchTimeout = 2500 * time.Millisecond
)

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	hub *usecases.PlayerHub
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(hub *usecases.PlayerHub) *AutocompleteHandler {
	return &AutocompleteHandler{hub: hub}
}

// Handle routes an autocomplete interaction to the matching handler.
func (h *AutocompleteHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return
	}

	data := i.ApplicationCommandData()

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch data.Name {
	case "play":
		choices = h.playChoices(focusedString(data.Options))
	case "skipto":
		choices = h.positionChoices(i.GuildID)
	case "queue":
		if len(data.Options) > 0 && data.Options[0].Name == "remove" {
			choices = h.positionChoices(i.GuildID)
		}
	default:
		return
	}

	respondChoices(s, i, choices)
}

// playChoices searches for the partial query.
func (h *AutocompleteHandler) playChoices(query string) []*discordgo.ApplicationCommandOptionChoice {
	// Don't search for very short queries
	if len([]rune(query)) < 2 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	return candidateChoices(query, h.hub.Search(ctx, query))
}

// positionChoices lists the upcoming tracks by their /queue list position.
func (h *AutocompleteHandler) positionChoices(rawGuildID string) []*discordgo.ApplicationCommandOptionChoice {
	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		slog.Warn("failed to parse guild ID in autocomplete", "error", err, "guildID", rawGuildID)
		return nil
	}

	queue := h.hub.GetQueue(guildID)
	if queue == nil {
		return nil
	}

	return positionChoices(queue.Tracks())
}

func candidateChoices(
	query string,
	candidates []usecases.Candidate,
) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxChoices)

	if len(candidates) > 1 && candidates[0].Playlist != nil {
		playlist := candidates[0].Playlist
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(fmt.Sprintf("📋 %s (%d tracks)", playlist.Name, len(candidates)), maxChoiceNameLen),
			Value: truncate(query, maxChoiceValueLen),
		})
	}

	for _, c := range candidates {
		if len(choices) == maxChoices {
			break
		}
		value := c.URL
		if value == "" || len(value) > maxChoiceValueLen {
			value = truncate(fmt.Sprintf("%s %s", c.Author.Name, c.Title), maxChoiceValueLen)
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(fmt.Sprintf("🎵 %s - %s (%s)", c.Title, c.Author.Name, c.DurationText()), maxChoiceNameLen),
			Value: value,
		})
	}
	return choices
}

// positionChoices skips the current track, which cannot be removed or skipped to.
func positionChoices(tracks []*usecases.Track) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxChoices)
	for idx := 1; idx < len(tracks) && len(choices) < maxChoices; idx++ {
		// Use 1-indexed positions to match queue list display
		displayPos := idx + 1
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%d. %s", displayPos, truncate(tracks[idx].Metadata.Title, 90)),
			Value: displayPos,
		})
	}
	return choices
}

func focusedString(options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range options {
		if opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}

func respondChoices(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	choices []*discordgo.ApplicationCommandOptionChoice,
) {
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		slog.Debug("failed to respond to autocomplete", "error", err)
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
