package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/bot"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x5865F2
)

const (
	maxVolumePercent = 200
	queuePageSize    = 10

	// playTimeout bounds a whole /play batch. Interaction tokens stay valid for 15 minutes.
	playTimeout = 14 * time.Minute

	// progressInterval throttles "Downloading" edits of the deferred response.
	progressInterval = 2 * time.Second
)

var errInvalidGuild = errors.New("invalid guild")

// VoiceLocator finds the voice channel a member is in.
type VoiceLocator interface {
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
}

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	hub        *usecases.PlayerHub
	voiceState VoiceLocator
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(hub *usecases.PlayerHub, voiceState VoiceLocator) *CommandHandlers {
	return &CommandHandlers{
		hub:        hub,
		voiceState: voiceState,
	}
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if i.Member == nil || i.Member.User == nil {
		return respondError(r, "This command can only be used in a server")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	textChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return respondError(r, "Invalid notification channel")
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = strings.TrimSpace(opt.StringValue())
		}
	}
	if query == "" {
		return respondError(r, "Query must not be empty")
	}

	voiceChannelID, err := h.voiceState.GetUserVoiceChannel(guildID, userID)
	if err != nil || voiceChannelID == 0 {
		return respondError(r, usecases.ErrUserNotInVoice.Error())
	}

	// Materialization can take a while, answer within the interaction deadline first
	if err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	created := h.hub.GetQueue(guildID) == nil
	queue := h.hub.CreateQueue(guildID, textChannelID)

	if err := queue.Join(ctx, voiceChannelID); err != nil {
		if created {
			_ = queue.Stop()
		}
		return editError(r, fmt.Sprintf("Failed to join <#%d>: %s", voiceChannelID, err))
	}

	progress := newProgressReporter(r, progressInterval)
	result, err := queue.Play(ctx, usecases.PlayInput{
		Query:                query,
		RequesterID:          userID,
		RequesterName:        memberDisplayName(i.Member),
		OnTrackDownloadStart: progress.report,
	})
	switch {
	case errors.Is(err, usecases.ErrNoTracksFound):
		return editError(r, fmt.Sprintf("No tracks found for **%s**.", query))
	case errors.Is(err, usecases.ErrMaterializationFailed):
		return editError(r, describeFailure(result))
	case err != nil:
		return editError(r, err.Error())
	}

	return editEmbed(r, &discordgo.MessageEmbed{
		Description: describeQueued(result),
		Color:       colorSuccess,
	})
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	skipped, err := queue.Skip()
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Skipped %s.", trackLink(skipped)))
}

// HandleSkipTo handles the /skipto command.
func (h *CommandHandlers) HandleSkipTo(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	var position int
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "position" {
			position = int(opt.IntValue())
		}
	}

	// Positions are 1-indexed for display, index 0 is the current track
	target, err := queue.SkipTo(position - 1)
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Skipped to position %d: %s.", position, trackLink(target)))
}

// HandleSeek handles the /seek command.
func (h *CommandHandlers) HandleSeek(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	var raw string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "position" {
			raw = opt.StringValue()
		}
	}

	position, err := parseTimestamp(raw)
	if err != nil {
		return respondError(r, err.Error())
	}

	if err := queue.Seek(position); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Jumped to %s.", domain.FormatClock(position)))
}

// HandlePause handles the /pause command.
func (h *CommandHandlers) HandlePause(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.setPause(i, r, true)
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.setPause(i, r, false)
}

func (h *CommandHandlers) setPause(i *discordgo.InteractionCreate, r bot.Responder, paused bool) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	changed, err := queue.SetPause(paused)
	if err != nil {
		return respondError(r, err.Error())
	}
	if !changed {
		return respondError(r, usecases.ErrNoCurrentTrack.Error())
	}

	if paused {
		return respondSuccess(r, "Paused.")
	}
	return respondSuccess(r, "Resumed.")
}

// HandleRepeat handles the /repeat command.
func (h *CommandHandlers) HandleRepeat(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	var raw string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "mode" {
			raw = opt.StringValue()
		}
	}

	mode, err := domain.ParseRepeatMode(raw)
	if err != nil {
		return respondError(r, err.Error())
	}
	if _, err := queue.SetRepeatMode(mode); err != nil {
		return respondError(r, err.Error())
	}

	var description string
	switch mode {
	case domain.RepeatModeTrack:
		description = "Now repeating the current track."
	case domain.RepeatModeQueue:
		description = "Now repeating the queue."
	default:
		description = "Repeat disabled."
	}
	return respondSuccess(r, description)
}

// HandleVolume handles the /volume command.
func (h *CommandHandlers) HandleVolume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	var percent int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "percent" {
			percent = opt.IntValue()
		}
	}

	if err := queue.SetVolume(float64(percent) / 100); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Volume set to %d%%.", percent))
}

// HandleShuffle handles the /shuffle command.
func (h *CommandHandlers) HandleShuffle(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	queue.Shuffle()
	return respondSuccess(r, fmt.Sprintf("Shuffled %d upcoming tracks.", max(queue.Size()-1, 0)))
}

// HandleQueue handles the /queue command and its subcommands.
func (h *CommandHandlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Missing subcommand")
	}

	subcommand := options[0]
	switch subcommand.Name {
	case "list":
		return h.handleQueueList(s, i, r, subcommand.Options)
	case "remove":
		return h.handleQueueRemove(s, i, r, subcommand.Options)
	case "clear":
		return h.handleQueueClear(s, i, r)
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handleQueueList(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	page := 1
	for _, opt := range options {
		if opt.Name == "page" {
			page = int(opt.IntValue())
		}
	}

	view := renderQueuePage(queue.Tracks(), page, queuePageSize)

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Queue",
					Description: view.Description,
					Color:       colorInfo,
					Footer: &discordgo.MessageEmbedFooter{
						Text: fmt.Sprintf(
							"Page %d/%d · %d tracks · Repeat: %s",
							view.Page,
							view.TotalPages,
							view.TotalTracks,
							queue.RepeatMode(),
						),
					},
				},
			},
		},
	})
}

func (h *CommandHandlers) handleQueueRemove(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	var position int
	for _, opt := range options {
		if opt.Name == "position" {
			position = int(opt.IntValue())
		}
	}

	removed, err := queue.Remove(position - 1)
	if err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, fmt.Sprintf("Removed %s.", trackLink(removed)))
}

func (h *CommandHandlers) handleQueueClear(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	removed := queue.Clear()
	return respondSuccess(r, fmt.Sprintf("Cleared %d upcoming tracks.", removed))
}

// HandleNowPlaying handles the /nowplaying command.
func (h *CommandHandlers) HandleNowPlaying(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	track := queue.NowPlaying()
	if track == nil {
		return respondError(r, usecases.ErrNoCurrentTrack.Error())
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				nowPlayingEmbed(track, queue.ElapsedDisplay(), queue.IsPaused(), queue.RepeatMode(), queue.Volume()),
			},
		},
	})
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	if err := queue.Stop(); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Stopped playback and cleared the queue.")
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	queue, err := h.queueFor(i)
	if err != nil {
		return respondError(r, err.Error())
	}

	if err := queue.Leave(); err != nil {
		return respondError(r, err.Error())
	}

	return respondSuccess(r, "Disconnected.")
}

// queueFor returns the live queue of the interaction's guild and points its
// notifications at the channel the command was used in.
func (h *CommandHandlers) queueFor(i *discordgo.InteractionCreate) (*usecases.GuildQueue, error) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return nil, errInvalidGuild
	}

	queue := h.hub.GetQueue(guildID)
	if queue == nil || queue.IsClosed() {
		return nil, usecases.ErrNotConnected
	}

	if channelID, err := snowflake.Parse(i.ChannelID); err == nil {
		queue.SetTextChannel(channelID)
	}
	return queue, nil
}

// progressReporter edits the deferred /play response while tracks download.
type progressReporter struct {
	r        bot.Responder
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	count int
	last  time.Time
}

func newProgressReporter(r bot.Responder, interval time.Duration) *progressReporter {
	return &progressReporter{r: r, interval: interval, now: time.Now}
}

func (p *progressReporter) report(track *usecases.Track) {
	p.mu.Lock()
	p.count++
	count := p.count
	now := p.now()
	if count > 1 && now.Sub(p.last) < p.interval {
		p.mu.Unlock()
		return
	}
	p.last = now
	p.mu.Unlock()

	description := fmt.Sprintf("Downloading **%s**...", track.Metadata.Title)
	if count > 1 {
		description = fmt.Sprintf("Downloading **%s** (track %d)...", track.Metadata.Title, count)
	}
	_ = editEmbed(p.r, &discordgo.MessageEmbed{Description: description, Color: colorInfo})
}

// parseTimestamp accepts seconds, mm:ss or hh:mm:ss.
func parseTimestamp(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, usecases.ErrInvalidSeek
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", usecases.ErrInvalidSeek, raw)
	}

	var total int
	for idx, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (idx > 0 && n >= 60) {
			return 0, fmt.Errorf("%w: %q", usecases.ErrInvalidSeek, raw)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// queuePage is one rendered page of /queue list.
type queuePage struct {
	Description string
	Page        int
	TotalPages  int
	TotalTracks int
}

// renderQueuePage clamps page into range. Position 1 is the current track.
func renderQueuePage(tracks []*usecases.Track, page, pageSize int) queuePage {
	if len(tracks) == 0 {
		return queuePage{Description: "The queue is empty.", Page: 1, TotalPages: 1}
	}

	totalPages := (len(tracks) + pageSize - 1) / pageSize
	page = min(max(page, 1), totalPages)
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(tracks))

	var sb strings.Builder
	for idx := start; idx < end; idx++ {
		if idx == 0 {
			sb.WriteString("**Now playing**\n")
		} else if idx == max(start, 1) {
			sb.WriteString("**Up next**\n")
		}
		writeTrackLine(&sb, idx+1, tracks[idx])
	}

	return queuePage{
		Description: sb.String(),
		Page:        page,
		TotalPages:  totalPages,
		TotalTracks: len(tracks),
	}
}

func describeQueued(result *usecases.PlayResult) string {
	var sb strings.Builder
	if len(result.Added) == 1 {
		fmt.Fprintf(&sb, "Queued %s.", trackLink(result.Added[0]))
	} else {
		fmt.Fprintf(&sb, "Queued %d tracks from %s.", len(result.Added), result.Source)
	}
	if n := len(result.Failed); n > 0 {
		fmt.Fprintf(&sb, "\n%d could not be downloaded.", n)
	}
	return sb.String()
}

func describeFailure(result *usecases.PlayResult) string {
	if result == nil || len(result.Failed) == 0 {
		return usecases.ErrMaterializationFailed.Error()
	}
	if len(result.Failed) == 1 {
		return fmt.Sprintf("Failed to download %s.", trackLink(result.Failed[0].Track))
	}
	return fmt.Sprintf("Failed to download all %d tracks from %s.", len(result.Failed), result.Source)
}

func nowPlayingEmbed(
	track *usecases.Track,
	elapsed string,
	paused bool,
	repeat usecases.RepeatMode,
	volume float64,
) *discordgo.MessageEmbed {
	meta := track.Metadata
	author := "Now Playing"
	if paused {
		author = "Paused"
	}

	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: author},
		Title:       meta.Title,
		URL:         meta.URL,
		Description: fmt.Sprintf("%s / %s", elapsed, meta.DurationText()),
		Color:       meta.SourceKind.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Artist", Value: meta.Author.Name, Inline: true},
			{Name: "Repeat", Value: repeat.String(), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", int(volume*100+0.5)), Inline: true},
		},
	}
	if meta.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: meta.Thumbnail}
	}
	if meta.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + meta.RequesterName}
	}
	return embed
}

// Response helpers.

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func editEmbed(r bot.Responder, embed *discordgo.MessageEmbed) error {
	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}

func editError(r bot.Responder, message string) error {
	return editEmbed(r, &discordgo.MessageEmbed{
		Title:       "Error",
		Description: message,
		Color:       colorError,
	})
}

// trackLink renders a track as a markdown link when it has a URL.
func trackLink(track *usecases.Track) string {
	if track == nil {
		return "the track"
	}
	if track.Metadata.URL != "" {
		return fmt.Sprintf("[%s](%s)", track.Metadata.Title, track.Metadata.URL)
	}
	return fmt.Sprintf("**%s**", track.Metadata.Title)
}

// writeTrackLine writes a single track line to the string builder.
// Escapes period to prevent Discord markdown list formatting.
func writeTrackLine(sb *strings.Builder, displayIndex int, track *usecases.Track) {
	fmt.Fprintf(
		sb,
		"%d\\. %s - %s `%s`\n",
		displayIndex,
		trackLink(track),
		track.Metadata.Author.Name,
		track.Metadata.DurationText(),
	)
}

// memberDisplayName returns the nickname, global name or username of a member.
func memberDisplayName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}
