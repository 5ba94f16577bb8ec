package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Embed colors.
const (
	colorInfo = 0x5865F2
)

const youTubeThumbnailBase = "https://img.youtube.com/vi"

// Notifier sends notifications to Discord channels.
type Notifier struct {
	session       *discordgo.Session
	httpClient    *http.Client
	thumbnailBase string
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		thumbnailBase: youTubeThumbnailBase,
	}
}

// SendNowPlaying sends a "Now Playing" embed to the channel and returns the message ID.
func (n *Notifier) SendNowPlaying(
	channelID snowflake.ID,
	info *ports.NowPlayingInfo,
) (snowflake.ID, error) {
	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), n.nowPlayingEmbed(info))
	if err != nil {
		return 0, err
	}
	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return 0, err
	}
	return messageID, nil
}

func (n *Notifier) nowPlayingEmbed(info *ports.NowPlayingInfo) *discordgo.MessageEmbed {
	meta := info.Track.Metadata

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Now Playing",
		},
		Title: meta.Title,
		URL:   meta.URL,
		Color: meta.SourceKind.Color(),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Artist",
				Value:  artistValue(meta.Author),
				Inline: true,
			},
			{
				Name:   "Duration",
				Value:  meta.DurationText(),
				Inline: true,
			},
		},
	}

	if info.RepeatMode != domain.RepeatModeOff {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Repeat",
			Value:  info.RepeatMode.String(),
			Inline: true,
		})
	}
	if info.QueueLength > 1 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Up Next",
			Value:  fmt.Sprintf("%d tracks", info.QueueLength-1),
			Inline: true,
		})
	}

	if info.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Requested by %s", info.RequesterName),
			IconURL: info.RequesterAvatarURL,
		}
	}

	if thumbnailURL := n.getBestThumbnail(meta); thumbnailURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{
			URL: thumbnailURL,
		}
	}

	return embed
}

// SendTrackAdded sends an "Added to Queue" embed to the channel.
func (n *Notifier) SendTrackAdded(channelID snowflake.ID, track *domain.Track, position int) error {
	meta := track.Metadata
	embed := &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Added **%s** by %s to the queue at position %d.", meta.Title, meta.Author.Name, position),
		Color:       meta.SourceKind.Color(),
	}
	if meta.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: meta.Thumbnail}
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// SendPlaylistAdded sends an embed announcing a batch of queued tracks.
func (n *Notifier) SendPlaylistAdded(channelID snowflake.ID, playlist domain.PlaylistInfo, count int) error {
	embed := &discordgo.MessageEmbed{
		Title:       playlist.Name,
		URL:         playlist.URL,
		Description: fmt.Sprintf("Added %d tracks from this %s to the queue.", count, playlist.Type),
		Color:       domain.SourceKindCatalog.Color(),
	}
	if playlist.Author.Name != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name: playlist.Author.Name,
			URL:  playlist.Author.URL,
		}
	}
	if playlist.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: playlist.Thumbnail}
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// SendInfo sends an informational message embed to the channel.
func (n *Notifier) SendInfo(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorInfo,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

// DeleteMessage deletes a message from the channel.
func (n *Notifier) DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error {
	return n.session.ChannelMessageDelete(channelID.String(), messageID.String())
}

// getBestThumbnail attempts to find the best quality thumbnail for the track.
// Video tracks are probed for the highest resolution still available;
// catalog tracks use their album artwork as is.
func (n *Notifier) getBestThumbnail(meta domain.TrackMetadata) string {
	if meta.SourceKind != domain.SourceKindVideo {
		return meta.Thumbnail
	}
	videoID, ok := domain.ExtractVideoID(meta.URL)
	if !ok {
		return meta.Thumbnail
	}
	return n.getYouTubeThumbnail(videoID, meta.Thumbnail)
}

// getYouTubeThumbnail tries to find the highest quality YouTube thumbnail available.
func (n *Notifier) getYouTubeThumbnail(videoID string, fallbackURL string) string {
	qualities := []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, quality := range qualities {
		url := fmt.Sprintf("%s/%s/%s.jpg", n.thumbnailBase, videoID, quality)
		if n.urlExists(ctx, url) {
			return url
		}
	}

	return fallbackURL
}

// urlExists checks if a URL returns a successful response using a HEAD request.
func (n *Notifier) urlExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

func artistValue(author domain.Author) string {
	if author.URL == "" {
		return author.Name
	}
	return fmt.Sprintf("[%s](%s)", author.Name, author.URL)
}

// Ensure Notifier implements ports.NotificationSender.
var _ ports.NotificationSender = (*Notifier)(nil)
