package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

var (
	// ErrVoiceClosed is returned when sending into a destroyed connection.
	ErrVoiceClosed = errors.New("voice connection closed")
	// ErrUnsupportedPlayer is returned when a player cannot feed opus frames.
	ErrUnsupportedPlayer = errors.New("player does not produce opus frames")
)

// frameAttacher is a player that streams into a FrameSink.
type frameAttacher interface {
	Attach(sink FrameSink)
	Detach(sink FrameSink)
}

// DiscordVoice opens voice connections through the gateway session.
// discordgo keeps one connection per guild, so joining another channel
// moves the existing one and supersedes the previous handle.
type DiscordVoice struct {
	session *discordgo.Session

	mu    sync.Mutex
	conns map[snowflake.ID]*voiceConnection
}

// NewDiscordVoice creates a new DiscordVoice.
func NewDiscordVoice(session *discordgo.Session) *DiscordVoice {
	return &DiscordVoice{
		session: session,
		conns:   make(map[snowflake.ID]*voiceConnection),
	}
}

// Connect joins the voice channel deafened and waits until it is ready.
func (v *DiscordVoice) Connect(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (ports.VoiceConnection, error) {
	vc, err := v.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	var conn *voiceConnection
	conn = newVoiceConnection(channelID, &opusSink{vc: vc, closed: make(chan struct{})}, func() error {
		v.forget(guildID, conn)
		return vc.Disconnect()
	})

	v.mu.Lock()
	if prev, ok := v.conns[guildID]; ok {
		prev.supersede()
	}
	v.conns[guildID] = conn
	v.mu.Unlock()

	slog.Info("joined voice channel", "guild", guildID, "channel", channelID)
	return conn, nil
}

func (v *DiscordVoice) forget(guildID snowflake.ID, conn *voiceConnection) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conns[guildID] == conn {
		delete(v.conns, guildID)
	}
}

type voiceConnection struct {
	channelID  snowflake.ID
	sink       *opusSink
	disconnect func() error

	mu       sync.Mutex
	attached frameAttacher
}

func newVoiceConnection(channelID snowflake.ID, sink *opusSink, disconnect func() error) *voiceConnection {
	return &voiceConnection{channelID: channelID, sink: sink, disconnect: disconnect}
}

func (c *voiceConnection) ChannelID() snowflake.ID {
	return c.channelID
}

// Subscribe routes the player into this connection, detaching the previous player.
func (c *voiceConnection) Subscribe(player ports.AudioPlayer) error {
	attacher, ok := player.(frameAttacher)
	if !ok {
		return ErrUnsupportedPlayer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink.isClosed() {
		return ErrVoiceClosed
	}
	if c.attached != nil && c.attached != attacher {
		c.attached.Detach(c.sink)
	}
	c.attached = attacher
	attacher.Attach(c.sink)
	return nil
}

// supersede makes Destroy leave the underlying connection alone.
func (c *voiceConnection) supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnect = func() error { return nil }
}

func (c *voiceConnection) Destroy() error {
	c.mu.Lock()
	if c.attached != nil {
		c.attached.Detach(c.sink)
		c.attached = nil
	}
	disconnect := c.disconnect
	c.mu.Unlock()

	if !c.sink.close() {
		return nil
	}
	return disconnect()
}

// opusSink writes frames into a discordgo voice connection.
type opusSink struct {
	vc        *discordgo.VoiceConnection
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *opusSink) SendFrame(ctx context.Context, frame []byte) error {
	select {
	case s.vc.OpusSend <- frame:
		return nil
	case <-s.closed:
		return ErrVoiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *opusSink) Speaking(speaking bool) error {
	if s.isClosed() {
		return ErrVoiceClosed
	}
	return s.vc.Speaking(speaking)
}

// close reports whether this call closed the sink.
func (s *opusSink) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.closed)
		closed = true
	})
	return closed
}

func (s *opusSink) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Ensure DiscordVoice implements ports.VoiceTransport.
var _ ports.VoiceTransport = (*DiscordVoice)(nil)

// Ensure voiceConnection implements ports.VoiceConnection.
var _ ports.VoiceConnection = (*voiceConnection)(nil)
