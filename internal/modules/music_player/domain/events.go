package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// EventKind identifies a notification emitted by the music player.
type EventKind string

const (
	EventSongAdd          EventKind = "songAdd"
	EventPlaylistAdd      EventKind = "playlistAdd"
	EventSongStarted      EventKind = "songStarted"
	EventSongEnded        EventKind = "songEnded"
	EventQueueEnd         EventKind = "queueEnd"
	EventQueueDestroyed   EventKind = "queueDestroyed"
	EventClientDisconnect EventKind = "clientDisconnect"
	EventChannelEmpty     EventKind = "channelEmpty"
)

// Event is implemented by every notification. The set of implementations is closed;
// consumers switch on the concrete type.
type Event interface {
	Kind() EventKind
	Snapshot() QueueSnapshot
}

// QueueSnapshot is the state of a guild queue at the moment an event was emitted.
type QueueSnapshot struct {
	GuildID        snowflake.ID
	TextChannelID  snowflake.ID
	VoiceChannelID snowflake.ID
	Length         int
	RepeatMode     RepeatMode
	Volume         float64
}

// Tracks carried by events must be treated as read-only. Their Metadata never changes.

// SongAddEvent is emitted when a play request queued exactly one track.
type SongAddEvent struct {
	Queue QueueSnapshot
	Track *Track
}

// PlaylistAddEvent is emitted when a play request queued several tracks.
type PlaylistAddEvent struct {
	Queue    QueueSnapshot
	Playlist PlaylistInfo
	Tracks   []*Track
}

// SongStartedEvent is emitted when the head track starts playing.
type SongStartedEvent struct {
	Queue QueueSnapshot
	Track *Track
}

// SongEndedEvent is emitted when the head track finished playing.
type SongEndedEvent struct {
	Queue QueueSnapshot
	Track *Track
}

// QueueEndEvent is emitted when the last track finished and the queue tore down.
type QueueEndEvent struct {
	Queue QueueSnapshot
}

// QueueDestroyedEvent is emitted when playback was stopped explicitly.
type QueueDestroyedEvent struct {
	Queue QueueSnapshot
}

// ClientDisconnectEvent is emitted when the bot was removed from its voice channel.
type ClientDisconnectEvent struct {
	Queue QueueSnapshot
}

// ChannelEmptyEvent is emitted when playback stopped because no listeners remained.
type ChannelEmptyEvent struct {
	Queue QueueSnapshot
}

func (e SongAddEvent) Kind() EventKind          { return EventSongAdd }
func (e PlaylistAddEvent) Kind() EventKind      { return EventPlaylistAdd }
func (e SongStartedEvent) Kind() EventKind      { return EventSongStarted }
func (e SongEndedEvent) Kind() EventKind        { return EventSongEnded }
func (e QueueEndEvent) Kind() EventKind         { return EventQueueEnd }
func (e QueueDestroyedEvent) Kind() EventKind   { return EventQueueDestroyed }
func (e ClientDisconnectEvent) Kind() EventKind { return EventClientDisconnect }
func (e ChannelEmptyEvent) Kind() EventKind     { return EventChannelEmpty }

func (e SongAddEvent) Snapshot() QueueSnapshot          { return e.Queue }
func (e PlaylistAddEvent) Snapshot() QueueSnapshot      { return e.Queue }
func (e SongStartedEvent) Snapshot() QueueSnapshot      { return e.Queue }
func (e SongEndedEvent) Snapshot() QueueSnapshot        { return e.Queue }
func (e QueueEndEvent) Snapshot() QueueSnapshot         { return e.Queue }
func (e QueueDestroyedEvent) Snapshot() QueueSnapshot   { return e.Queue }
func (e ClientDisconnectEvent) Snapshot() QueueSnapshot { return e.Queue }
func (e ChannelEmptyEvent) Snapshot() QueueSnapshot     { return e.Queue }
