package usecases

import (
	"errors"

	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Domain errors for the music player module.
var (
	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrNoTracksFound is returned when a query resolves to nothing.
	ErrNoTracksFound = errors.New("no tracks found")

	// ErrNoCurrentTrack is returned when an operation needs a playing track.
	ErrNoCurrentTrack = errors.New("nothing is currently playing")

	// ErrInvalidRepeatMode is returned for repeat modes other than off, track or queue.
	ErrInvalidRepeatMode = domain.ErrInvalidRepeatMode

	// ErrVolumeOutOfRange is returned for volumes outside [0, 2].
	ErrVolumeOutOfRange = errors.New("volume must be between 0 and 2")

	// ErrIndexOutOfRange is returned for queue positions that do not exist.
	ErrIndexOutOfRange = errors.New("queue position out of range")

	// ErrInvalidSeek is returned for negative offsets or offsets past the track end.
	ErrInvalidSeek = errors.New("seek position is outside the track")

	// ErrAuthFailure is returned when the catalog rejects the client credentials.
	ErrAuthFailure = errors.New("catalog authentication failed")

	// ErrMaterializationFailed is returned when a track could not be cached locally.
	ErrMaterializationFailed = errors.New("failed to download track")

	// ErrQueueClosed is returned by operations on a queue that was already torn down.
	ErrQueueClosed = errors.New("queue has been destroyed")
)
