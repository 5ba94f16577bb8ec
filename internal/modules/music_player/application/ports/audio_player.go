package ports

import (
	"time"

	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// PlaybackResource is one playable stream built from a cache file.
type PlaybackResource struct {
	Path   string
	Offset time.Duration
	Volume float64
}

// PlayerSignalKind is the status an audio player transitioned to.
type PlayerSignalKind int

const (
	PlayerSignalPlaying PlayerSignalKind = iota
	PlayerSignalIdle
)

// PlayerSignal reports a status transition for a specific resource.
type PlayerSignal struct {
	Kind     PlayerSignalKind
	Resource *PlaybackResource
	Reason   domain.TrackEndReason // set for idle signals
}

// AudioPlayer defines the interface for audio playback operations.
type AudioPlayer interface {
	// Play starts the resource, replacing whatever was playing.
	Play(resource *PlaybackResource) error

	// Pause pauses the current playback.
	Pause() error

	// Unpause resumes the paused playback.
	Unpause() error

	// Stop stops the current playback.
	Stop() error

	// SetVolume changes the volume of the current playback.
	SetVolume(volume float64)

	// Signals delivers status transitions.
	Signals() <-chan PlayerSignal

	// Close releases the player. It must not be used afterwards.
	Close()
}
