package domain

// PlayerStatus is the lifecycle state of a guild queue.
type PlayerStatus int

const (
	PlayerStatusIdle       PlayerStatus = iota // nothing at the head, no connection
	PlayerStatusConnecting                     // joining a voice channel
	PlayerStatusPlaying
	PlayerStatusPaused
	PlayerStatusEnding // head emptied, teardown in progress
)

// String returns a human-readable representation of the status.
func (s PlayerStatus) String() string {
	switch s {
	case PlayerStatusConnecting:
		return "connecting"
	case PlayerStatusPlaying:
		return "playing"
	case PlayerStatusPaused:
		return "paused"
	case PlayerStatusEnding:
		return "ending"
	default:
		return "idle"
	}
}

// IsActive reports whether a track occupies the playback slot.
func (s PlayerStatus) IsActive() bool {
	return s == PlayerStatusPlaying || s == PlayerStatusPaused
}

// TrackEndReason represents why the audio player went idle.
type TrackEndReason string

const (
	// TrackEndFinished means the track played to its end.
	TrackEndFinished TrackEndReason = "finished"
	// TrackEndLoadFailed means the file could not be decoded.
	TrackEndLoadFailed TrackEndReason = "load_failed"
	// TrackEndStopped means playback was stopped explicitly.
	TrackEndStopped TrackEndReason = "stopped"
	// TrackEndReplaced means another resource took over the player.
	TrackEndReplaced TrackEndReason = "replaced"
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
func (r TrackEndReason) ShouldAdvanceQueue() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}
