package domain

import "strings"

// RepeatMode represents what happens when the current track ends.
type RepeatMode int

const (
	RepeatModeOff   RepeatMode = iota // Advance and drop the finished track
	RepeatModeTrack                   // Replay the current track
	RepeatModeQueue                   // Move the finished track to the tail
)

// IsValid reports whether m is one of the defined modes.
func (m RepeatMode) IsValid() bool {
	return m >= RepeatModeOff && m <= RepeatModeQueue
}

// String returns a human-readable representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatModeOff:
		return "off"
	case RepeatModeTrack:
		return "track"
	case RepeatModeQueue:
		return "queue"
	default:
		return "invalid"
	}
}

// ParseRepeatMode converts a string to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "0":
		return RepeatModeOff, nil
	case "track", "1":
		return RepeatModeTrack, nil
	case "queue", "2":
		return RepeatModeQueue, nil
	default:
		return RepeatModeOff, ErrInvalidRepeatMode
	}
}
