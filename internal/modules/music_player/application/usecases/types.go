package usecases

import (
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// Track is an alias for domain.Track.
type Track = domain.Track

// RepeatMode is an alias for domain.RepeatMode.
type RepeatMode = domain.RepeatMode

// Candidate is an alias for domain.Candidate.
type Candidate = domain.Candidate

// QueueRegistry is the per-guild registry of live queues.
type QueueRegistry = domain.GuildRegistry[*GuildQueue]
