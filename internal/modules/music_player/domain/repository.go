package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// GuildRegistry stores at most one value per guild.
type GuildRegistry[T any] interface {
	// Get returns the value for the given guild and whether it exists.
	Get(guildID snowflake.ID) (T, bool)

	// Save stores the value, replacing any previous one.
	Save(guildID snowflake.ID, value T)

	// Delete removes the value for the given guild.
	Delete(guildID snowflake.ID)

	// Values returns a snapshot of all stored values.
	Values() []T
}
