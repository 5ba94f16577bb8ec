package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// MemoryRepository is an in-memory implementation of GuildRegistry.
type MemoryRepository[T any] struct {
	mu     sync.RWMutex
	values map[snowflake.ID]T
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository[T any]() *MemoryRepository[T] {
	return &MemoryRepository[T]{
		values: make(map[snowflake.ID]T),
	}
}

// Get returns the value for the given guild and whether it exists.
func (r *MemoryRepository[T]) Get(guildID snowflake.ID) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.values[guildID]
	return value, ok
}

// Save stores the value, replacing any previous one.
func (r *MemoryRepository[T]) Save(guildID snowflake.ID, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[guildID] = value
}

// Delete removes the value for the given guild.
func (r *MemoryRepository[T]) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, guildID)
}

// Values returns a snapshot of all stored values.
func (r *MemoryRepository[T]) Values() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make([]T, 0, len(r.values))
	for _, v := range r.values {
		values = append(values, v)
	}
	return values
}

// Count returns the number of stored values (for testing/monitoring).
func (r *MemoryRepository[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.values)
}

// Ensure MemoryRepository implements the queue registry.
var _ domain.GuildRegistry[*usecases.GuildQueue] = (*MemoryRepository[*usecases.GuildQueue])(nil)
