package ports

import "github.com/sglre6355/melodicord/internal/modules/music_player/domain"

// CacheEntry records one materialized file, keyed by its source video id.
type CacheEntry struct {
	Title    string        `json:"title"`
	Author   domain.Author `json:"author"`
	VideoID  string        `json:"videoId"`
	Filename string        `json:"filename"`
}

// CacheIndex is the persisted mapping from source id to cache file.
type CacheIndex interface {
	// Lookup returns the entry recorded for sourceID.
	Lookup(sourceID string) (CacheEntry, bool)

	// Record stores the entry and persists the whole index before returning.
	Record(entry CacheEntry) error

	// Remove drops the entry for sourceID and persists the index.
	Remove(sourceID string) error

	// Entries returns a snapshot of all entries.
	Entries() []CacheEntry
}
