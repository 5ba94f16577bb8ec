package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// IndexFilename is the name of the index file inside the cache directory.
const IndexFilename = "downloaded_tracks.json"

// JSONCacheIndex keeps the cache index as a JSON object keyed by video id.
// Every mutation rewrites the whole file before returning.
type JSONCacheIndex struct {
	path string
	dir  string

	mu      sync.RWMutex
	entries map[string]ports.CacheEntry

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenJSONCacheIndex loads the index from dir, creating an empty one if absent.
func OpenJSONCacheIndex(dir string) (*JSONCacheIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	idx := &JSONCacheIndex{
		path:    filepath.Join(dir, IndexFilename),
		dir:     dir,
		entries: make(map[string]ports.CacheEntry),
		done:    make(chan struct{}),
	}

	data, err := os.ReadFile(idx.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := idx.persist(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read cache index: %w", err)
	default:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &idx.entries); err != nil {
				return nil, fmt.Errorf("parse cache index %s: %w", idx.path, err)
			}
		}
	}

	return idx, nil
}

// Lookup returns the entry recorded for sourceID.
func (i *JSONCacheIndex) Lookup(sourceID string) (ports.CacheEntry, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entry, ok := i.entries[sourceID]
	return entry, ok
}

// Record stores the entry and persists the index.
func (i *JSONCacheIndex) Record(entry ports.CacheEntry) error {
	if entry.VideoID == "" {
		return errors.New("cache entry without video id")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[entry.VideoID] = entry
	return i.persistLocked()
}

// Remove drops the entry for sourceID and persists the index.
func (i *JSONCacheIndex) Remove(sourceID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.entries[sourceID]; !ok {
		return nil
	}
	delete(i.entries, sourceID)
	return i.persistLocked()
}

// Entries returns the entries ordered by video id.
func (i *JSONCacheIndex) Entries() []ports.CacheEntry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entries := make([]ports.CacheEntry, 0, len(i.entries))
	for _, e := range i.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].VideoID < entries[b].VideoID })
	return entries
}

// Watch drops entries whose files are removed or renamed out of the cache
// directory by something other than this process.
func (i *JSONCacheIndex) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(i.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", i.dir, err)
	}

	i.watcher = watcher
	i.wg.Add(1)
	go i.run()

	slog.Info("watching cache directory", "dir", i.dir)
	return nil
}

func (i *JSONCacheIndex) run() {
	defer i.wg.Done()

	for {
		select {
		case event, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.handleEvent(event)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("cache watcher error", "error", err)
		case <-i.done:
			return
		}
	}
}

func (i *JSONCacheIndex) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Base(event.Name)
	if name == IndexFilename {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	removed := false
	for id, e := range i.entries {
		if e.Filename == name {
			delete(i.entries, id)
			removed = true
		}
	}
	if !removed {
		return
	}

	if err := i.persistLocked(); err != nil {
		slog.Error("failed to persist cache index", "error", err)
		return
	}
	slog.Info("cache file removed, entry dropped", "filename", name)
}

// Close stops the watcher.
func (i *JSONCacheIndex) Close() error {
	var err error
	i.closeOnce.Do(func() {
		close(i.done)
		if i.watcher != nil {
			err = i.watcher.Close()
		}
		i.wg.Wait()
	})
	return err
}

func (i *JSONCacheIndex) persist() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.persistLocked()
}

// persistLocked writes through a temp file so readers never see a partial index.
func (i *JSONCacheIndex) persistLocked() error {
	data, err := json.MarshalIndent(i.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}

	tmp, err := os.CreateTemp(i.dir, IndexFilename+".*.part")
	if err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write cache index: %w", err)
	}
	if err := os.Rename(tmpPath, i.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace cache index: %w", err)
	}
	return nil
}

// Ensure JSONCacheIndex implements ports.CacheIndex.
var _ ports.CacheIndex = (*JSONCacheIndex)(nil)
