package usecases

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	RemovedFiles    []string
	PrunedEntries   []string
	RetainedFiles   int
	SkippedInFlight int
}

// CacheSweeper removes cache files that neither the index nor a live queue
// references. Index entries whose file is gone are pruned.
type CacheSweeper struct {
	dir       string
	indexFile string
	index     ports.CacheIndex
	active    func() map[string]struct{}
	inFlight  func() map[string]struct{}
	grace     time.Duration
	now       func() time.Time
}

// NewCacheSweeper creates a new CacheSweeper.
// active and inFlight may be nil when no queues or downloads exist, e.g. offline sweeps.
func NewCacheSweeper(
	dir string,
	indexFile string,
	index ports.CacheIndex,
	active func() map[string]struct{},
	inFlight func() map[string]struct{},
	grace time.Duration,
) *CacheSweeper {
	return &CacheSweeper{
		dir:       dir,
		indexFile: indexFile,
		index:     index,
		active:    active,
		inFlight:  inFlight,
		grace:     grace,
		now:       time.Now,
	}
}

// Sweep runs one pass over the cache directory.
func (s *CacheSweeper) Sweep() (*SweepReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SweepReport{}, nil
		}
		return nil, err
	}

	indexed := make(map[string]struct{})
	for _, entry := range s.index.Entries() {
		indexed[entry.Filename] = struct{}{}
	}
	inFlight := collect(s.inFlight)
	active := collect(s.active)
	report := &SweepReport{}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == s.indexFile || strings.HasSuffix(name, ".part") {
			continue
		}
		if _, ok := inFlight[name]; ok {
			report.SkippedInFlight++
			continue
		}
		if _, ok := active[name]; ok {
			report.RetainedFiles++
			continue
		}
		if _, ok := indexed[name]; ok {
			report.RetainedFiles++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if s.now().Sub(info.ModTime()) < s.grace {
			report.RetainedFiles++
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			slog.Warn("failed to remove orphaned file", "file", name, "error", err)
			continue
		}
		report.RemovedFiles = append(report.RemovedFiles, name)
	}

	for _, entry := range s.index.Entries() {
		if _, err := os.Stat(filepath.Join(s.dir, entry.Filename)); err == nil {
			continue
		}
		if err := s.index.Remove(entry.VideoID); err != nil {
			slog.Warn("failed to prune cache index entry", "video", entry.VideoID, "error", err)
			continue
		}
		report.PrunedEntries = append(report.PrunedEntries, entry.VideoID)
	}

	return report, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *CacheSweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Sweep()
			if err != nil {
				slog.Error("cache sweep failed", "error", err)
				continue
			}
			if len(report.RemovedFiles) > 0 || len(report.PrunedEntries) > 0 {
				slog.Info("cache sweep finished",
					"removed", len(report.RemovedFiles),
					"pruned", len(report.PrunedEntries),
				)
			}
		}
	}
}

func collect(source func() map[string]struct{}) map[string]struct{} {
	if source == nil {
		return nil
	}
	return source()
}
