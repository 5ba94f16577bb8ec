package main

import (
	"fmt"
	"log/slog"

	"github.com/sglre6355/melodicord/internal/bot"
	music "github.com/sglre6355/melodicord/internal/modules/music_player"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodicord/internal/modules/music_player/infrastructure"
	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove cached audio files and index entries that are no longer needed",
		Long: "Runs one cache sweep without connecting to Discord. " +
			"Files named in the cache index are kept. " +
			"The bot must not be running against the same cache directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bot.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := music.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if dir != "" {
				cfg.CacheDir = dir
			}

			logger, closeLog := newLogger(slog.LevelInfo, "")
			defer closeLog()
			slog.SetDefault(logger)

			return sweep(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "cache directory (overrides CACHE_DIR)")
	return cmd
}

func sweep(cmd *cobra.Command, cfg *music.Config) error {
	index, err := infrastructure.OpenJSONCacheIndex(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache index: %w", err)
	}
	defer index.Close()

	sweeper := usecases.NewCacheSweeper(
		cfg.CacheDir,
		infrastructure.IndexFilename,
		index,
		nil,
		nil,
		cfg.CacheSweepGrace,
	)
	report, err := sweeper.Sweep()
	if err != nil {
		return fmt.Errorf("cache sweep failed: %w", err)
	}

	slog.Info("cache sweep finished",
		"dir", cfg.CacheDir,
		"removed", len(report.RemovedFiles),
		"pruned", len(report.PrunedEntries),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d files, pruned %d index entries\n",
		len(report.RemovedFiles), len(report.PrunedEntries))
	return nil
}
