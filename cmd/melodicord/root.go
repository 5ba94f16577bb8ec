package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sglre6355/melodicord/internal/bot"
	_ "github.com/sglre6355/melodicord/internal/modules/music_player"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "melodicord",
		Short:         "Discord music bot playing Spotify and YouTube links",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(newSweepCommand())
	return root
}

func run() error {
	// Load configuration
	cfg, err := bot.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Configure JSON logging
	logger, closeLog := newLogger(cfg.SlogLevel(), cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting melodicord", "version", version)

	// Create and configure bot
	b := bot.NewBot(cfg)
	b.LoadModules()

	// Start bot
	if err := b.Start(); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("received termination signal, shutting down")
	if err := b.Stop(); err != nil {
		slog.Error("failed to shutdown", "error", err)
	}

	slog.Info("completed bot shutdown")
	return nil
}
