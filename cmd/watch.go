package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/conneroisu/stitch/internal/config"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/metrics"
	"github.com/conneroisu/stitch/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build, then rebuild whenever a source file changes",
	Long: `Build the site, then watch the page, partial, stylesheet, asset and
data directories and rebuild after each burst of changes. Changes that
arrive while a build is running collapse into a single follow-up build.

Examples:
  stitch watch                          # Watch project/src
  stitch watch --source site --output public`,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)
	watchFlags = AddStandardFlags(watchCmd, "paths")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.BindViper(cmd, viper.GetViper()); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	scheduler := build.NewScheduler(newOrchestrator(cfg, logger, metrics.NoopRecorder{}), logger)
	scheduler.OnBuild(func(report *build.Report) { logReport(ctx, logger, report) })

	return runLoop(ctx, cfg, logger, scheduler)
}

// runLoop runs the initial build, starts the watcher and serves triggers
// until ctx is cancelled.
func runLoop(ctx context.Context, cfg *config.Config, logger logging.Logger, scheduler *build.Scheduler) error {
	scheduler.BuildNow(ctx)

	fileWatcher, err := startWatcher(ctx, cfg, logger, scheduler)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	logger.Info(ctx, "Watching for changes", "source", cfg.Source.Root)
	return scheduler.Run(ctx)
}

// startWatcher watches the source directories of cfg and triggers a
// rebuild for every debounced batch of changes.
func startWatcher(ctx context.Context, cfg *config.Config, logger logging.Logger, scheduler *build.Scheduler) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.IgnoreFilter(cfg.Watch.Ignore))
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		logger.Debug(ctx, "Source changed", "files", len(events))
		scheduler.Trigger()
		return nil
	})

	if err := fileWatcher.WatchRoots(ctx, cfg.WatchRoots()); err != nil {
		_ = fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch source tree: %w", err)
	}
	if err := fileWatcher.Start(ctx); err != nil {
		_ = fileWatcher.Stop()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	return fileWatcher, nil
}
