package cmd

import (
	"fmt"

	"github.com/conneroisu/stitch/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the output tree",
	Long: `Remove the output directory and everything below it. A missing output
directory is not an error.

Examples:
  stitch clean
  stitch clean --output public`,
	RunE: runClean,
}

var cleanFlags *StandardFlags

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanFlags = AddStandardFlags(cleanCmd, "paths")
}

func runClean(cmd *cobra.Command, args []string) error {
	if err := cleanFlags.BindViper(cmd, viper.GetViper()); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	orchestrator := newOrchestrator(cfg, logger, metrics.NoopRecorder{})
	if err := orchestrator.Clean(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", orchestrator.OutputDir())
	return nil
}
