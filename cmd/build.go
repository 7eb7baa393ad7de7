package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/conneroisu/stitch/internal/config"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/filestore"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once",
	Long: `Build the site once: clean the output tree, compile every page,
and copy stylesheets, assets and data.

Per-file problems never stop the build. They are listed in the report, and
--strict turns any failed outcome into a non-zero exit status.

Examples:
  stitch build                          # Build project/src into project/dist
  stitch build --source site --output public
  stitch build --format json            # Machine-readable report
  stitch build --strict                 # Fail CI on failed outcomes`,
	RunE: runBuild,
}

var buildFlags *StandardFlags

func init() {
	rootCmd.AddCommand(buildCmd)
	buildFlags = AddStandardFlags(buildCmd, "paths", "report")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := buildFlags.ValidateFlags(); err != nil {
		return err
	}
	if err := buildFlags.BindViper(cmd, viper.GetViper()); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	report := newOrchestrator(cfg, logger, metrics.NoopRecorder{}).Build(ctx)
	if err := writeReport(cmd.OutOrStdout(), report, buildFlags.Format); err != nil {
		return err
	}

	if buildFlags.Strict && report.HasFailures() {
		failed := report.Filter(build.StatusFailed)
		errs := make([]error, 0, len(failed))
		for _, o := range failed {
			errs = append(errs, o.Err)
		}
		title := fmt.Sprintf("Build finished with %d failed outcomes", len(failed))
		return stitcherrors.NewEnhancedError(title, nil, stitcherrors.BuildFailureError(errs))
	}
	return nil
}

// newOrchestrator wires the build for cfg onto the real filesystem.
func newOrchestrator(cfg *config.Config, logger logging.Logger, recorder metrics.Recorder) *build.Orchestrator {
	return build.NewOrchestrator(filestore.NewOS(), build.OptionsFromConfig(cfg), logger,
		build.WithRecorder(recorder))
}

// writeReport renders report in one of the --format values.
func writeReport(w io.Writer, report *build.Report, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return err
		}
		return encoder.Close()
	case "table", "":
		return writeReportTable(w, report)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

func writeReportTable(w io.Writer, report *build.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tPATH\tREASON")
	for _, o := range report.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Stage, o.Status, o.Path, o.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, report.Summary())
	return err
}

// logReport logs every failed outcome and the one-line summary of a
// finished build.
func logReport(ctx context.Context, logger logging.Logger, report *build.Report) {
	for _, o := range report.Filter(build.StatusFailed) {
		logger.Warn(ctx, o.Err, "Build outcome failed", "stage", o.Stage, "path", o.Path)
	}
	logger.Info(ctx, "Build finished", "id", report.ID, "summary", report.Summary())
}
