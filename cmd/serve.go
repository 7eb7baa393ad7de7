package cmd

import (
	"fmt"

	"github.com/conneroisu/stitch/internal/build"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/metrics"
	"github.com/conneroisu/stitch/internal/server"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Build, watch and serve the output tree with live reload",
	Long: `Build the site, rebuild on change, and serve the output tree over HTTP.
Served HTML pages reload in the browser after every completed build.

Besides the output tree the server answers:
  /health             Liveness and last build summary
  /metrics            Prometheus build metrics
  /__stitch/report    Last build report as JSON

Examples:
  stitch serve                          # http://localhost:3000
  stitch serve --port 8080 --open
  PORT=8080 stitch serve
  stitch serve --no-live-reload`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags = AddStandardFlags(serveCmd, "paths", "server")
	AddFlagValidation(serveCmd, "port", ValidatePort)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := serveFlags.BindViper(cmd, viper.GetViper()); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	recorder := metrics.NewPrometheusRecorder(nil)
	scheduler := build.NewScheduler(newOrchestrator(cfg, logger, recorder), logger)

	srv := server.New(server.OptionsFromConfig(cfg), afero.NewOsFs(), scheduler, recorder.Handler(), logger)
	scheduler.OnBuild(func(report *build.Report) { logReport(ctx, logger, report) })
	scheduler.OnBuild(srv.NotifyReload)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", cfg.Output.Dir, server.OptionsFromConfig(cfg).Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx)
		cancel()
	}()

	if err := runLoop(ctx, cfg, logger, scheduler); err != nil {
		return err
	}
	if err := <-serveErr; err != nil {
		title := fmt.Sprintf("Failed to start server on port %d", cfg.Server.Port)
		return stitcherrors.NewEnhancedError(title, err, stitcherrors.ServerStartError(err, cfg.Server.Port))
	}
	return nil
}
