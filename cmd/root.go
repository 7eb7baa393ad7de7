// Package cmd provides the command-line interface for stitch with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Configuration is resolved with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. STITCH_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (STITCH_SERVER_PORT, PORT, etc.)
//	4. Configuration files (.stitch.yml) - lowest priority
//
// A .env file in the working directory is loaded before any of these, so
// its values behave like real environment variables.
//
// Environment Variables:
//
//	STITCH_CONFIG_FILE: Path to custom configuration file
//	STITCH_SERVER_PORT: Override server port (PORT is honoured too)
//	STITCH_SOURCE_ROOT: Override the source tree
//	STITCH_OUTPUT_DIR: Override the output tree
//	And more following the STITCH_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/conneroisu/stitch/internal/config"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stitch",
	Short: "A minimal static site generator for HTML partials",
	Long: `Stitch assembles static HTML pages from partials. It expands
<!-- include path --> directives, substitutes {{ variable }} placeholders,
rewrites root-absolute links to relative ones, and copies stylesheets,
assets and data next to the compiled pages.

Source layout:
  <source>/html/pages      Pages compiled into the output root
  <source>/html/partials   Fragments referenced by include directives
  <source>/html/data       Copied to <output>/data
  <source>/css             Copied to <output>/css
  <source>/assets          Copied to <output>/assets

Quick Start:
  stitch build                    Build once
  stitch watch                    Rebuild on change
  stitch serve                    Build, watch and serve with live reload
  stitch clean                    Remove the output tree`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .stitch.yml, can also use STITCH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. STITCH_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .stitch.yml in current directory
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("STITCH_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stitch")
	}

	viper.SetEnvPrefix("STITCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("server.port", "STITCH_SERVER_PORT", "PORT")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		suggestions := stitcherrors.ConfigurationError(err.Error(), viper.ConfigFileUsed())
		return nil, nil, stitcherrors.NewEnhancedError("Failed to load configuration", err, suggestions)
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.LogLevel(),
		Format: strings.ToLower(cfg.Log.Format),
		Output: os.Stderr,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
