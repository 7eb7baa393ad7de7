package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Report output formats accepted by --format.
var reportFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Path flags
	Source string `flag:"source,s" desc:"Source tree root"`
	Output string `flag:"output,o" desc:"Output directory"`

	// Server flags
	Port         int    `flag:"port,p" desc:"Port to serve on" default:"3000"`
	Host         string `flag:"host" desc:"Host to bind to" default:"localhost"`
	NoLiveReload bool   `flag:"no-live-reload" desc:"Disable live reload" default:"false"`
	Open         bool   `flag:"open" desc:"Open the browser after start" default:"false"`

	// Report flags
	Format string `flag:"format,f" desc:"Report format (table|json|yaml)" default:"table"`
	Strict bool   `flag:"strict" desc:"Exit non-zero when any outcome failed" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "paths":
			addPathFlags(cmd.Flags(), flags)
		case "server":
			addServerFlags(cmd.Flags(), flags)
		case "report":
			addReportFlags(cmd.Flags(), flags)
		}
	}

	return flags
}

func addPathFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.StringVarP(&flags.Source, "source", "s", "", "Source tree root (default project/src)")
	fs.StringVarP(&flags.Output, "output", "o", "", "Output directory (default project/dist)")
}

func addServerFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.IntVarP(&flags.Port, "port", "p", 3000, "Port to serve on")
	fs.StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	fs.BoolVar(&flags.NoLiveReload, "no-live-reload", false, "Disable live reload")
	fs.BoolVar(&flags.Open, "open", false, "Open the browser after start")
}

func addReportFlags(fs *pflag.FlagSet, flags *StandardFlags) {
	fs.StringVarP(&flags.Format, "format", "f", "table", "Report format (table|json|yaml)")
	fs.BoolVar(&flags.Strict, "strict", false, "Exit non-zero when any outcome failed")
}

// BindViper binds the flags a command registered to their config keys, so
// an explicitly set flag wins over file and environment values.
func (f *StandardFlags) BindViper(cmd *cobra.Command, v *viper.Viper) error {
	bindings := map[string]string{
		"source": "source.root",
		"output": "output.dir",
		"port":   "server.port",
		"host":   "server.host",
		"open":   "server.open",
	}

	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}

	// Inverted flag; only an explicit --no-live-reload overrides config.
	if flag := cmd.Flags().Lookup("no-live-reload"); flag != nil && flag.Changed {
		v.Set("server.live_reload", !f.NoLiveReload)
	}
	return nil
}

// ValidateFlags validates flag values
func (f *StandardFlags) ValidateFlags() error {
	if f.Format != "" && !slices.Contains(reportFormats, f.Format) {
		return fmt.Errorf("invalid output format %s, must be one of: %s",
			f.Format, strings.Join(reportFormats, ", "))
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (system-assigned) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}
