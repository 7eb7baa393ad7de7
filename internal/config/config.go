// Package config provides configuration management for stitch using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the STITCH_ prefix, and validation. It describes where the
// source tree and output tree live, site-wide variables, build options, the
// development server, the watcher, and logging.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/validation"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSiteName is the value of {{ siteName }} when none is configured.
const DefaultSiteName = "PAPIME - Visualización 3D"

type Config struct {
	Source SourceConfig `mapstructure:"source" yaml:"source"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	Site   SiteConfig   `mapstructure:"site" yaml:"site"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type SourceConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type SiteConfig struct {
	Name      string                 `mapstructure:"name" yaml:"name"`
	Variables map[string]interface{} `mapstructure:"variables" yaml:"variables"`
}

type BuildConfig struct {
	Relativize bool `mapstructure:"relativize" yaml:"relativize"`
	Markdown   bool `mapstructure:"markdown" yaml:"markdown"`
	CheckLinks bool `mapstructure:"check_links" yaml:"check_links"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
	Open       bool   `mapstructure:"open" yaml:"open"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.root", filepath.Join("project", "src"))
	v.SetDefault("output.dir", filepath.Join("project", "dist"))
	v.SetDefault("site.name", DefaultSiteName)
	v.SetDefault("build.relativize", true)
	v.SetDefault("build.markdown", false)
	v.SetDefault("build.check_links", false)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.live_reload", true)
	v.SetDefault("server.open", false)
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("watch.ignore", []string{".git", "node_modules", "*.swp", "*~", ".DS_Store"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for anything
// not set and validating the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, stitcherrors.NewConfigError("unable to decode configuration", err)
	}

	if config.Site.Variables == nil {
		config.Site.Variables = make(map[string]interface{})
	}
	if err := restoreVariableCase(v.ConfigFileUsed(), config.Site.Variables); err != nil {
		return nil, stitcherrors.NewConfigError("unable to read site.variables", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, stitcherrors.NewConfigError("invalid configuration", err)
	}

	return &config, nil
}

// restoreVariableCase re-keys vars with the spelling the config file uses.
// Viper lowercases every key, but placeholders are matched case-sensitively.
// Values are kept as viper resolved them, so environment overrides still apply.
func restoreVariableCase(file string, vars map[string]interface{}) error {
	if file == "" || len(vars) == 0 {
		return nil
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yml", ".yaml", ".json":
	default:
		return nil
	}

	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var raw struct {
		Site struct {
			Variables map[string]yaml.Node `yaml:"variables"`
		} `yaml:"site"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	for name := range raw.Site.Variables {
		lower := strings.ToLower(name)
		if lower == name {
			continue
		}
		if value, ok := vars[lower]; ok {
			if _, spelled := raw.Site.Variables[lower]; !spelled {
				delete(vars, lower)
			}
			vars[name] = value
		}
	}
	return nil
}

// Directory layout below the source root.
const (
	pagesDir    = "html/pages"
	partialsDir = "html/partials"
	dataDir     = "html/data"
	htmlDir     = "html"
	cssDir      = "css"
	assetsDir   = "assets"
)

// HTMLDir is the include root: <source>/html.
func (c *Config) HTMLDir() string { return filepath.Join(c.Source.Root, filepath.FromSlash(htmlDir)) }

// PagesDir holds the pages that are compiled.
func (c *Config) PagesDir() string { return filepath.Join(c.Source.Root, filepath.FromSlash(pagesDir)) }

// PartialsDir holds include-only fragments.
func (c *Config) PartialsDir() string {
	return filepath.Join(c.Source.Root, filepath.FromSlash(partialsDir))
}

// DataDir holds JSON data copied to <output>/data.
func (c *Config) DataDir() string { return filepath.Join(c.Source.Root, filepath.FromSlash(dataDir)) }

// CSSDir holds stylesheets copied to <output>/css.
func (c *Config) CSSDir() string { return filepath.Join(c.Source.Root, cssDir) }

// AssetsDir holds assets copied to <output>/assets.
func (c *Config) AssetsDir() string { return filepath.Join(c.Source.Root, assetsDir) }

// WatchRoots lists every source directory a change in which triggers a rebuild.
func (c *Config) WatchRoots() []string {
	return []string{c.PagesDir(), c.PartialsDir(), c.CSSDir(), c.AssetsDir(), c.DataDir()}
}

// LogLevel parses Log.Level, falling back to info.
func (c *Config) LogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}

// Address is host:port for the development server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validation.ValidatePath(config.Source.Root); err != nil {
		return fmt.Errorf("source.root: %w", err)
	}
	if err := validation.ValidatePath(config.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}

	cleanSource, _ := filepath.Abs(config.Source.Root)
	cleanOutput, _ := filepath.Abs(config.Output.Dir)
	if cleanSource == cleanOutput || validation.IsWithin(cleanOutput, cleanSource) {
		return fmt.Errorf("output.dir %q would delete the source tree on clean", config.Output.Dir)
	}
	for _, root := range config.WatchRoots() {
		cleanRoot, _ := filepath.Abs(root)
		if validation.IsWithin(cleanRoot, cleanOutput) {
			return fmt.Errorf("output.dir %q is inside watched source directory %s", config.Output.Dir, root)
		}
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	for name := range config.Site.Variables {
		if !isIdentifier(name) {
			return fmt.Errorf("site.variables: %q is not a valid variable name", name)
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	switch strings.ToLower(config.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", config.Log.Format)
	}
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	return validation.ValidateHost(config.Host)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
