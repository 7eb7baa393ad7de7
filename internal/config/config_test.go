package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/stitch/internal/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			setup: func() {
				viper.Reset()
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, filepath.Join("project", "src"), cfg.Source.Root)
				assert.Equal(t, filepath.Join("project", "dist"), cfg.Output.Dir)
				assert.Equal(t, DefaultSiteName, cfg.Site.Name)
				assert.True(t, cfg.Build.Relativize)
				assert.False(t, cfg.Build.Markdown)
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.True(t, cfg.Server.LiveReload)
				assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
				assert.NotNil(t, cfg.Site.Variables)
			},
		},
		{
			name: "custom values",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", "site")
				viper.Set("output.dir", "public")
				viper.Set("site.name", "Docs")
				viper.Set("site.variables", map[string]interface{}{"version": "1.2"})
				viper.Set("server.port", 8080)
				viper.Set("watch.debounce", "250ms")
				viper.Set("build.check_links", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "site", cfg.Source.Root)
				assert.Equal(t, "public", cfg.Output.Dir)
				assert.Equal(t, "Docs", cfg.Site.Name)
				assert.Equal(t, "1.2", cfg.Site.Variables["version"])
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
				assert.True(t, cfg.Build.CheckLinks)
				assert.Equal(t, "localhost:8080", cfg.Address())
			},
		},
		{
			name: "invalid port type",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "dangerous host",
			setup: func() {
				viper.Reset()
				viper.Set("server.host", "localhost;rm")
			},
			expectError: true,
		},
		{
			name: "output contains source",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", filepath.Join("project", "src"))
				viper.Set("output.dir", "project")
			},
			expectError: true,
		},
		{
			name: "output inside pages",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", "site")
				viper.Set("output.dir", filepath.Join("site", "html", "pages", "dist"))
			},
			expectError: true,
		},
		{
			name: "output inside css",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", "site")
				viper.Set("output.dir", filepath.Join("site", "css"))
			},
			expectError: true,
		},
		{
			name: "output inside source but outside watched directories",
			setup: func() {
				viper.Reset()
				viper.Set("source.root", "site")
				viper.Set("output.dir", filepath.Join("site", "dist"))
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, filepath.Join("site", "dist"), cfg.Output.Dir)
			},
		},
		{
			name: "bad variable name",
			setup: func() {
				viper.Reset()
				viper.Set("site.variables", map[string]interface{}{"not-valid": 1})
			},
			expectError: true,
		},
		{
			name: "bad log format",
			setup: func() {
				viper.Reset()
				viper.Set("log.format", "xml")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stitch.yml")
	content := `source:
  root: web/src
output:
  dir: web/dist
site:
  name: Museum
  variables:
    curator: Ana
build:
  markdown: true
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "web/src", cfg.Source.Root)
	assert.Equal(t, "web/dist", cfg.Output.Dir)
	assert.Equal(t, "Museum", cfg.Site.Name)
	assert.Equal(t, "Ana", cfg.Site.Variables["curator"])
	assert.True(t, cfg.Build.Markdown)
	assert.True(t, cfg.Build.Relativize)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFileKeepsVariableCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".stitch.yml")
	content := `site:
  variables:
    heroTitle: Hello
    siteName: Override
    curator: Ana
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("STITCH_SITE_VARIABLES_HEROTITLE", "From Env")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STITCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"heroTitle": "From Env",
		"siteName":  "Override",
		"curator":   "Ana",
	}, cfg.Site.Variables)
}

func TestDirectoryLayout(t *testing.T) {
	cfg := &Config{Source: SourceConfig{Root: "src"}}

	assert.Equal(t, filepath.Join("src", "html"), cfg.HTMLDir())
	assert.Equal(t, filepath.Join("src", "html", "pages"), cfg.PagesDir())
	assert.Equal(t, filepath.Join("src", "html", "partials"), cfg.PartialsDir())
	assert.Equal(t, filepath.Join("src", "html", "data"), cfg.DataDir())
	assert.Equal(t, filepath.Join("src", "css"), cfg.CSSDir())
	assert.Equal(t, filepath.Join("src", "assets"), cfg.AssetsDir())
	assert.Len(t, cfg.WatchRoots(), 5)
}
