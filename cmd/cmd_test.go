package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// executeCommand runs the root command with args against a fresh viper
// instance and returns its standard output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeSite lays out a source tree and returns the source and output roots.
func writeSite(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "src")
	for rel, content := range files {
		path := filepath.Join(source, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return source, filepath.Join(dir, "dist")
}

func TestBuildCommand(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html":       `<!-- include partials/header.html --><a href="/about.html">{{ siteName }}</a>`,
		"html/pages/about.html":       `<p>{{ pageTitle }}</p>`,
		"html/partials/header.html":   `<h1>{{ pageName }}</h1>`,
		"css/site.css":                `body{}`,
		"html/data/models.json":       `[]`,
		"assets/models/teapot.glb":    `glb`,
		"html/partials/footer.html":   `<footer></footer>`,
		"html/pages/docs/guide.html":  `<a href="/index.html">home</a>`,
		"html/pages/docs/readme.txt":  `not a page`,
		"html/pages/docs/.draft.html": `hidden`,
	})

	out, err := executeCommand(t, "build", "--source", source, "--output", output, "--format", "json")
	require.NoError(t, err)

	var report build.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.HasFailures())

	index, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, `<h1>index</h1><a href="about.html">PAPIME - Visualización 3D</a>`, string(index))

	about, err := os.ReadFile(filepath.Join(output, "about.html"))
	require.NoError(t, err)
	assert.Equal(t, `<p>About</p>`, string(about))

	assert.FileExists(t, filepath.Join(output, "css", "site.css"))
	assert.FileExists(t, filepath.Join(output, "data", "models.json"))
	assert.FileExists(t, filepath.Join(output, "assets", "models", "teapot.glb"))
	assert.FileExists(t, filepath.Join(output, "docs", "guide.html"))
	assert.NoFileExists(t, filepath.Join(output, "docs", "readme.txt"))
}

func TestBuildCommandTable(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html": `hello`,
	})

	out, err := executeCommand(t, "build", "-s", source, "-o", output)
	require.NoError(t, err)

	assert.Contains(t, out, "STAGE")
	assert.Contains(t, out, "REASON")
	assert.Contains(t, out, "1 pages built, 0 warnings, 3 skipped, 0 failed in")
}

func TestBuildCommandYAML(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html": `hello`,
	})

	out, err := executeCommand(t, "build", "-s", source, "-o", output, "--format", "yaml")
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Contains(t, report, "id")
	assert.Contains(t, report, "outcomes")
}

func TestBuildCommandStrict(t *testing.T) {
	files := map[string]string{
		"html/pages/index.html":  `<!-- include partials/a.html -->`,
		"html/partials/a.html":   `<!-- include b.html -->`,
		"html/partials/b.html":   `<!-- include a.html -->`,
		"html/partials/ok.html":  `ok`,
		"html/pages/second.html": `<!-- include partials/ok.html -->`,
	}

	t.Run("lenient", func(t *testing.T) {
		source, output := writeSite(t, files)
		_, err := executeCommand(t, "build", "-s", source, "-o", output, "--format", "json")
		require.NoError(t, err)

		index, err := os.ReadFile(filepath.Join(output, "index.html"))
		require.NoError(t, err)
		assert.Contains(t, string(index), "<!-- Include cycle:")
	})

	t.Run("strict", func(t *testing.T) {
		source, output := writeSite(t, files)
		_, err := executeCommand(t, "build", "-s", source, "-o", output, "--format", "json", "--strict")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed outcomes")
	})
}

func TestBuildCommandRejectsFormat(t *testing.T) {
	source, output := writeSite(t, nil)

	_, err := executeCommand(t, "build", "-s", source, "-o", output, "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format xml")
	assert.NoDirExists(t, output)
}

func TestBuildCommandRejectsOutputOverSource(t *testing.T) {
	source, _ := writeSite(t, map[string]string{"html/pages/index.html": "x"})

	_, err := executeCommand(t, "build", "-s", source, "-o", filepath.Dir(source))

	require.Error(t, err)
	assert.FileExists(t, filepath.Join(source, "html", "pages", "index.html"))
}

func TestBuildCommandEnvironment(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html": `{{ siteName }}`,
	})
	t.Setenv("STITCH_SOURCE_ROOT", source)
	t.Setenv("STITCH_OUTPUT_DIR", output)
	t.Setenv("STITCH_SITE_NAME", "From Env")

	_, err := executeCommand(t, "build", "--format", "json")
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "From Env", string(index))
}

func TestBuildCommandConfigFile(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html": `{{ siteName }} {{ tagline }}`,
	})
	configPath := filepath.Join(t.TempDir(), "site.yml")
	content := strings.Join([]string{
		"source:",
		"  root: " + source,
		"output:",
		"  dir: " + output,
		"site:",
		"  name: Config Site",
		"  variables:",
		"    tagline: hello",
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, err := executeCommand(t, "build", "--config", configPath, "--format", "json")
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "Config Site hello", string(index))
}

func TestBuildCommandCamelCaseVariables(t *testing.T) {
	source, output := writeSite(t, map[string]string{
		"html/pages/index.html": `{{ heroTitle }}|{{ siteName }}`,
	})
	configPath := filepath.Join(t.TempDir(), "site.yml")
	content := strings.Join([]string{
		"source:",
		"  root: " + source,
		"output:",
		"  dir: " + output,
		"site:",
		"  variables:",
		"    heroTitle: Hello",
		"    siteName: Override",
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, err := executeCommand(t, "build", "--config", configPath, "--format", "json")
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(output, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "Hello|Override", string(index))
}

func TestBuildCommandRejectsOutputInsidePages(t *testing.T) {
	source, _ := writeSite(t, map[string]string{"html/pages/index.html": "x"})
	output := filepath.Join(source, "html", "pages", "dist")

	_, err := executeCommand(t, "build", "-s", source, "-o", output)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "inside watched source directory")
	assert.NoDirExists(t, output)
}

func TestCleanCommand(t *testing.T) {
	source, output := writeSite(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(output, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(output, "css", "old.css"), []byte("x"), 0o644))

	out, err := executeCommand(t, "clean", "-s", source, "-o", output)
	require.NoError(t, err)

	assert.Contains(t, out, "Removed")
	assert.NoDirExists(t, output)

	_, err = executeCommand(t, "clean", "-s", source, "-o", output)
	assert.NoError(t, err, "cleaning a missing output tree is not an error")
}

func TestVersionCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(t, "version", "--format", "json")
		require.NoError(t, err)

		var info map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.NotEmpty(t, info["version"])
		assert.NotEmpty(t, info["go_version"])
	})

	t.Run("text", func(t *testing.T) {
		out, err := executeCommand(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "Version:")
		assert.Contains(t, out, "Platform:")
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := executeCommand(t, "version", "--format", "toml")
		assert.Error(t, err)
	})
}

func TestWriteReportTable(t *testing.T) {
	report := &build.Report{
		Duration: 1500 * time.Microsecond,
		Outcomes: []build.Outcome{
			{Stage: build.StagePages, Path: "index.html", Status: build.StatusSuccess},
			{Stage: build.StageInclude, Path: "index.html", Status: build.StatusWarning, Reason: "include not found"},
		},
	}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, report, "table"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "STAGE"))
	assert.Contains(t, lines[2], "include not found")
	assert.Equal(t, "1 pages built, 1 warnings, 0 skipped, 0 failed in 2ms", lines[3])
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"0", false},
		{"3000", false},
		{"65535", false},
		{"65536", true},
		{"-1", true},
		{"http", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidatePort(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddFlagValidation(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(cmd, "server")
	AddFlagValidation(cmd, "port", ValidatePort)

	require.NoError(t, cmd.Flags().Set("port", "8080"))
	assert.Equal(t, 8080, flags.Port)

	assert.Error(t, cmd.Flags().Set("port", "70000"))
	assert.Equal(t, 8080, flags.Port)
}

func TestBindViper(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(cmd, "paths", "server")
	v := viper.New()
	v.Set("server.live_reload", true)

	require.NoError(t, cmd.Flags().Parse([]string{"--output", "public", "--no-live-reload", "--port", "4000"}))
	require.NoError(t, flags.BindViper(cmd, v))

	assert.Equal(t, "public", v.GetString("output.dir"))
	assert.Equal(t, 4000, v.GetInt("server.port"))
	assert.False(t, v.GetBool("server.live_reload"))
}

func TestBindViperKeepsConfigWhenFlagsUnset(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(cmd, "paths", "server")
	v := viper.New()
	v.Set("server.live_reload", true)
	v.SetDefault("server.port", 3000)

	require.NoError(t, cmd.Flags().Parse(nil))
	require.NoError(t, flags.BindViper(cmd, v))

	assert.True(t, v.GetBool("server.live_reload"))
	assert.Equal(t, 3000, v.GetInt("server.port"))
}
