package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(suggestions []ErrorSuggestion) []string {
	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, s.Title)
	}
	return out
}

func TestServerStartError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		port int
		want []string
	}{
		{"in use", fmt.Errorf("listen tcp :3000: bind: address already in use"), 3000, []string{"Port already in use", "Use a different port"}},
		{"privileged", fmt.Errorf("listen tcp :80: bind: permission denied"), 80, []string{"Use unprivileged port"}},
		{"other", fmt.Errorf("boom"), 3000, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(ServerStartError(tt.err, tt.port)))
		})
	}
}

func TestConfigurationError(t *testing.T) {
	got := ConfigurationError(`invalid configuration: output.dir "." would delete the source tree on clean`, ".stitch.yml")
	assert.Equal(t, []string{"Check configuration file", "Separate source and output"}, titles(got))

	got = ConfigurationError(`invalid configuration: output.dir "src/css/out" is inside watched source directory src/css`, "")
	assert.Equal(t, []string{"Move the output directory"}, titles(got))

	got = ConfigurationError(`site.variables: "a-b" is not a valid variable name`, "")
	assert.Equal(t, []string{"Rename the variable"}, titles(got))
}

func TestBuildFailureError(t *testing.T) {
	cycle := NewIncludeCycleError([]string{"a.html", "b.html", "a.html"})
	write := NewIOError(CodeWriteFailed, "write failed after retry", errors.New("disk full"))

	got := BuildFailureError([]error{cycle, cycle, write, nil})

	assert.Equal(t, []string{"Break the include cycle", "Check the output directory", "Inspect the full report"}, titles(got))
}

func TestEnhancedError(t *testing.T) {
	cause := errors.New("bind: address already in use")
	err := NewEnhancedError("Failed to start server on port 3000", cause, ServerStartError(cause, 3000))

	require.ErrorIs(t, err, cause)
	msg := err.Error()
	assert.Contains(t, msg, "Failed to start server on port 3000: bind: address already in use")
	assert.Contains(t, msg, "Suggestions:")
	assert.Contains(t, msg, "  1. Port already in use")
	assert.Contains(t, msg, "     Run: stitch serve --port 3001")
}

func TestFormatSuggestionsWithoutSuggestions(t *testing.T) {
	assert.Equal(t, "plain", FormatSuggestions("plain", nil))
}
