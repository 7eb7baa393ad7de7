package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ServerStartError generates suggestions for server startup failures
func ServerStartError(err error, port int) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}

	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") {
		suggestions = append(suggestions,
			ErrorSuggestion{
				Title:       "Port already in use",
				Description: fmt.Sprintf("Port %d is already being used by another process", port),
				Command:     fmt.Sprintf("lsof -i :%d", port),
			},
			ErrorSuggestion{
				Title:       "Use a different port",
				Description: "Start the server on a different port",
				Command:     fmt.Sprintf("stitch serve --port %d", port+1),
			})
	}

	if strings.Contains(errStr, "permission denied") && port < 1024 {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use unprivileged port",
			Description: "Ports below 1024 require root privileges",
			Command:     "stitch serve --port 3000",
		})
	}

	return suggestions
}

// ConfigurationError generates suggestions for configuration issues
func ConfigurationError(configError string, configPath string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}
	if configPath != "" {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Check configuration file",
			Description: "Verify the file exists and has valid YAML syntax",
			Command:     "cat " + configPath,
		})
	}

	switch {
	case strings.Contains(configError, "would delete the source tree"):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Separate source and output",
			Description: "The output directory is removed on every build and must not contain the source tree",
			Example:     "source:\n  root: project/src\noutput:\n  dir: project/dist",
		})
	case strings.Contains(configError, "inside watched source directory"):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Move the output directory",
			Description: "Builds write into the output directory; inside a watched directory every build triggers the next one",
			Example:     "source:\n  root: project/src\noutput:\n  dir: project/dist",
		})
	case strings.Contains(configError, "site.variables"):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Rename the variable",
			Description: "Variable names may contain only letters, digits and underscores",
			Example:     "site:\n  variables:\n    contact_email: team@example.com",
		})
	case strings.Contains(configError, "decode"):
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix value types",
			Description: "A configuration value has the wrong type",
			Example:     "server:\n  port: 3000\nwatch:\n  debounce: 100ms",
		})
	}

	return suggestions
}

// BuildFailureError generates suggestions for builds that finished with
// failed outcomes.
func BuildFailureError(failed []error) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}
	seen := map[string]bool{}

	for _, err := range failed {
		switch {
		case errors.Is(err, ErrIncludeCycle) && !seen[CodeIncludeCycle]:
			seen[CodeIncludeCycle] = true
			suggestions = append(suggestions, ErrorSuggestion{
				Title:       "Break the include cycle",
				Description: "A partial includes itself directly or through other partials; the page output names the cycle",
			})
		case errors.Is(err, ErrWriteFailed) && !seen[CodeWriteFailed]:
			seen[CodeWriteFailed] = true
			suggestions = append(suggestions, ErrorSuggestion{
				Title:       "Check the output directory",
				Description: "Pages could not be written; verify permissions and free space",
			})
		}
	}

	suggestions = append(suggestions, ErrorSuggestion{
		Title:       "Inspect the full report",
		Description: "Every outcome carries the stage, path and reason",
		Command:     "stitch build --format json",
	})
	return suggestions
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	title := e.Title
	if e.OriginalError != nil {
		title += ": " + e.OriginalError.Error()
	}
	return FormatSuggestions(title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
