// Package validation provides security validation functions for preventing
// path traversal out of the served and built trees, and for rejecting
// unsafe configuration values.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
)

// ResolveWithin joins the slash-separated request path rel onto root and
// returns the cleaned absolute result. It fails with ErrPathEscapesRoot when
// the result lies outside root.
func ResolveWithin(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("getting absolute root: %w", err)
	}

	joined := filepath.Join(absRoot, filepath.FromSlash(rel))
	if !IsWithin(absRoot, joined) {
		return "", stitcherrors.NewSecurityError(stitcherrors.CodePathEscapes, "path escapes root").
			WithPath(rel)
	}

	return joined, nil
}

// IsWithin reports whether path is root itself or lies below it. Both are
// expected to be absolute and clean.
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidatePath validates a configured directory path.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateHost rejects host values containing shell or markup metacharacters.
func ValidateHost(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	return nil
}
