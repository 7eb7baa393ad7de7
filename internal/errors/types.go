// Package errors defines the typed errors stitch records while building and
// serving a site. Every build-time condition is recoverable; the type and
// code let the build report and tests tell conditions apart without parsing
// log text.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInclude  ErrorType = "include"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeSecurity ErrorType = "security"
	ErrorTypeBuild    ErrorType = "build"
)

// Error codes shared by the sentinels below.
const (
	CodeIncludeNotFound = "INCLUDE_NOT_FOUND"
	CodeIncludeCycle    = "INCLUDE_CYCLE"
	CodePathEscapes     = "PATH_ESCAPES_ROOT"
	CodeWriteFailed     = "WRITE_FAILED"
	CodeReadFailed      = "READ_FAILED"
	CodeCleanFailed     = "CLEAN_FAILED"
	CodeSourceMissing   = "SOURCE_MISSING"
	CodeInvalidConfig   = "INVALID_CONFIG"
)

// Sentinels for errors.Is. Matching compares Type and Code only.
var (
	ErrIncludeNotFound = &StitchError{Type: ErrorTypeInclude, Code: CodeIncludeNotFound}
	ErrIncludeCycle    = &StitchError{Type: ErrorTypeInclude, Code: CodeIncludeCycle}
	ErrPathEscapesRoot = &StitchError{Type: ErrorTypeSecurity, Code: CodePathEscapes}
	ErrWriteFailed     = &StitchError{Type: ErrorTypeIO, Code: CodeWriteFailed}
	ErrSourceMissing   = &StitchError{Type: ErrorTypeIO, Code: CodeSourceMissing}
)

// StitchError is a structured error type with context.
type StitchError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Path        string
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *StitchError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StitchError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *StitchError) Is(target error) bool {
	var t *StitchError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath sets the file the error is about.
func (e *StitchError) WithPath(path string) *StitchError {
	e.Path = path

	return e
}

// WithContext adds context information to the error.
func (e *StitchError) WithContext(key string, value interface{}) *StitchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// NewIOError creates a recoverable filesystem error.
func NewIOError(code, message string, cause error) *StitchError {
	return &StitchError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIncludeError creates an include resolution error.
func NewIncludeError(code, message string) *StitchError {
	return &StitchError{
		Type:        ErrorTypeInclude,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIncludeCycleError describes a cycle as the chain of paths that closes it.
func NewIncludeCycleError(chain []string) *StitchError {
	return NewIncludeError(CodeIncludeCycle, "include cycle: "+strings.Join(chain, " -> ")).
		WithContext("chain", chain)
}

// NewSecurityError creates a security error. These are never recoverable.
func NewSecurityError(code, message string) *StitchError {
	return &StitchError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewConfigError wraps a configuration problem.
func NewConfigError(message string, cause error) *StitchError {
	return &StitchError{
		Type:    ErrorTypeConfig,
		Code:    CodeInvalidConfig,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable reports whether err, or any StitchError it wraps, is recoverable.
func IsRecoverable(err error) bool {
	var se *StitchError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// GetErrorType returns the type of the first StitchError in err's chain.
func GetErrorType(err error) ErrorType {
	var se *StitchError
	if errors.As(err, &se) {
		return se.Type
	}

	return ""
}
