package build

import (
	"context"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/validation"
)

// includePattern matches <!-- include path/to/file.html -->.
var includePattern = regexp.MustCompile(`<!-- include\s+(.+?)\s*-->`)

// IncludeStatus is the result of resolving one include directive.
type IncludeStatus string

const (
	IncludeResolved IncludeStatus = "resolved"
	IncludeMissing  IncludeStatus = "missing"
	IncludeCycle    IncludeStatus = "cycle"
)

// IncludeEvent records the resolution of one directive.
type IncludeEvent struct {
	Directive string // path as written inside the directive
	File      string // file the directive resolved to
	Status    IncludeStatus
	Err       error
}

// FileReader is the read capability the resolver needs.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// IncludeResolver expands include directives against an include root.
// Directives in top-level text resolve against the root; directives inside an
// included file resolve against that file's directory. No directive may name
// a file outside boundary.
type IncludeResolver struct {
	reader   FileReader
	root     string
	boundary string
	logger   logging.Logger
}

// NewIncludeResolver creates a resolver rooted at root (normally <source>/html)
// that never reads outside boundary (normally <source>).
func NewIncludeResolver(reader FileReader, root, boundary string, logger logging.Logger) *IncludeResolver {
	return &IncludeResolver{
		reader:   reader,
		root:     root,
		boundary: boundary,
		logger:   logger.WithComponent("include"),
	}
}

// Expand replaces every directive in text with the fully expanded contents
// of the file it names. origin is the file text came from; it seeds cycle
// detection and may be empty.
//
// Missing files become <!-- Include not found: X --> and cycles become
// <!-- Include cycle: a -> b -> a -->. Neither stops expansion of the rest
// of the text.
func (r *IncludeResolver) Expand(ctx context.Context, text, origin string) (string, []IncludeEvent) {
	var stack []string
	if origin != "" {
		stack = append(stack, filepath.Clean(origin))
	}

	var events []IncludeEvent
	out := r.expand(ctx, text, r.root, stack, &events)
	return out, events
}

func (r *IncludeResolver) expand(ctx context.Context, text, base string, stack []string, events *[]IncludeEvent) string {
	return includePattern.ReplaceAllStringFunc(text, func(match string) string {
		directive := includePattern.FindStringSubmatch(match)[1]
		file := filepath.Join(base, filepath.FromSlash(directive))

		if i := slices.Index(stack, file); i >= 0 {
			chain := make([]string, 0, len(stack)-i+1)
			for _, p := range stack[i:] {
				chain = append(chain, r.display(p))
			}
			chain = append(chain, r.display(file))

			err := stitcherrors.NewIncludeCycleError(chain).WithPath(directive)
			r.logger.Warn(ctx, err, "Include cycle", "include", directive)
			*events = append(*events, IncludeEvent{Directive: directive, File: file, Status: IncludeCycle, Err: err})

			return "<!-- Include cycle: " + strings.Join(chain, " -> ") + " -->"
		}

		if err := r.contain(file); err != nil {
			r.logger.Warn(ctx, err, "Include outside source root", "include", directive)
			*events = append(*events, IncludeEvent{Directive: directive, File: file, Status: IncludeMissing, Err: err})

			return "<!-- Include not found: " + directive + " -->"
		}

		data, readErr := r.reader.ReadFile(file)
		if readErr != nil {
			err := stitcherrors.NewIncludeError(stitcherrors.CodeIncludeNotFound, "include not found").WithPath(directive)
			err.Cause = readErr
			r.logger.Warn(ctx, readErr, "Include not found", "include", directive)
			*events = append(*events, IncludeEvent{Directive: directive, File: file, Status: IncludeMissing, Err: err})

			return "<!-- Include not found: " + directive + " -->"
		}

		r.logger.Debug(ctx, "Included", "include", directive)
		*events = append(*events, IncludeEvent{Directive: directive, File: file, Status: IncludeResolved})

		nested := append(slices.Clip(stack), file)
		return r.expand(ctx, string(data), filepath.Dir(file), nested, events)
	})
}

// contain fails with ErrPathEscapesRoot when file lies outside the boundary.
func (r *IncludeResolver) contain(file string) error {
	boundary, err := filepath.Abs(r.boundary)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(boundary, abs)
	if err != nil {
		return err
	}
	_, err = validation.ResolveWithin(boundary, filepath.ToSlash(rel))
	return err
}

// display shortens p to a slash path relative to the include root.
func (r *IncludeResolver) display(p string) string {
	if rel, err := filepath.Rel(r.root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}
