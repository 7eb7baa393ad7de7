// Package build turns a source tree of pages, partials and static files into
// a servable output tree. A build expands include directives, substitutes
// {{ variables }}, relativizes root-absolute links and copies the static
// trees, recording every deviation in a Report instead of aborting.
package build

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/yuin/goldmark"
)

// PageStore is what the compiler needs from the file store.
type PageStore interface {
	ReadFile(path string) ([]byte, error)
	WriteWithRetry(path string, data []byte) error
}

// CompiledPage is the result of compiling one page.
type CompiledPage struct {
	Source   string // slash path relative to the page root
	Output   string // slash path relative to the output root
	Content  string
	Includes []IncludeEvent

	ReadErr     error
	MarkdownErr error
	WriteErr    error
}

// Compiler runs the per-page pipeline: read, markdown, includes, variables,
// relativize, write.
type Compiler struct {
	store      PageStore
	resolver   *IncludeResolver
	pagesDir   string
	outputDir  string
	markdown   goldmark.Markdown
	relativize bool
	logger     logging.Logger
}

// CompilerConfig locates the trees a Compiler reads and writes.
type CompilerConfig struct {
	PagesDir    string
	IncludeRoot string
	SourceRoot  string // includes never read outside it; defaults to the parent of IncludeRoot
	OutputDir   string
	Markdown    bool
	Relativize  bool
}

// NewCompiler creates a Compiler over store.
func NewCompiler(store PageStore, cfg CompilerConfig, logger logging.Logger) *Compiler {
	boundary := cfg.SourceRoot
	if boundary == "" {
		boundary = filepath.Dir(cfg.IncludeRoot)
	}

	c := &Compiler{
		store:      store,
		resolver:   NewIncludeResolver(store, cfg.IncludeRoot, boundary, logger),
		pagesDir:   cfg.PagesDir,
		outputDir:  cfg.OutputDir,
		relativize: cfg.Relativize,
		logger:     logger.WithComponent("compiler"),
	}
	if cfg.Markdown {
		c.markdown = newMarkdown()
	}
	return c
}

// Accepts reports whether the page at rel is compiled.
func (c *Compiler) Accepts(rel string) bool {
	switch path.Ext(rel) {
	case ".html":
		return true
	case ".md":
		return c.markdown != nil
	default:
		return false
	}
}

// Render produces the compiled text for the page at rel without writing it.
// A page that cannot be read compiles to empty content.
func (c *Compiler) Render(ctx context.Context, rel string, defaults Variables) *CompiledPage {
	rel = filepath.ToSlash(rel)
	page := &CompiledPage{
		Source: rel,
		Output: outputName(rel),
	}
	source := filepath.Join(c.pagesDir, filepath.FromSlash(rel))

	data, err := c.store.ReadFile(source)
	if err != nil {
		page.ReadErr = stitcherrors.NewIOError(stitcherrors.CodeReadFailed, "could not read page", err).WithPath(rel)
		c.logger.Warn(ctx, err, "Could not read page, writing empty output", "page", rel)
		data = nil
	}

	text := string(data)
	if c.markdown != nil && path.Ext(rel) == ".md" && len(data) > 0 {
		html, err := renderMarkdown(c.markdown, data)
		if err != nil {
			page.MarkdownErr = err
			c.logger.Warn(ctx, err, "Markdown conversion failed, using raw text", "page", rel)
		} else {
			text = html
		}
	}

	text, page.Includes = c.resolver.Expand(ctx, text, source)
	text = Substitute(text, defaults.Overlay(PageVariables(rel)))
	if c.relativize {
		text = Relativize(text)
	}

	page.Content = text
	return page
}

// Compile renders the page at rel and writes it to its mirrored location
// under the output root.
func (c *Compiler) Compile(ctx context.Context, rel string, defaults Variables) *CompiledPage {
	page := c.Render(ctx, rel, defaults)

	target := filepath.Join(c.outputDir, filepath.FromSlash(page.Output))
	if err := c.store.WriteWithRetry(target, []byte(page.Content)); err != nil {
		page.WriteErr = err
		c.logger.Error(ctx, err, "Failed to write page", "page", rel, "target", target)
		return page
	}

	c.logger.Debug(ctx, "Compiled page", "page", rel, "output", page.Output)
	return page
}

func outputName(rel string) string {
	if path.Ext(rel) == ".md" {
		return strings.TrimSuffix(rel, ".md") + ".html"
	}
	return rel
}
