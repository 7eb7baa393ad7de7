package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/conneroisu/stitch/internal/config"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/filestore"
	"github.com/conneroisu/stitch/internal/linkcheck"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/metrics"
)

// Store is the file capability a build runs on.
type Store interface {
	PageStore
	RemoveAll(path string) error
	MkdirAll(path string) error
	Exists(path string) bool
	IsDir(path string) bool
	Walk(root string, fn filepath.WalkFunc) error
	CopyTree(src, dst string, visit filestore.CopyVisitor) error
}

// Options describes one site.
type Options struct {
	SourceRoot string
	OutputDir  string
	SiteName   string
	Variables  Variables
	Relativize bool
	Markdown   bool
	CheckLinks bool
}

// OptionsFromConfig maps the loaded configuration onto build options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SourceRoot: cfg.Source.Root,
		OutputDir:  cfg.Output.Dir,
		SiteName:   cfg.Site.Name,
		Variables:  Variables(cfg.Site.Variables),
		Relativize: cfg.Build.Relativize,
		Markdown:   cfg.Build.Markdown,
		CheckLinks: cfg.Build.CheckLinks,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now as the source of the build timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRecorder sends build observations to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator owns the clean/build lifecycle of one output tree.
type Orchestrator struct {
	store    Store
	opts     Options
	compiler *Compiler
	logger   logging.Logger
	recorder metrics.Recorder
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator for the site described by opts.
func NewOrchestrator(store Store, opts Options, logger logging.Logger, options ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		opts:     opts,
		logger:   logger.WithComponent("build"),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range options {
		opt(o)
	}

	o.compiler = NewCompiler(store, CompilerConfig{
		PagesDir:    o.pagesDir(),
		IncludeRoot: o.htmlDir(),
		SourceRoot:  opts.SourceRoot,
		OutputDir:   opts.OutputDir,
		Markdown:    opts.Markdown,
		Relativize:  opts.Relativize,
	}, logger)

	return o
}

func (o *Orchestrator) htmlDir() string  { return filepath.Join(o.opts.SourceRoot, "html") }
func (o *Orchestrator) pagesDir() string { return filepath.Join(o.htmlDir(), "pages") }

// OutputDir is the root of the tree Build writes.
func (o *Orchestrator) OutputDir() string { return o.opts.OutputDir }

// Clean removes the output tree.
func (o *Orchestrator) Clean(ctx context.Context) error {
	if err := o.store.RemoveAll(o.opts.OutputDir); err != nil {
		return stitcherrors.NewIOError(stitcherrors.CodeCleanFailed, "could not remove output tree", err).
			WithPath(o.opts.OutputDir)
	}
	o.logger.Debug(ctx, "Cleaned output tree", "dir", o.opts.OutputDir)
	return nil
}

// Build runs a full build: clean, ensure the output root, compile pages,
// copy css, assets and data, then optionally check links. It never aborts
// on a per-file problem; every deviation is an Outcome in the Report.
func (o *Orchestrator) Build(ctx context.Context) *Report {
	started := o.now()
	report := newReport(started)
	bctx := BuildContext{
		Now:       started,
		SiteName:  o.opts.SiteName,
		Variables: o.opts.Variables,
	}

	o.logger.Info(ctx, "Build started", "id", report.ID, "source", o.opts.SourceRoot, "output", o.opts.OutputDir)

	o.timed(StageClean, func() {
		if err := o.Clean(ctx); err != nil {
			o.logger.Warn(ctx, err, "Clean failed, overwriting in place")
			report.add(StageClean, o.opts.OutputDir, StatusWarning, err)
		}
	})

	if err := o.store.MkdirAll(o.opts.OutputDir); err != nil {
		o.logger.Error(ctx, err, "Could not create output root", "dir", o.opts.OutputDir)
		report.add(StageOutput, o.opts.OutputDir, StatusFailed, err)
	}

	var pages []*CompiledPage
	o.timed(StagePages, func() {
		pages = o.buildPages(ctx, DefaultVariables(bctx), report)
	})

	trees := []struct {
		stage Stage
		src   string
		dst   string
	}{
		{StageCSS, filepath.Join(o.opts.SourceRoot, "css"), "css"},
		{StageAssets, filepath.Join(o.opts.SourceRoot, "assets"), "assets"},
		{StageData, filepath.Join(o.htmlDir(), "data"), "data"},
	}
	for _, tree := range trees {
		o.timed(tree.stage, func() {
			o.copyTree(ctx, tree.stage, tree.src, filepath.Join(o.opts.OutputDir, tree.dst), report)
		})
	}

	if o.opts.CheckLinks {
		o.timed(StageLinks, func() { o.checkLinks(ctx, pages, report) })
	}

	report.Duration = o.now().Sub(started)
	o.record(report)

	o.logger.Info(ctx, "Build finished", "id", report.ID, "summary", report.Summary())
	return report
}

func (o *Orchestrator) buildPages(ctx context.Context, defaults Variables, report *Report) []*CompiledPage {
	root := o.pagesDir()
	if !o.store.IsDir(root) {
		err := stitcherrors.NewIOError(stitcherrors.CodeSourceMissing, "pages directory not found", os.ErrNotExist).WithPath(root)
		o.logger.Warn(ctx, err, "Skipping pages", "dir", root)
		report.add(StagePages, root, StatusSkipped, err)
		return nil
	}

	var pages []*CompiledPage
	walkErr := o.store.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			o.logger.Warn(ctx, err, "Could not walk page path", "path", path)
			report.add(StagePages, path, StatusFailed, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			report.add(StagePages, path, StatusFailed, err)
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !o.compiler.Accepts(rel) {
			return nil
		}

		page := o.compiler.Compile(ctx, rel, defaults)
		o.recordPage(page, report)
		pages = append(pages, page)
		return nil
	})
	if walkErr != nil {
		o.logger.Error(ctx, walkErr, "Page walk stopped early", "dir", root)
		report.add(StagePages, root, StatusFailed, walkErr)
	}

	return pages
}

func (o *Orchestrator) recordPage(page *CompiledPage, report *Report) {
	for _, inc := range page.Includes {
		switch inc.Status {
		case IncludeResolved:
			report.add(StageInclude, inc.Directive, StatusSuccess, nil)
		case IncludeMissing:
			report.add(StageInclude, inc.Directive, StatusWarning, inc.Err)
		case IncludeCycle:
			report.add(StageInclude, inc.Directive, StatusFailed, inc.Err)
		}
	}

	switch {
	case page.WriteErr != nil:
		report.add(StagePages, page.Output, StatusFailed, page.WriteErr)
	case page.ReadErr != nil:
		report.add(StagePages, page.Output, StatusWarning, page.ReadErr)
	case page.MarkdownErr != nil:
		report.add(StagePages, page.Output, StatusWarning, page.MarkdownErr)
	default:
		report.add(StagePages, page.Output, StatusSuccess, nil)
	}
}

func (o *Orchestrator) copyTree(ctx context.Context, stage Stage, src, dst string, report *Report) {
	err := o.store.CopyTree(src, dst, func(rel string, err error) {
		if err != nil {
			o.logger.Error(ctx, err, "Failed to copy file", "stage", string(stage), "file", rel)
			report.add(stage, rel, StatusFailed, err)
			return
		}
		report.add(stage, rel, StatusSuccess, nil)
	})

	switch {
	case err == nil:
		o.logger.Debug(ctx, "Copied tree", "stage", string(stage), "src", src)
	case errors.Is(err, stitcherrors.ErrSourceMissing):
		o.logger.Warn(ctx, err, "Skipping missing tree", "stage", string(stage), "src", src)
		report.add(stage, src, StatusSkipped, err)
	default:
		o.logger.Error(ctx, err, "Copy stopped early", "stage", string(stage), "src", src)
		report.add(stage, src, StatusFailed, err)
	}
}

func (o *Orchestrator) checkLinks(ctx context.Context, pages []*CompiledPage, report *Report) {
	checker := linkcheck.New(func(rel string) bool {
		return o.store.Exists(filepath.Join(o.opts.OutputDir, filepath.FromSlash(rel)))
	})

	for _, page := range pages {
		if page.WriteErr != nil {
			continue
		}
		broken, err := checker.Check(page.Output, page.Content)
		if err != nil {
			report.add(StageLinks, page.Output, StatusWarning, err)
			continue
		}
		for _, b := range broken {
			o.logger.Warn(ctx, nil, "Broken link", "page", b.Page, "ref", b.Ref)
			report.Outcomes = append(report.Outcomes, Outcome{
				Stage:  StageLinks,
				Path:   b.Page,
				Status: StatusWarning,
				Reason: b.String(),
			})
		}
	}
}

func (o *Orchestrator) timed(stage Stage, fn func()) {
	start := time.Now()
	fn()
	o.recorder.ObserveStageDuration(string(stage), time.Since(start))
}

func (o *Orchestrator) record(report *Report) {
	for _, out := range report.Outcomes {
		o.recorder.IncStageResult(string(out.Stage), metrics.ResultLabel(out.Status))
	}
	o.recorder.ObserveBuildDuration(report.Duration)

	switch {
	case report.HasFailures():
		o.recorder.IncBuildOutcome(metrics.ResultFailed)
	case report.Count(StatusWarning) > 0:
		o.recorder.IncBuildOutcome(metrics.ResultWarning)
	default:
		o.recorder.IncBuildOutcome(metrics.ResultSuccess)
	}
}
