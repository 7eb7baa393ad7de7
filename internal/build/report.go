package build

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names a phase of the build.
type Stage string

const (
	StageClean   Stage = "clean"
	StageOutput  Stage = "output"
	StagePages   Stage = "pages"
	StageInclude Stage = "include"
	StageCSS     Stage = "css"
	StageAssets  Stage = "assets"
	StageData    Stage = "data"
	StageLinks   Stage = "links"
)

// Status is the result of one unit of work.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
)

// Outcome records what happened to one file or tree during a build.
type Outcome struct {
	Stage  Stage  `json:"stage" yaml:"stage"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Status Status `json:"status" yaml:"status"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Err    error  `json:"-" yaml:"-"`
}

// Report is the typed result of one build.
type Report struct {
	ID        string        `json:"id" yaml:"id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Outcomes  []Outcome     `json:"outcomes" yaml:"outcomes"`
}

func newReport(startedAt time.Time) *Report {
	return &Report{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}
}

func (r *Report) add(stage Stage, path string, status Status, err error) {
	o := Outcome{Stage: stage, Path: path, Status: status, Err: err}
	if err != nil {
		o.Reason = err.Error()
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Filter returns the outcomes with status s, in build order.
func (r *Report) Filter(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// ByStage returns the outcomes of one stage, in build order.
func (r *Report) ByStage(stage Stage) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Stage == stage {
			out = append(out, o)
		}
	}
	return out
}

// HasFailures reports whether any outcome failed.
func (r *Report) HasFailures() bool {
	return r.Count(StatusFailed) > 0
}

// Summary is a one-line human readable digest.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d pages built, %d warnings, %d skipped, %d failed in %s",
		r.countStage(StagePages, StatusSuccess),
		r.Count(StatusWarning),
		r.Count(StatusSkipped),
		r.Count(StatusFailed),
		r.Duration.Round(time.Millisecond))
}

func (r *Report) countStage(stage Stage, s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Stage == stage && o.Status == s {
			n++
		}
	}
	return n
}
