package build

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/conneroisu/stitch/internal/logging"
)

// Builder runs one full build.
type Builder interface {
	Build(ctx context.Context) *Report
}

// BuildCallback is called after every completed build.
type BuildCallback func(report *Report)

// Scheduler serializes builds. Triggers that arrive while a build is running
// collapse into a single follow-up build.
type Scheduler struct {
	builder Builder
	logger  logging.Logger

	pending chan struct{}
	running sync.Mutex

	callbacksMu sync.RWMutex
	callbacks   []BuildCallback

	last atomic.Pointer[Report]
}

// NewScheduler creates a Scheduler around builder.
func NewScheduler(builder Builder, logger logging.Logger) *Scheduler {
	return &Scheduler{
		builder: builder,
		logger:  logger.WithComponent("scheduler"),
		pending: make(chan struct{}, 1),
	}
}

// OnBuild registers a callback for completed builds.
func (s *Scheduler) OnBuild(cb BuildCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Trigger marks a rebuild as pending. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run executes pending builds until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pending:
			s.BuildNow(ctx)
		}
	}
}

// BuildNow runs a build immediately, waiting for any running build first.
func (s *Scheduler) BuildNow(ctx context.Context) *Report {
	s.running.Lock()
	report := s.builder.Build(ctx)
	s.running.Unlock()

	s.last.Store(report)
	s.logger.Debug(ctx, "Build completed", "id", report.ID, "failed", report.Count(StatusFailed))

	s.callbacksMu.RLock()
	callbacks := make([]BuildCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.callbacksMu.RUnlock()

	for _, cb := range callbacks {
		cb(report)
	}
	return report
}

// LastReport returns the report of the most recent build, or nil.
func (s *Scheduler) LastReport() *Report {
	return s.last.Load()
}
