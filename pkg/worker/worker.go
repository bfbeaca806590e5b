// Package worker schedules recurring background jobs, such as the periodic
// flush of staged host batches, on top of a cron scheduler.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
)

// Scheduler runs registered jobs on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	logger  tracing.Logger
	jobs    map[string]Job
	jobsMu  sync.Mutex
	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger tracing.Logger) *Scheduler {
	if logger == nil {
		logger = tracing.NewNoOpLogger()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   map[string]Job{},
	}
}

// RegisterJobs adds jobs to the scheduler. Jobs can be registered only
// before Start; a duplicate name or invalid schedule fails registration.
func (s *Scheduler) RegisterJobs(jobs ...Job) error {
	if s.running.Load() {
		return fmt.Errorf("cannot register jobs on a running scheduler")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, job := range jobs {
		if _, exists := s.jobs[job.Name()]; exists {
			return fmt.Errorf("job %q already registered", job.Name())
		}
		job := job
		_, err := s.cron.AddFunc(job.Schedule(), func() {
			s.runJob(job)
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %q: %w", job.Schedule(), job.Name(), err)
		}
		s.jobs[job.Name()] = job
	}
	return nil
}

// Start begins executing registered jobs. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info(s.ctx, "job scheduler started", tracing.Int("jobs", len(s.jobs)))
	return nil
}

// Shutdown stops scheduling new runs and waits for in-flight jobs, bounded
// by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info(ctx, "job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown timed out: %w", ctx.Err())
	}
}

func (s *Scheduler) runJob(job Job) {
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := job.Run(ctx); err != nil {
		s.logger.Error(ctx, err, "scheduled job failed", tracing.String("job", job.Name()))
	}
}
