package worker

import "context"

// Job is a unit of scheduled background work.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Schedule returns the cron schedule expression. Interval descriptors
	// such as "@every 5s" are accepted alongside standard cron specs.
	Schedule() string

	// Run executes the job. The context is cancelled during shutdown.
	Run(ctx context.Context) error
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	name     string
	schedule string
	fn       func(ctx context.Context) error
}

// NewFuncJob creates a Job from a function.
func NewFuncJob(name, schedule string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{name: name, schedule: schedule, fn: fn}
}

func (j *FuncJob) Name() string { return j.name }
func (j *FuncJob) Schedule() string { return j.schedule }

func (j *FuncJob) Run(ctx context.Context) error {
	return j.fn(ctx)
}
