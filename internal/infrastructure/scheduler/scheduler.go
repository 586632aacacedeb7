package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs backup and cleanup jobs on six-field cron expressions
// (seconds resolution).
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
	}
}

// AddJob registers a job; errors are the job's to log, the scheduler only
// owns the timing.
func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		_ = job(ctx)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop blocks until running jobs have finished.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
