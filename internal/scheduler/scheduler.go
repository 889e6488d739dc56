// Package scheduler drives the cooperative tick loop shared by every
// agent: each registered job runs on its own cron schedule and must
// return promptly, never blocking the scheduler's shared goroutine pool.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/r3e-network/flashcore/internal/logging"
)

// Job is one cooperative unit of scheduled work.
type Job interface {
	Tick(ctx context.Context) error
	Name() string
}

// Scheduler manages cron-driven ticks over registered jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *logging.Logger
}

// New constructs a Scheduler with second-granularity cron expressions.
func New(log *logging.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log,
	}
}

// Start begins firing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.log != nil {
		s.log.WithFields(nil).Info("scheduler started")
	}
}

// Stop waits for in-flight ticks to finish, then returns.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.log != nil {
		s.log.WithFields(nil).Info("scheduler stopped")
	}
}

// AddJob registers job to run on the given cron schedule. A tick's
// context is bounded to a single invocation; a job that returns an error
// is logged and skipped until its next scheduled fire.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx := context.Background()
		if err := job.Tick(ctx); err != nil && s.log != nil {
			s.log.WithFields(map[string]interface{}{
				"job":   job.Name(),
				"error": err,
			}).Error("scheduled tick failed")
		}
	})
	return err
}

// RunNow executes job immediately, outside its configured schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	return job.Tick(ctx)
}
