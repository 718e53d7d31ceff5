package reconcile

import (
	"context"
	"fmt"
	"time"

	"ms-registration/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs the job for a fixed set of events on an interval. A run
// still in progress makes the next tick skip.
type Scheduler struct {
	Job      *Job
	Events   []string
	Interval time.Duration
	Logger   *logger.Logger

	scheduler gocron.Scheduler
}

func NewScheduler(job *Job, events []string, interval time.Duration, l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Discard()
	}
	return &Scheduler{Job: job, Events: events, Interval: interval, Logger: l}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", s.Interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() {
			s.RunAll(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("reconcile-counters"),
	)
	if err != nil {
		sched.Shutdown()
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	s.scheduler = sched
	sched.Start()
	s.Logger.Info("RECONCILE", fmt.Sprintf("Scheduled every %s for %d events", s.Interval, len(s.Events)))
	return nil
}

// RunAll reconciles every configured event, one after the other.
func (s *Scheduler) RunAll(ctx context.Context) []*Result {
	results := make([]*Result, 0, len(s.Events))
	for _, event := range s.Events {
		if ctx.Err() != nil {
			break
		}
		res, err := s.Job.Run(ctx, event)
		if err != nil {
			s.Logger.Error("RECONCILE", fmt.Sprintf("[%s] failed: %v", event, err))
		}
		results = append(results, res)
	}
	return results
}

func (s *Scheduler) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
