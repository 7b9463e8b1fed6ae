package system

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bealive/bealive-api/pkg/logger"
)

// Job is a periodic task.
type Job struct {
	Name string
	// Spec is a standard cron expression or a descriptor such as "@every 5m".
	Spec string
	Run  func(ctx context.Context) error
}

// CronService runs jobs on cron schedules.
type CronService struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
	log     *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCronService creates a scheduler. Each run is bounded by timeout.
func NewCronService(timeout time.Duration, log *logger.Logger) *CronService {
	if log == nil {
		log = logger.NewDefault("cron")
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CronService{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		log:     log,
	}
}

// Add schedules job. Call before Start.
func (s *CronService) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has no run func", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the scheduled jobs.
func (s *CronService) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

func (s *CronService) run(job Job) {
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.WithError(err).WithField("job", job.Name).Warn("job failed")
		return
	}
	s.log.WithField("job", job.Name).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Debug("job completed")
}

// Name implements Service.
func (s *CronService) Name() string { return "cron" }

// Start implements Service.
func (s *CronService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.cron.Start()
	return nil
}

// Stop waits for running jobs or until ctx is done.
func (s *CronService) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	if s.cancel != nil {
		defer s.cancel()
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
