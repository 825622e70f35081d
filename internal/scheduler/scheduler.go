// Package scheduler provides cron-based background job scheduling.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job for the system API
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]Job
	info []JobInfo
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]Job),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule.
// Schedule examples:
//   - "*/5 * * * *"   - Every 5 minutes
//   - "@hourly"       - Every hour
//   - "30 2 * * *"    - 02:30 daily
//   - "@every 30s"    - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.mu.Lock()
	s.jobs[job.Name()] = job
	s.info = append(s.info, JobInfo{Name: job.Name(), Schedule: schedule})
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return job.Run()
}

// Jobs lists the registered jobs in registration order
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := make([]JobInfo, len(s.info))
	copy(info, s.info)
	return info
}
