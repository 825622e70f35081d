package execution

import (
	"time"

	"github.com/rs/zerolog"
)

// ReaperJob sweeps for stuck sessions on a schedule: RUNNING sessions older
// than the timeout are force-failed and their guards released, so a crashed
// or abandoned cycle can never lock an agent forever.
type ReaperJob struct {
	orchestrator *Orchestrator
	timeout      time.Duration
	log          zerolog.Logger
}

// NewReaperJob creates the stuck-session reaper
func NewReaperJob(orchestrator *Orchestrator, timeout time.Duration, log zerolog.Logger) *ReaperJob {
	return &ReaperJob{
		orchestrator: orchestrator,
		timeout:      timeout,
		log:          log.With().Str("job", "session_reaper").Logger(),
	}
}

// Name implements scheduler.Job
func (j *ReaperJob) Name() string {
	return "session_reaper"
}

// Run implements scheduler.Job
func (j *ReaperJob) Run() error {
	cleaned, err := j.orchestrator.CleanupStuck("", j.timeout)
	if err != nil {
		return err
	}

	if len(cleaned) > 0 {
		j.log.Warn().Int("count", len(cleaned)).Msg("Stuck sessions cleaned")
	}
	return nil
}
