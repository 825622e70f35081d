package performance

import (
	"github.com/rs/zerolog"
)

// SnapshotJob persists a daily valuation snapshot for every agent
type SnapshotJob struct {
	service *Service
	log     zerolog.Logger
}

// NewSnapshotJob creates the daily snapshot job
func NewSnapshotJob(service *Service, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		service: service,
		log:     log.With().Str("job", "daily_snapshot").Logger(),
	}
}

// Name implements scheduler.Job
func (j *SnapshotJob) Name() string {
	return "daily_snapshot"
}

// Run implements scheduler.Job
func (j *SnapshotJob) Run() error {
	count, err := j.service.SnapshotAll()
	if err != nil {
		return err
	}

	j.log.Info().Int("agents", count).Msg("Daily snapshots recorded")
	return nil
}
