package reliability

import (
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/aristath/overseer/internal/database"
)

// BackupJob runs the daily backup on a schedule
type BackupJob struct {
	service *BackupService
}

// NewBackupJob creates the daily backup job
func NewBackupJob(service *BackupService) *BackupJob {
	return &BackupJob{service: service}
}

// Name implements scheduler.Job
func (j *BackupJob) Name() string {
	return "daily_backup"
}

// Run implements scheduler.Job
func (j *BackupJob) Run() error {
	return j.service.DailyBackup()
}

// WALCheckpointJob truncates each database's WAL file so it cannot grow
// without bound between restarts
type WALCheckpointJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWALCheckpointJob creates the hourly WAL checkpoint job
func NewWALCheckpointJob(databases map[string]*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		databases: databases,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name implements scheduler.Job
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run implements scheduler.Job
func (j *WALCheckpointJob) Run() error {
	var errs error
	for name, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
