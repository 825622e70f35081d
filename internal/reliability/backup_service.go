// Package reliability provides database backup and maintenance services.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/events"
)

// dailyRetention is how many days of daily backups are kept
const dailyRetention = 30

// BackupService produces daily database backups with verification and
// rotation. Backups use VACUUM INTO, which writes a fresh compacted copy
// atomically and without WAL sidecar files.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	events    *events.Manager
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(databases map[string]*database.DB, backupDir string, eventManager *events.Manager, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		events:    eventManager,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DailyBackup backs up every registered database into a dated directory,
// verifies each copy and rotates directories beyond the retention window.
// One database failing does not stop the others.
func (s *BackupService) DailyBackup() error {
	startTime := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	backed := 0
	for name := range s.databases {
		backupPath := filepath.Join(dailyDir, name+".db")

		if err := s.backupDatabase(name, backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Failed to backup database")
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Backup verification failed")
			os.Remove(backupPath)
			continue
		}

		backed++
	}

	if err := s.rotateDailyBackups(); err != nil {
		// Rotation failure doesn't void a successful backup
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
	}

	s.log.Info().
		Int("databases", backed).
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", dailyDir).
		Msg("Daily backup completed")

	s.events.Emit(events.BackupCompleted, "reliability", map[string]interface{}{
		"databases": backed,
		"dir":       dailyDir,
	})

	if backed < len(s.databases) {
		return fmt.Errorf("backed up %d of %d databases", backed, len(s.databases))
	}
	return nil
}

// backupDatabase writes one database to backupPath via VACUUM INTO
func (s *BackupService) backupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not registered", name)
	}

	// VACUUM INTO refuses to overwrite; clear a stale copy from a rerun
	_ = os.Remove(backupPath)

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", name).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// verifyBackup opens the copy and runs an integrity check against it
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// rotateDailyBackups removes dated directories beyond the retention window
func (s *BackupService) rotateDailyBackups() error {
	dailyRoot := filepath.Join(s.backupDir, "daily")

	entries, err := os.ReadDir(dailyRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dates = append(dates, entry.Name())
		}
	}
	if len(dates) <= dailyRetention {
		return nil
	}

	// Directory names are YYYY-MM-DD, so lexical order is date order
	sort.Strings(dates)
	for _, date := range dates[:len(dates)-dailyRetention] {
		path := filepath.Join(dailyRoot, date)
		if err := os.RemoveAll(path); err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to remove old backup")
			continue
		}
		s.log.Debug().Str("date", date).Msg("Old backup rotated out")
	}

	return nil
}
