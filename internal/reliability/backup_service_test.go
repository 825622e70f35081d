package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/events"
)

func newBackupFixture(t *testing.T) (*BackupService, string) {
	t.Helper()

	dataDir := t.TempDir()
	backupDir := t.TempDir()

	agentsDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "agents.db"),
		Profile: database.ProfileLedger,
		Name:    "agents",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = agentsDB.Close() })

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = historyDB.Close() })

	_, err = agentsDB.Conn().Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT); INSERT INTO notes (body) VALUES ('hello')")
	require.NoError(t, err)

	log := zerolog.Nop()
	service := NewBackupService(
		map[string]*database.DB{"agents": agentsDB, "history": historyDB},
		backupDir,
		events.NewManager(events.NewBus(log), log),
		log,
	)

	return service, backupDir
}

func TestDailyBackupWritesVerifiedCopies(t *testing.T) {
	service, backupDir := newBackupFixture(t)

	require.NoError(t, service.DailyBackup())

	dailyDir := filepath.Join(backupDir, "daily", time.Now().Format("2006-01-02"))
	for _, name := range []string{"agents.db", "history.db"} {
		info, err := os.Stat(filepath.Join(dailyDir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	// The copy carries the data, and verification accepted it
	require.NoError(t, service.verifyBackup(filepath.Join(dailyDir, "agents.db")))

	// A rerun on the same day overwrites in place
	require.NoError(t, service.DailyBackup())
}

func TestDailyBackupReportsPartialFailure(t *testing.T) {
	service, _ := newBackupFixture(t)

	// A registered database whose connection is gone must not stop the rest
	badDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "bad.db"),
		Profile: database.ProfileStandard,
		Name:    "bad",
	})
	require.NoError(t, err)
	require.NoError(t, badDB.Close())
	service.databases["bad"] = badDB

	err = service.DailyBackup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3")
}

func TestVerifyBackupRejectsGarbage(t *testing.T) {
	service, _ := newBackupFixture(t)

	garbage := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte("not a sqlite file at all, padded to look like one"), 0644))

	assert.Error(t, service.verifyBackup(garbage))
}

func TestRotateDailyBackups(t *testing.T) {
	service, backupDir := newBackupFixture(t)

	// Seed more dated directories than the retention window keeps
	dailyRoot := filepath.Join(backupDir, "daily")
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < dailyRetention+3; i++ {
		require.NoError(t, os.MkdirAll(filepath.Join(dailyRoot, day.Format("2006-01-02")), 0755))
		day = day.AddDate(0, 0, 1)
	}

	require.NoError(t, service.rotateDailyBackups())

	entries, err := os.ReadDir(dailyRoot)
	require.NoError(t, err)
	assert.Len(t, entries, dailyRetention)

	// The oldest dates are the ones rotated out
	_, err = os.Stat(filepath.Join(dailyRoot, "2026-01-01"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dailyRoot, day.AddDate(0, 0, -1).Format("2006-01-02")))
	assert.NoError(t, err)
}

func TestWALCheckpointJob(t *testing.T) {
	service, _ := newBackupFixture(t)

	job := NewWALCheckpointJob(service.databases, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
}
