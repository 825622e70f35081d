package sessions

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
)

// noTransactions satisfies TransactionLister for sessions without trades
type noTransactions struct{}

func (noTransactions) ListBySession(sessionID string) ([]domain.Transaction, error) {
	return nil, nil
}

func setupLifecycle(t *testing.T) (*Lifecycle, *agents.Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, agents.InitSchema(db))
	require.NoError(t, InitSchema(db))

	log := zerolog.Nop()
	agentsRepo := agents.NewRepository(db, log)
	_, err = agentsRepo.Create(&domain.Agent{
		ID:     "a1",
		Name:   "momentum",
		Status: domain.AgentInactive,
		Mode:   domain.ModeTrading,
		Cash:   1000000,
	})
	require.NoError(t, err)

	eventManager := events.NewManager(events.NewBus(log), log)
	lifecycle := NewLifecycle(NewRepository(db, log), agentsRepo, noTransactions{}, eventManager, db, log)

	return lifecycle, agentsRepo, db
}

// backdateSession rewrites a session's start time so reaper cutoffs can be
// tested without sleeping
func backdateSession(t *testing.T, db *sql.DB, sessionID string, age time.Duration) {
	t.Helper()

	_, err := db.Exec(
		"UPDATE sessions SET started_at = ? WHERE id = ?",
		time.Now().UTC().Add(-age).Format(time.RFC3339),
		sessionID,
	)
	require.NoError(t, err)
}

func open(t *testing.T, lifecycle *Lifecycle, db *sql.DB) *domain.Session {
	t.Helper()

	var session *domain.Session
	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		var openErr error
		session, openErr = lifecycle.OpenTx(tx, "a1", domain.ModeTrading)
		return openErr
	})
	require.NoError(t, err)
	return session
}

func TestOpenMarksAgentActive(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)

	session := open(t, lifecycle, db)
	assert.Equal(t, domain.SessionRunning, session.Status)
	assert.False(t, session.StartedAt.IsZero())

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, agent.Status)

	running, err := lifecycle.HasRunning("a1")
	require.NoError(t, err)
	assert.True(t, running)
}

func TestOpenRecordsRequestedMode(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)

	// The agent was created in TRADING; running in OBSERVATION must follow
	// through to the durable agent record
	var session *domain.Session
	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		var openErr error
		session, openErr = lifecycle.OpenTx(tx, "a1", domain.ModeObservation)
		return openErr
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeObservation, session.Mode)

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, agent.Status)
	assert.Equal(t, domain.ModeObservation, agent.Mode)
}

func TestCompleteFinalizesOnce(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)
	session := open(t, lifecycle, db)

	finalized, err := lifecycle.Complete(session.ID, "a1", "two trades applied")
	require.NoError(t, err)
	assert.True(t, finalized)

	got, err := lifecycle.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status)
	assert.Equal(t, "two trades applied", got.Output)
	require.NotNil(t, got.EndedAt)

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentInactive, agent.Status)

	// Terminal sessions are immutable; a racing finalizer loses
	finalized, err = lifecycle.Fail(session.ID, "a1", "late failure", domain.AgentError)
	require.NoError(t, err)
	assert.False(t, finalized)

	got, err = lifecycle.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, got.Status)

	// The losing finalizer did not touch the agent either
	agent, err = agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentInactive, agent.Status)
}

func TestFailSetsRequestedAgentStatus(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)
	session := open(t, lifecycle, db)

	finalized, err := lifecycle.Fail(session.ID, "a1", "disk full", domain.AgentError)
	require.NoError(t, err)
	assert.True(t, finalized)

	got, err := lifecycle.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, got.Status)
	assert.Equal(t, "disk full", got.Error)

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentError, agent.Status)
}

func TestStopAgentStopsAllRunning(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)
	first := open(t, lifecycle, db)
	second := open(t, lifecycle, db)

	stopped, err := lifecycle.StopAgent("a1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, stopped)

	for _, id := range stopped {
		got, err := lifecycle.Get(id)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStopped, got.Status)
	}

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentInactive, agent.Status)

	// Nothing running: successful no-op
	stopped, err = lifecycle.StopAgent("a1")
	require.NoError(t, err)
	assert.Empty(t, stopped)
}

func TestCleanupStuckSweepsOldSessions(t *testing.T) {
	lifecycle, agentsRepo, db := setupLifecycle(t)
	session := open(t, lifecycle, db)

	// Too young to reap
	cleaned, err := lifecycle.CleanupStuck("", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, cleaned)

	backdateSession(t, db, session.ID, time.Hour)
	cleaned, err = lifecycle.CleanupStuck("", 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, cleaned, 1)
	assert.Equal(t, session.ID, cleaned[0].SessionID)
	assert.Equal(t, "a1", cleaned[0].AgentID)

	got, err := lifecycle.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFailed, got.Status)

	agent, err := agentsRepo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentError, agent.Status)
}

func TestCleanupStuckFiltersByAgent(t *testing.T) {
	lifecycle, _, db := setupLifecycle(t)
	session := open(t, lifecycle, db)
	backdateSession(t, db, session.ID, time.Hour)

	cleaned, err := lifecycle.CleanupStuck("someone-else", 0)
	require.NoError(t, err)
	assert.Empty(t, cleaned)

	running, err := lifecycle.HasRunning("a1")
	require.NoError(t, err)
	assert.True(t, running)
}

func TestGetUnknownSession(t *testing.T) {
	lifecycle, _, _ := setupLifecycle(t)

	_, err := lifecycle.Get("missing")
	var notFound *domain.SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListNewestFirst(t *testing.T) {
	lifecycle, _, db := setupLifecycle(t)

	first := open(t, lifecycle, db)
	backdateSession(t, db, first.ID, time.Minute)
	_, err := lifecycle.Complete(first.ID, "a1", "")
	require.NoError(t, err)

	second := open(t, lifecycle, db)

	list, err := lifecycle.List("a1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	limited, err := lifecycle.List("a1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
