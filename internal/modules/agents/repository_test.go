package agents

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/overseer/internal/domain"
)

// setupTestDB creates an in-memory SQLite database with the agents schema
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, InitSchema(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testAgent(id, name string) *domain.Agent {
	return &domain.Agent{
		ID:     id,
		Name:   name,
		Status: domain.AgentInactive,
		Mode:   domain.ModeObservation,
		Cash:   1000000,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	created, err := repo.Create(testAgent("a1", "momentum"))
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID("a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "momentum", got.Name)
	assert.Equal(t, domain.AgentInactive, got.Status)
	assert.Equal(t, domain.ModeObservation, got.Mode)
	assert.Equal(t, 1000000.0, got.Cash)
}

func TestRepositoryGetMissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	got, err := repo.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Create(testAgent("a1", "first"))
	require.NoError(t, err)
	_, err = repo.Create(testAgent("a2", "second"))
	require.NoError(t, err)

	list, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRepositoryUpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Create(testAgent("a1", "momentum"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus("a1", domain.AgentActive))

	got, err := repo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, got.Status)

	err = repo.UpdateStatus("missing", domain.AgentActive)
	var notFound *domain.AgentNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRepositoryCashWithinTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Create(testAgent("a1", "momentum"))
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)

	cash, err := repo.GetCashTx(tx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1000000.0, cash)

	require.NoError(t, repo.UpdateCashTx(tx, "a1", 498615.0))
	require.NoError(t, tx.Commit())

	got, err := repo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, 498615.0, got.Cash)
}

func TestRepositoryCashRollsBackWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Create(testAgent("a1", "momentum"))
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateCashTx(tx, "a1", 0))
	require.NoError(t, tx.Rollback())

	got, err := repo.GetByID("a1")
	require.NoError(t, err)
	assert.Equal(t, 1000000.0, got.Cash)
}

func TestRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Create(testAgent("a1", "momentum"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete("a1"))

	got, err := repo.GetByID("a1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Delete("a1")
	var notFound *domain.AgentNotFoundError
	assert.True(t, errors.As(err, &notFound))
}
