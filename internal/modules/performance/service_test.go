package performance

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
	"github.com/aristath/overseer/internal/modules/ledger"
	"github.com/aristath/overseer/internal/modules/trading"
)

type stubMarket struct {
	prices map[string]float64
}

func (m *stubMarket) Name() string { return "stub" }

func (m *stubMarket) PriceOf(symbol string) (float64, error) {
	price, ok := m.prices[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return price, nil
}

func (m *stubMarket) History(symbol string, days int) ([]float64, error) {
	return nil, errors.New("no history")
}

func (m *stubMarket) IsMarketOpen() bool { return true }

type perfHarness struct {
	service *Service
	agents  *agents.Repository
	trades  *trading.Repository
	ledger  *ledger.Repository
	market  *stubMarket
	db      *sql.DB
}

func setupPerformance(t *testing.T, cash float64) *perfHarness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, agents.InitSchema(db))
	require.NoError(t, ledger.InitSchema(db))
	require.NoError(t, trading.InitSchema(db))
	require.NoError(t, InitSchema(db))

	log := zerolog.Nop()
	agentsRepo := agents.NewRepository(db, log)
	_, err = agentsRepo.Create(&domain.Agent{
		ID:     "a1",
		Name:   "value",
		Status: domain.AgentInactive,
		Mode:   domain.ModeTrading,
		Cash:   cash,
	})
	require.NoError(t, err)

	positionsRepo := ledger.NewRepository(db, log)
	ledgerService := ledger.NewService(positionsRepo, agentsRepo, ledger.RateFeePolicy{}, log)
	tradesRepo := trading.NewRepository(db, log)
	market := &stubMarket{prices: map[string]float64{}}
	eventManager := events.NewManager(events.NewBus(log), log)

	service := NewService(
		NewRepository(db, log),
		agentsRepo,
		ledgerService,
		tradesRepo,
		market,
		eventManager,
		100000,
		log,
	)

	return &perfHarness{
		service: service,
		agents:  agentsRepo,
		trades:  tradesRepo,
		ledger:  positionsRepo,
		market:  market,
		db:      db,
	}
}

func (h *perfHarness) hold(t *testing.T, symbol string, quantity, avgCost float64) {
	t.Helper()

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		return h.ledger.UpsertTx(tx, &domain.Position{
			AgentID:     "a1",
			Symbol:      symbol,
			Quantity:    quantity,
			AverageCost: avgCost,
		})
	})
	require.NoError(t, err)
}

func (h *perfHarness) recordRealized(t *testing.T, pnl float64) {
	t.Helper()

	err := database.WithTransaction(h.db, func(tx *sql.Tx) error {
		id, err := h.trades.RecordPendingTx(tx, &domain.Transaction{
			AgentID:  "a1",
			Symbol:   "AAPL",
			Action:   domain.ActionSell,
			Quantity: 1,
			Price:    100,
		})
		if err != nil {
			return err
		}
		return h.trades.MarkExecutedTx(tx, id, 0, 0, 100, &pnl)
	})
	require.NoError(t, err)
}

func TestValuationMarksAtMarket(t *testing.T) {
	h := setupPerformance(t, 40000)
	h.hold(t, "AAPL", 100, 500)
	h.market.prices["AAPL"] = 520
	h.recordRealized(t, 1500)

	snapshot, err := h.service.Valuation("a1")
	require.NoError(t, err)

	assert.Equal(t, 40000.0, snapshot.Cash)
	assert.Equal(t, 52000.0, snapshot.PositionsValue)
	assert.Equal(t, 92000.0, snapshot.TotalValue)
	assert.Equal(t, 2000.0, snapshot.UnrealizedPnL)
	assert.Equal(t, 1500.0, snapshot.RealizedPnL)
	assert.InDelta(t, -8.0, snapshot.ReturnPct, 1e-9)
}

func TestValuationFallsBackToAverageCost(t *testing.T) {
	h := setupPerformance(t, 40000)
	h.hold(t, "AAPL", 100, 500)
	// No quote available: holdings marked at average cost, no unrealized PnL

	snapshot, err := h.service.Valuation("a1")
	require.NoError(t, err)

	assert.Equal(t, 50000.0, snapshot.PositionsValue)
	assert.Equal(t, 90000.0, snapshot.TotalValue)
	assert.Equal(t, 0.0, snapshot.UnrealizedPnL)
}

func TestValuationUnknownAgent(t *testing.T) {
	h := setupPerformance(t, 40000)

	_, err := h.service.Valuation("nobody")
	var notFound *domain.AgentNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSnapshotUpsertsOnePerDay(t *testing.T) {
	h := setupPerformance(t, 40000)
	h.hold(t, "AAPL", 100, 500)
	h.market.prices["AAPL"] = 500

	first, err := h.service.Snapshot("a1")
	require.NoError(t, err)
	assert.Equal(t, 90000.0, first.TotalValue)

	// Same day, new price: the day's row is replaced, not appended
	h.market.prices["AAPL"] = 510
	second, err := h.service.Snapshot("a1")
	require.NoError(t, err)
	assert.Equal(t, 91000.0, second.TotalValue)

	history, err := h.service.History("a1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 91000.0, history[0].TotalValue)
}

func TestSnapshotAllCoversEveryAgent(t *testing.T) {
	h := setupPerformance(t, 40000)
	_, err := h.agents.Create(&domain.Agent{
		ID:     "a2",
		Name:   "growth",
		Status: domain.AgentInactive,
		Mode:   domain.ModeObservation,
		Cash:   100000,
	})
	require.NoError(t, err)

	count, err := h.service.SnapshotAll()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	job := NewSnapshotJob(h.service, zerolog.Nop())
	assert.Equal(t, "daily_snapshot", job.Name())
	assert.NoError(t, job.Run())
}

func TestComputeMetricsFromHistory(t *testing.T) {
	h := setupPerformance(t, 104000)

	seed := []struct {
		date  string
		value float64
	}{
		{"2026-01-05", 100000},
		{"2026-01-06", 102000},
		{"2026-01-07", 99000},
		{"2026-01-08", 103000},
	}
	repo := NewRepository(h.db, zerolog.Nop())
	for _, day := range seed {
		require.NoError(t, repo.Upsert(&domain.PerformanceSnapshot{
			AgentID:    "a1",
			Date:       day.date,
			TotalValue: day.value,
			Cash:       day.value,
		}))
	}

	metrics, err := h.service.ComputeMetrics("a1")
	require.NoError(t, err)

	// Four stored days plus today's live valuation
	assert.Equal(t, 5, metrics.Days)
	assert.Equal(t, 104000.0, metrics.TotalValue)
	assert.InDelta(t, 4.0, metrics.TotalReturnPct, 1e-9)
	assert.Greater(t, metrics.AnnualizedVolatility, 0.0)
	require.NotNil(t, metrics.MaxDrawdown)
	assert.InDelta(t, (102000.0-99000.0)/102000.0, *metrics.MaxDrawdown, 1e-9)
	assert.NotNil(t, metrics.SharpeRatio)
}
