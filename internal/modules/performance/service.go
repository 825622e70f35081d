package performance

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/clients/marketdata"
	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
	"github.com/aristath/overseer/internal/modules/ledger"
	"github.com/aristath/overseer/internal/modules/trading"
	"github.com/aristath/overseer/pkg/formulas"
)

// riskFreeRate is the annual risk-free rate assumed for the Sharpe ratio
const riskFreeRate = 0.02

// Metrics summarizes an agent's performance history. Derived, never a source
// of truth.
type Metrics struct {
	AgentID              string   `json:"agent_id"`
	Days                 int      `json:"days"`
	TotalValue           float64  `json:"total_value"`
	TotalReturnPct       float64  `json:"total_return_pct"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio,omitempty"`
	MaxDrawdown          *float64 `json:"max_drawdown,omitempty"`
}

// Service computes valuations from agent + transaction state and maintains
// the daily snapshot history.
type Service struct {
	snapshots    *Repository
	agents       *agents.Repository
	ledger       *ledger.Service
	trades       *trading.Repository
	market       marketdata.Provider
	events       *events.Manager
	startingCash float64
	log          zerolog.Logger
}

// NewService creates a new performance service
func NewService(
	snapshots *Repository,
	agentsRepo *agents.Repository,
	ledgerService *ledger.Service,
	tradesRepo *trading.Repository,
	market marketdata.Provider,
	eventManager *events.Manager,
	startingCash float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		snapshots:    snapshots,
		agents:       agentsRepo,
		ledger:       ledgerService,
		trades:       tradesRepo,
		market:       market,
		events:       eventManager,
		startingCash: startingCash,
		log:          log.With().Str("service", "performance").Logger(),
	}
}

// Valuation computes the agent's current worth: cash plus holdings marked at
// current prices. Symbols with no quote fall back to their average cost.
func (s *Service) Valuation(agentID string) (*domain.PerformanceSnapshot, error) {
	agent, err := s.agents.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, &domain.AgentNotFoundError{AgentID: agentID}
	}

	positions, err := s.ledger.Holdings(agentID)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(positions))
	for _, position := range positions {
		if price, err := s.market.PriceOf(position.Symbol); err == nil {
			prices[position.Symbol] = price
		}
	}

	positionsValue := s.ledger.PositionsValue(positions, prices)

	unrealized := 0.0
	for _, position := range positions {
		price, ok := prices[position.Symbol]
		if !ok {
			continue
		}
		unrealized += position.Quantity * (price - position.AverageCost)
	}

	realized, err := s.trades.SumRealizedPnL(agentID)
	if err != nil {
		return nil, err
	}

	totalValue := agent.Cash + positionsValue
	returnPct := 0.0
	if s.startingCash > 0 {
		returnPct = (totalValue - s.startingCash) / s.startingCash * 100
	}

	return &domain.PerformanceSnapshot{
		AgentID:        agentID,
		Date:           time.Now().UTC().Format("2006-01-02"),
		TotalValue:     totalValue,
		Cash:           agent.Cash,
		PositionsValue: positionsValue,
		RealizedPnL:    realized,
		UnrealizedPnL:  unrealized,
		ReturnPct:      returnPct,
	}, nil
}

// Snapshot persists today's valuation for an agent
func (s *Service) Snapshot(agentID string) (*domain.PerformanceSnapshot, error) {
	snapshot, err := s.Valuation(agentID)
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.Upsert(snapshot); err != nil {
		return nil, err
	}

	s.events.Emit(events.SnapshotCreated, "performance", map[string]interface{}{
		"agent_id":    agentID,
		"date":        snapshot.Date,
		"total_value": snapshot.TotalValue,
	})

	return snapshot, nil
}

// SnapshotAll persists today's valuation for every agent. One agent's failure
// does not stop the rest.
func (s *Service) SnapshotAll() (int, error) {
	list, err := s.agents.List()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, agent := range list {
		if _, err := s.Snapshot(agent.ID); err != nil {
			s.log.Error().Err(err).Str("agent_id", agent.ID).Msg("Failed to snapshot agent")
			continue
		}
		count++
	}

	return count, nil
}

// History returns the stored snapshot series for an agent, oldest first
func (s *Service) History(agentID string, limit int) ([]domain.PerformanceSnapshot, error) {
	return s.snapshots.ListByAgent(agentID, limit)
}

// ComputeMetrics derives return, volatility, Sharpe and drawdown figures
// from the snapshot series, with today's live valuation as the last point.
func (s *Service) ComputeMetrics(agentID string) (*Metrics, error) {
	current, err := s.Valuation(agentID)
	if err != nil {
		return nil, err
	}

	history, err := s.snapshots.ListByAgent(agentID, 0)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(history)+1)
	for _, snapshot := range history {
		values = append(values, snapshot.TotalValue)
	}
	if len(history) == 0 || history[len(history)-1].Date != current.Date {
		values = append(values, current.TotalValue)
	} else {
		values[len(values)-1] = current.TotalValue
	}

	returns := formulas.Returns(values)

	return &Metrics{
		AgentID:              agentID,
		Days:                 len(values),
		TotalValue:           current.TotalValue,
		TotalReturnPct:       current.ReturnPct,
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		SharpeRatio:          formulas.SharpeRatio(returns, riskFreeRate, formulas.TradingDaysPerYear),
		MaxDrawdown:          formulas.MaxDrawdown(values),
	}, nil
}
