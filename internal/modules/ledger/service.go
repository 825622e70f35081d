package ledger

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/modules/agents"
)

// residualQty is the threshold below which a position counts as fully closed.
// Quantities are floats, so an exact zero cannot be relied on after arithmetic.
const residualQty = 1e-9

// TradeResult describes the cash and position effect of an applied trade
type TradeResult struct {
	Fee         float64
	Tax         float64
	Total       float64 // cash effect magnitude: cost for buys, proceeds for sells
	CashAfter   float64
	Position    *domain.Position // nil when the trade closed the position
	RealizedPnL *float64         // set on sells only
}

// Service applies trades to agent portfolios. All mutations run inside a
// caller-provided transaction so the ledger write and the transaction record
// commit or roll back as one unit.
type Service struct {
	positions *Repository
	agents    *agents.Repository
	fees      FeePolicy
	log       zerolog.Logger
}

// NewService creates a new ledger service
func NewService(positions *Repository, agentsRepo *agents.Repository, fees FeePolicy, log zerolog.Logger) *Service {
	return &Service{
		positions: positions,
		agents:    agentsRepo,
		fees:      fees,
		log:       log.With().Str("service", "ledger").Logger(),
	}
}

// FeePolicy returns the active fee policy
func (s *Service) FeePolicy() FeePolicy {
	return s.fees
}

// ApplyTradeTx validates and applies one trade within tx.
// Rejections (insufficient funds or holdings) leave the transaction usable
// for rollback by the caller; nothing is written before validation passes.
func (s *Service) ApplyTradeTx(tx *sql.Tx, agentID string, action domain.TradeAction, symbol string, quantity, price float64) (*TradeResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("trade quantity must be positive, got %v", quantity)
	}
	if price <= 0 {
		return nil, fmt.Errorf("trade price must be positive, got %v", price)
	}

	switch action {
	case domain.ActionBuy:
		return s.applyBuy(tx, agentID, symbol, quantity, price)
	case domain.ActionSell:
		return s.applySell(tx, agentID, symbol, quantity, price)
	default:
		return nil, fmt.Errorf("unknown trade action: %s", action)
	}
}

func (s *Service) applyBuy(tx *sql.Tx, agentID, symbol string, quantity, price float64) (*TradeResult, error) {
	fee, tax := s.fees.Assess(domain.ActionBuy, quantity, price)
	gross := quantity * price
	cost := gross + fee + tax

	cash, err := s.agents.GetCashTx(tx, agentID)
	if err != nil {
		return nil, err
	}

	if cash < cost {
		return nil, &domain.InsufficientFundsError{
			AgentID:   agentID,
			Symbol:    symbol,
			Required:  cost,
			Available: cash,
		}
	}

	position, err := s.positions.GetTx(tx, agentID, symbol)
	if err != nil {
		return nil, err
	}

	if position == nil {
		position = &domain.Position{
			AgentID:     agentID,
			Symbol:      symbol,
			Quantity:    quantity,
			AverageCost: price,
		}
	} else {
		newQty := position.Quantity + quantity
		position.AverageCost = (position.Quantity*position.AverageCost + quantity*price) / newQty
		position.Quantity = newQty
	}

	if err := s.positions.UpsertTx(tx, position); err != nil {
		return nil, err
	}

	cashAfter := cash - cost
	if err := s.agents.UpdateCashTx(tx, agentID, cashAfter); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("agent_id", agentID).
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("cost", cost).
		Msg("Buy applied")

	return &TradeResult{
		Fee:       fee,
		Tax:       tax,
		Total:     cost,
		CashAfter: cashAfter,
		Position:  position,
	}, nil
}

func (s *Service) applySell(tx *sql.Tx, agentID, symbol string, quantity, price float64) (*TradeResult, error) {
	position, err := s.positions.GetTx(tx, agentID, symbol)
	if err != nil {
		return nil, err
	}

	held := 0.0
	if position != nil {
		held = position.Quantity
	}
	if position == nil || held < quantity {
		return nil, &domain.InsufficientHoldingsError{
			AgentID:   agentID,
			Symbol:    symbol,
			Requested: quantity,
			Held:      held,
		}
	}

	fee, tax := s.fees.Assess(domain.ActionSell, quantity, price)
	gross := quantity * price
	proceeds := gross - fee - tax
	realized := quantity*(price-position.AverageCost) - fee - tax

	cash, err := s.agents.GetCashTx(tx, agentID)
	if err != nil {
		return nil, err
	}

	remaining := position.Quantity - quantity
	if remaining <= residualQty {
		if err := s.positions.DeleteTx(tx, agentID, symbol); err != nil {
			return nil, err
		}
		position = nil
	} else {
		// A sell never changes the average cost
		position.Quantity = remaining
		if err := s.positions.UpsertTx(tx, position); err != nil {
			return nil, err
		}
	}

	cashAfter := cash + proceeds
	if err := s.agents.UpdateCashTx(tx, agentID, cashAfter); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("agent_id", agentID).
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("realized_pnl", realized).
		Msg("Sell applied")

	return &TradeResult{
		Fee:         fee,
		Tax:         tax,
		Total:       proceeds,
		CashAfter:   cashAfter,
		Position:    position,
		RealizedPnL: &realized,
	}, nil
}

// Holdings returns all positions held by an agent
func (s *Service) Holdings(agentID string) ([]domain.Position, error) {
	return s.positions.ListByAgent(agentID)
}

// PositionsValue marks all holdings against the given prices. Symbols with no
// price contribute at their average cost.
func (s *Service) PositionsValue(positions []domain.Position, prices map[string]float64) float64 {
	total := 0.0
	for _, position := range positions {
		price, ok := prices[position.Symbol]
		if !ok {
			price = position.AverageCost
		}
		total += position.Quantity * price
	}
	return total
}
