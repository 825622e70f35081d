// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// AgentStatus represents the lifecycle status of an agent
type AgentStatus string

const (
	AgentActive    AgentStatus = "ACTIVE"
	AgentInactive  AgentStatus = "INACTIVE"
	AgentError     AgentStatus = "ERROR"
	AgentSuspended AgentStatus = "SUSPENDED"
)

// ParseAgentStatus normalizes a status string to its canonical form.
// Input is accepted case-insensitively; only canonical values are stored.
func ParseAgentStatus(s string) (AgentStatus, error) {
	switch AgentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case AgentActive:
		return AgentActive, nil
	case AgentInactive:
		return AgentInactive, nil
	case AgentError:
		return AgentError, nil
	case AgentSuspended:
		return AgentSuspended, nil
	default:
		return "", fmt.Errorf("unknown agent status: %q", s)
	}
}

// AgentMode represents the decision mode an execution cycle runs in
type AgentMode string

const (
	ModeObservation AgentMode = "OBSERVATION"
	ModeTrading     AgentMode = "TRADING"
	ModeRebalancing AgentMode = "REBALANCING"
)

// ParseAgentMode normalizes a mode string to its canonical form.
// Unknown modes are rejected before any state is touched.
func ParseAgentMode(s string) (AgentMode, error) {
	switch AgentMode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeObservation:
		return ModeObservation, nil
	case ModeTrading:
		return ModeTrading, nil
	case ModeRebalancing:
		return ModeRebalancing, nil
	default:
		return "", &InvalidModeError{Mode: s}
	}
}

// SessionStatus represents the lifecycle status of an execution session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "RUNNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionStopped   SessionStatus = "STOPPED"
)

// Terminal reports whether the status is final. Terminal sessions are
// immutable audit records.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionStopped
}

// ParseSessionStatus normalizes a session status string to its canonical form.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch SessionStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionRunning:
		return SessionRunning, nil
	case SessionCompleted:
		return SessionCompleted, nil
	case SessionFailed:
		return SessionFailed, nil
	case SessionStopped:
		return SessionStopped, nil
	default:
		return "", fmt.Errorf("unknown session status: %q", s)
	}
}

// TradeAction represents the direction of a trade
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// ParseTradeAction normalizes a trade action string to its canonical form.
func ParseTradeAction(s string) (TradeAction, error) {
	switch TradeAction(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	default:
		return "", fmt.Errorf("unknown trade action: %q", s)
	}
}

// TransactionStatus represents the lifecycle status of a transaction record
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionExecuted  TransactionStatus = "EXECUTED"
	TransactionFailed    TransactionStatus = "FAILED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// Agent represents one autonomous trading agent and its ledger head state.
// Status ACTIVE holds exactly while a session for the agent is RUNNING; the
// durable status is advisory for observers, never a lock.
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    AgentStatus `json:"status"`
	Mode      AgentMode   `json:"mode"`
	Cash      float64     `json:"cash"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Position represents an agent's holding in one instrument.
// AverageCost is the weighted average purchase price, updated only on buys.
type Position struct {
	ID          int64     `json:"id"`
	AgentID     string    `json:"agent_id"`
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"quantity"`
	AverageCost float64   `json:"average_cost"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session represents one execution attempt of an agent's decision cycle.
type Session struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agent_id"`
	Mode      AgentMode     `json:"mode"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	// TransactionIDs is derived from the transaction log on read.
	TransactionIDs []int64 `json:"transaction_ids,omitempty"`
}

// Transaction is one record in the append-only trade log. Total is the cash
// effect magnitude: qty×price+fee for buys, qty×price−fee−tax for sells.
type Transaction struct {
	ID          int64             `json:"id"`
	AgentID     string            `json:"agent_id"`
	SessionID   string            `json:"session_id"`
	Symbol      string            `json:"symbol"`
	Action      TradeAction       `json:"action"`
	Quantity    float64           `json:"quantity"`
	Price       float64           `json:"price"`
	Fee         float64           `json:"fee"`
	Tax         float64           `json:"tax"`
	Total       float64           `json:"total"`
	Status      TransactionStatus `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	RealizedPnL *float64          `json:"realized_pnl,omitempty"`
	ExecutedAt  *time.Time        `json:"executed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PerformanceSnapshot is a derived valuation record, not a source of truth.
type PerformanceSnapshot struct {
	ID             int64     `json:"id"`
	AgentID        string    `json:"agent_id"`
	Date           string    `json:"date"` // YYYY-MM-DD
	TotalValue     float64   `json:"total_value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`
	RealizedPnL    float64   `json:"realized_pnl"`
	UnrealizedPnL  float64   `json:"unrealized_pnl"`
	ReturnPct      float64   `json:"return_pct"`
	CreatedAt      time.Time `json:"created_at"`
}
