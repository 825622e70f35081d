package domain

import (
	"errors"
	"fmt"
	"time"
)

// AgentBusyError is returned when an execution is requested for an agent
// whose guard is already held. The caller retries later; no state changed.
type AgentBusyError struct {
	AgentID string
}

func (e *AgentBusyError) Error() string {
	return fmt.Sprintf("agent %s is busy: an execution is already in progress", e.AgentID)
}

// AgentNotFoundError is returned when the referenced agent does not exist.
type AgentNotFoundError struct {
	AgentID string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.AgentID)
}

// AgentSuspendedError is returned when an execution is requested for a
// suspended agent.
type AgentSuspendedError struct {
	AgentID string
}

func (e *AgentSuspendedError) Error() string {
	return fmt.Sprintf("agent %s is suspended", e.AgentID)
}

// InvalidModeError is returned when a caller supplies an unrecognized mode.
// Rejected before any state is touched.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid mode: %q (expected OBSERVATION, TRADING or REBALANCING)", e.Mode)
}

// InsufficientFundsError is returned by the ledger when a buy's total cost
// exceeds available cash. The offending intent is recorded FAILED; the
// session continues.
type InsufficientFundsError struct {
	AgentID   string
	Symbol    string
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: need %.2f, have %.2f", e.Symbol, e.Required, e.Available)
}

// InsufficientHoldingsError is returned by the ledger when a sell quantity
// exceeds the held quantity.
type InsufficientHoldingsError struct {
	AgentID   string
	Symbol    string
	Requested float64
	Held      float64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings of %s: selling %.4f, holding %.4f", e.Symbol, e.Requested, e.Held)
}

// SessionNotFoundError is returned when the referenced session does not exist.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// DatabaseError wraps a persistence failure with the operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// StuckSessionError marks a RUNNING session that exceeded its allowed
// duration. It drives the reaper; its message is what gets written into the
// session's error payload.
type StuckSessionError struct {
	SessionID string
	Age       time.Duration
	Timeout   time.Duration
}

func (e *StuckSessionError) Error() string {
	return fmt.Sprintf("stuck session %s: running for %s, timeout %s", e.SessionID, e.Age.Round(time.Second), e.Timeout)
}

// IsTradeRejection reports whether err is a per-trade ledger rejection, which
// is contained within the session rather than aborting it.
func IsTradeRejection(err error) bool {
	var funds *InsufficientFundsError
	var holdings *InsufficientHoldingsError
	return errors.As(err, &funds) || errors.As(err, &holdings)
}
