package execution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/analysis"
	"github.com/aristath/overseer/internal/clients/marketdata"
	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/engine"
	"github.com/aristath/overseer/internal/events"
	"github.com/aristath/overseer/internal/modules/agents"
	"github.com/aristath/overseer/internal/modules/ledger"
	"github.com/aristath/overseer/internal/modules/sessions"
	"github.com/aristath/overseer/internal/modules/trading"
)

// Result is the outcome of one execution cycle
type Result struct {
	Session  *domain.Session `json:"session"`
	Executed int             `json:"executed"`
	Rejected int             `json:"rejected"`
}

// StopResult reports what a stop request cleaned up. Stopping an idle agent
// yields an empty result, not an error.
type StopResult struct {
	SessionIDs    []string `json:"session_ids"`
	GuardReleased bool     `json:"guard_released"`
}

// Config holds orchestrator tuning
type Config struct {
	Watchlist       []string
	HistoryDays     int
	DefaultMaxSteps int
}

// Orchestrator drives an agent's decision cycle: acquire the guard, open a
// session, invoke the decision engine, apply trade intents through the ledger
// and the transaction recorder as one atomic unit each, close the session,
// release the guard on every exit path.
type Orchestrator struct {
	cfg       Config
	guard     *Guard
	agents    *agents.Repository
	lifecycle *sessions.Lifecycle
	ledger    *ledger.Service
	trades    *trading.Repository
	engine    engine.Engine
	market    marketdata.Provider
	analysis  *analysis.Registry
	events    *events.Manager
	db        *sql.DB
	log       zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // agent id -> in-flight run cancel
}

// NewOrchestrator creates a new execution orchestrator
func NewOrchestrator(
	cfg Config,
	guard *Guard,
	agentsRepo *agents.Repository,
	lifecycle *sessions.Lifecycle,
	ledgerService *ledger.Service,
	tradesRepo *trading.Repository,
	decisionEngine engine.Engine,
	market marketdata.Provider,
	registry *analysis.Registry,
	eventManager *events.Manager,
	db *sql.DB,
	log zerolog.Logger,
) *Orchestrator {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 60
	}
	if cfg.DefaultMaxSteps <= 0 {
		cfg.DefaultMaxSteps = 10
	}

	return &Orchestrator{
		cfg:       cfg,
		guard:     guard,
		agents:    agentsRepo,
		lifecycle: lifecycle,
		ledger:    ledgerService,
		trades:    tradesRepo,
		engine:    decisionEngine,
		market:    market,
		analysis:  registry,
		events:    eventManager,
		db:        db,
		log:       log.With().Str("component", "orchestrator").Logger(),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Execute runs one decision cycle for an agent. Validation happens before any
// state is touched; a busy agent fails fast with AgentBusyError and no
// session row. The guard is released on every exit path.
func (o *Orchestrator) Execute(ctx context.Context, agentID, modeStr string, maxSteps int) (*Result, error) {
	mode, err := domain.ParseAgentMode(modeStr)
	if err != nil {
		return nil, err
	}

	agent, err := o.agents.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, &domain.AgentNotFoundError{AgentID: agentID}
	}
	if agent.Status == domain.AgentSuspended {
		return nil, &domain.AgentSuspendedError{AgentID: agentID}
	}

	if maxSteps <= 0 {
		maxSteps = o.cfg.DefaultMaxSteps
	}

	token, acquired := o.guard.TryAcquire(agentID)
	if !acquired {
		return nil, &domain.AgentBusyError{AgentID: agentID}
	}
	defer o.guard.Release(agentID, token)

	var session *domain.Session
	err = database.WithTransaction(o.db, func(tx *sql.Tx) error {
		var openErr error
		session, openErr = o.lifecycle.OpenTx(tx, agentID, mode)
		return openErr
	})
	if err != nil {
		return nil, &domain.DatabaseError{Op: "open session", Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.registerCancel(agentID, cancel)
	defer o.unregisterCancel(agentID)
	defer cancel()

	o.log.Info().
		Str("agent_id", agentID).
		Str("session_id", session.ID).
		Str("mode", string(mode)).
		Int("max_steps", maxSteps).
		Msg("Execution started")
	o.events.Emit(events.ExecutionStarted, "execution", map[string]interface{}{
		"agent_id":   agentID,
		"session_id": session.ID,
		"mode":       string(mode),
	})

	result, explanation, runErr := o.run(runCtx, session, agent, mode, maxSteps)
	return o.finalize(session, agentID, result, explanation, runErr)
}

// run builds the decision context, invokes the engine and applies the
// returned intents in order. Ledger rejections are contained per intent;
// engine, analysis and persistence failures end the run.
func (o *Orchestrator) run(ctx context.Context, session *domain.Session, agent *domain.Agent, mode domain.AgentMode, maxSteps int) (*Result, string, error) {
	positions, err := o.ledger.Holdings(agent.ID)
	if err != nil {
		return nil, "", err
	}

	symbols := o.universe(positions)
	snapshot := marketdata.TakeSnapshot(o.market, symbols, o.cfg.HistoryDays)

	reports, err := o.analysis.Run(ctx, &analysis.Context{
		Mode:      mode,
		Cash:      agent.Cash,
		Positions: positions,
		Symbols:   symbols,
		Prices:    snapshot.Prices,
		History:   snapshot.History,
	})
	if err != nil {
		return nil, "", err
	}

	proposal, err := o.engine.Propose(ctx, &engine.Context{
		AgentID:    agent.ID,
		Mode:       mode,
		Cash:       agent.Cash,
		Positions:  positions,
		Symbols:    symbols,
		Prices:     snapshot.Prices,
		MarketOpen: snapshot.Open,
		Reports:    reports,
		MaxSteps:   maxSteps,
	})
	if err != nil {
		return nil, "", fmt.Errorf("decision engine failed: %w", err)
	}

	result := &Result{}
	for _, intent := range engine.CapIntents(proposal.Intents, maxSteps) {
		// Cancellation takes effect before the next application step
		if err := ctx.Err(); err != nil {
			return result, proposal.Explanation, err
		}

		applied, err := o.applyIntent(session, intent, snapshot)
		if err != nil {
			return result, proposal.Explanation, err
		}
		if applied {
			result.Executed++
		} else {
			result.Rejected++
		}
	}

	return result, proposal.Explanation, nil
}

// applyIntent runs [insert PENDING, mutate ledger, flip EXECUTED] in one SQL
// transaction. A ledger rejection rolls the whole unit back and the FAILED
// record is inserted on its own, so a rejected intent leaves agent state
// untouched but still shows in the audit trail. Returns false with nil error
// for contained rejections; a non-nil error ends the session.
func (o *Orchestrator) applyIntent(session *domain.Session, intent engine.TradeIntent, snapshot *marketdata.Snapshot) (bool, error) {
	// Normalize once so the recorder and the ledger agree on the symbol
	symbol := strings.ToUpper(strings.TrimSpace(intent.Symbol))

	record := &domain.Transaction{
		AgentID:   session.AgentID,
		SessionID: session.ID,
		Symbol:    symbol,
		Action:    intent.Action,
		Quantity:  intent.Quantity,
		Reason:    intent.Rationale,
	}

	if err := engine.ValidateIntent(intent); err != nil {
		return false, o.recordRejection(session, record, err.Error())
	}

	price, ok := snapshot.Prices[symbol]
	if !ok {
		fetched, err := o.market.PriceOf(symbol)
		if err != nil {
			// An unpriceable instrument rejects the intent, not the session
			return false, o.recordRejection(session, record, fmt.Sprintf("no price available for %s: %v", symbol, err))
		}
		price = fetched
	}
	record.Price = price

	var tradeResult *ledger.TradeResult
	err := database.WithTransaction(o.db, func(tx *sql.Tx) error {
		txnID, err := o.trades.RecordPendingTx(tx, record)
		if err != nil {
			return err
		}

		tradeResult, err = o.ledger.ApplyTradeTx(tx, session.AgentID, intent.Action, symbol, intent.Quantity, price)
		if err != nil {
			return err
		}

		return o.trades.MarkExecutedTx(tx, txnID, tradeResult.Fee, tradeResult.Tax, tradeResult.Total, tradeResult.RealizedPnL)
	})

	if err != nil {
		if domain.IsTradeRejection(err) {
			return false, o.recordRejection(session, record, rejectionReason(err))
		}
		return false, &domain.DatabaseError{Op: "apply trade", Err: err}
	}

	o.events.Emit(events.TradeExecuted, "execution", map[string]interface{}{
		"agent_id":   session.AgentID,
		"session_id": session.ID,
		"symbol":     symbol,
		"action":     string(intent.Action),
		"quantity":   intent.Quantity,
		"price":      price,
		"cash_after": tradeResult.CashAfter,
	})
	return true, nil
}

// recordRejection persists a FAILED transaction for a contained rejection.
// Only the insert itself failing escalates to a session-ending error.
func (o *Orchestrator) recordRejection(session *domain.Session, record *domain.Transaction, reason string) error {
	if _, err := o.trades.RecordFailed(record, reason); err != nil {
		return &domain.DatabaseError{Op: "record rejected trade", Err: err}
	}

	o.events.Emit(events.TradeRejected, "execution", map[string]interface{}{
		"agent_id":   session.AgentID,
		"session_id": session.ID,
		"symbol":     record.Symbol,
		"action":     string(record.Action),
		"reason":     reason,
	})
	return nil
}

// finalize closes the session according to the run outcome. On persistence
// failure during finalization the error is reported but the deferred guard
// release in Execute still runs: an agent is never left permanently locked
// because a database write failed.
func (o *Orchestrator) finalize(session *domain.Session, agentID string, result *Result, explanation string, runErr error) (*Result, error) {
	if result == nil {
		result = &Result{}
	}

	switch {
	case runErr == nil:
		if _, err := o.lifecycle.Complete(session.ID, agentID, explanation); err != nil {
			return nil, err
		}
		o.events.Emit(events.ExecutionCompleted, "execution", map[string]interface{}{
			"agent_id":   agentID,
			"session_id": session.ID,
			"executed":   result.Executed,
			"rejected":   result.Rejected,
		})

	case errors.Is(runErr, context.Canceled):
		// Stop finalized the session already in the usual case; this covers
		// the caller's context dying without a stop request.
		if _, err := o.lifecycle.StopSession(session.ID, agentID, "execution cancelled"); err != nil {
			return nil, err
		}

	default:
		agentStatus := domain.AgentInactive
		var dbErr *domain.DatabaseError
		if errors.As(runErr, &dbErr) {
			// Data-integrity failures park the agent in ERROR for an operator
			agentStatus = domain.AgentError
		}
		if _, err := o.lifecycle.Fail(session.ID, agentID, runErr.Error(), agentStatus); err != nil {
			return nil, err
		}
		o.log.Error().
			Err(runErr).
			Str("agent_id", agentID).
			Str("session_id", session.ID).
			Msg("Execution failed")
		o.events.Emit(events.ExecutionFailed, "execution", map[string]interface{}{
			"agent_id":   agentID,
			"session_id": session.ID,
			"error":      runErr.Error(),
		})
	}

	finalSession, err := o.lifecycle.Get(session.ID)
	if err != nil {
		return nil, err
	}
	result.Session = finalSession
	return result, nil
}

// Stop cancels any in-flight execution for the agent, transitions its RUNNING
// sessions to STOPPED and releases the guard. Idempotent: stopping an idle
// agent is a successful no-op, which matters after a restart when durable
// status can disagree with the in-memory guard.
func (o *Orchestrator) Stop(agentID string) (*StopResult, error) {
	agent, err := o.agents.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, &domain.AgentNotFoundError{AgentID: agentID}
	}

	o.cancelRun(agentID)

	stopped, err := o.lifecycle.StopAgent(agentID)
	released := o.guard.ForceRelease(agentID)

	o.log.Info().
		Str("agent_id", agentID).
		Int("stopped", len(stopped)).
		Bool("guard_released", released).
		Msg("Stop processed")

	return &StopResult{
		SessionIDs:    stopped,
		GuardReleased: released,
	}, err
}

// CleanupStuck force-fails RUNNING sessions older than timeout and releases
// any guard still held for the affected agents. An empty agentID sweeps all
// agents. Idempotent, safe with zero RUNNING sessions.
func (o *Orchestrator) CleanupStuck(agentID string, timeout time.Duration) ([]sessions.CleanedSession, error) {
	cleaned, err := o.lifecycle.CleanupStuck(agentID, timeout)

	for _, c := range cleaned {
		o.cancelRun(c.AgentID)
		o.guard.ForceRelease(c.AgentID)
	}

	return cleaned, err
}

// RecoverOrphans force-fails every session left RUNNING by a previous
// process. Called once at startup before the server accepts work.
func (o *Orchestrator) RecoverOrphans() ([]sessions.CleanedSession, error) {
	cleaned, err := o.CleanupStuck("", 0)
	if len(cleaned) > 0 {
		o.log.Warn().Int("count", len(cleaned)).Msg("Orphaned sessions recovered at startup")
	}
	return cleaned, err
}

// InFlight returns the number of executions currently holding a guard
func (o *Orchestrator) InFlight() int {
	return o.guard.InFlight()
}

// EngineName identifies the active decision engine
func (o *Orchestrator) EngineName() string {
	return o.engine.Name()
}

// universe is the watchlist plus every held symbol, deduplicated, so the
// engine can always see and exit existing positions
func (o *Orchestrator) universe(positions []domain.Position) []string {
	seen := make(map[string]bool, len(o.cfg.Watchlist))
	symbols := make([]string, 0, len(o.cfg.Watchlist)+len(positions))

	for _, symbol := range o.cfg.Watchlist {
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	for _, position := range positions {
		if !seen[position.Symbol] {
			seen[position.Symbol] = true
			symbols = append(symbols, position.Symbol)
		}
	}

	return symbols
}

func (o *Orchestrator) registerCancel(agentID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[agentID] = cancel
}

func (o *Orchestrator) unregisterCancel(agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, agentID)
}

func (o *Orchestrator) cancelRun(agentID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[agentID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func rejectionReason(err error) string {
	var funds *domain.InsufficientFundsError
	if errors.As(err, &funds) {
		return funds.Error()
	}
	var holdings *domain.InsufficientHoldingsError
	if errors.As(err, &holdings) {
		return holdings.Error()
	}
	return err.Error()
}
