package trading

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
)

// transactionColumns is the list of columns for the transactions table.
// Column order must match scanTransaction.
const transactionColumns = `id, agent_id, session_id, symbol, action, quantity, price, fee, tax, total, status, reason, realized_pnl, executed_at, created_at`

// Repository records every trade attempt an agent makes. It is the audit
// trail: executed trades, rejected trades, everything.
type Repository struct {
	agentsDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(agentsDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		agentsDB: agentsDB,
		log:      log.With().Str("repo", "transactions").Logger(),
	}
}

// RecordPendingTx inserts a PENDING transaction within tx and returns its id.
// The caller flips it to EXECUTED in the same transaction once the ledger
// accepts the trade.
func (r *Repository) RecordPendingTx(tx *sql.Tx, txn *domain.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions
		(agent_id, session_id, symbol, action, quantity, price, fee, tax, total, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		txn.AgentID,
		txn.SessionID,
		strings.ToUpper(strings.TrimSpace(txn.Symbol)),
		string(txn.Action),
		txn.Quantity,
		txn.Price,
		0.0,
		0.0,
		0.0,
		string(domain.TransactionPending),
		nullString(txn.Reason),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// MarkExecutedTx flips a PENDING transaction to EXECUTED within tx, recording
// the assessed fee, tax, cash effect and realized P&L.
func (r *Repository) MarkExecutedTx(tx *sql.Tx, id int64, fee, tax, total float64, realizedPnL *float64) error {
	query := `
		UPDATE transactions
		SET status = ?, fee = ?, tax = ?, total = ?, realized_pnl = ?, executed_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := tx.Exec(query,
		string(domain.TransactionExecuted),
		fee,
		tax,
		total,
		nullFloat64Ptr(realizedPnL),
		time.Now().UTC().Format(time.RFC3339),
		id,
		string(domain.TransactionPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction executed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %d is not pending", id)
	}

	return nil
}

// RecordFailed inserts a FAILED transaction outside any caller transaction.
// Used after a ledger rejection rolled back the attempt: the failed record
// must survive on its own.
func (r *Repository) RecordFailed(txn *domain.Transaction, reason string) (int64, error) {
	query := `
		INSERT INTO transactions
		(agent_id, session_id, symbol, action, quantity, price, fee, tax, total, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?)
	`

	result, err := r.agentsDB.Exec(query,
		txn.AgentID,
		txn.SessionID,
		strings.ToUpper(strings.TrimSpace(txn.Symbol)),
		string(txn.Action),
		txn.Quantity,
		txn.Price,
		string(domain.TransactionFailed),
		nullString(reason),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert failed transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	r.log.Info().
		Int64("transaction_id", id).
		Str("agent_id", txn.AgentID).
		Str("symbol", txn.Symbol).
		Str("reason", reason).
		Msg("Rejected trade recorded")

	return id, nil
}

// GetByID retrieves a transaction by id. Returns nil if not found.
func (r *Repository) GetByID(id int64) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"

	txn, err := scanTransaction(r.agentsDB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// ListBySession retrieves all transactions recorded for a session in insertion order
func (r *Repository) ListBySession(sessionID string) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE session_id = ? ORDER BY id ASC"

	rows, err := r.agentsDB.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return r.scanTransactions(rows)
}

// List retrieves transactions with optional agent and status filters, newest first
func (r *Repository) List(agentID string, status string, limit int) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE 1=1"
	args := []interface{}{}

	if agentID != "" {
		query += " AND agent_id = ?"
		args = append(args, agentID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.agentsDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	return r.scanTransactions(rows)
}

// SumRealizedPnL totals the realized P&L of all EXECUTED trades for an agent
func (r *Repository) SumRealizedPnL(agentID string) (float64, error) {
	var total sql.NullFloat64
	err := r.agentsDB.QueryRow(
		"SELECT SUM(realized_pnl) FROM transactions WHERE agent_id = ? AND status = ?",
		agentID, string(domain.TransactionExecuted),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	return total.Float64, nil
}

func (r *Repository) scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan transaction row")
			continue
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var txn domain.Transaction
	var action, status, createdAt string
	var reason sql.NullString
	var realizedPnL sql.NullFloat64
	var executedAt sql.NullString

	err := row.Scan(
		&txn.ID,
		&txn.AgentID,
		&txn.SessionID,
		&txn.Symbol,
		&action,
		&txn.Quantity,
		&txn.Price,
		&txn.Fee,
		&txn.Tax,
		&txn.Total,
		&status,
		&reason,
		&realizedPnL,
		&executedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Action = domain.TradeAction(action)
	txn.Status = domain.TransactionStatus(status)
	if reason.Valid {
		txn.Reason = reason.String
	}
	if realizedPnL.Valid {
		v := realizedPnL.Float64
		txn.RealizedPnL = &v
	}
	if executedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339, executedAt.String); err == nil {
			txn.ExecutedAt = &parsed
		}
	}
	txn.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &txn, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64Ptr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
