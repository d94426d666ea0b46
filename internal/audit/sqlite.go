package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kip-platform/kip-treasury/internal/models"
)

// SQLiteMirror persists the audit graph in SQLite.
type SQLiteMirror struct {
	db *sqlx.DB
}

// NewSQLiteMirror opens (or creates) the audit database.
func NewSQLiteMirror(dbPath string) (*SQLiteMirror, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit store: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteMirror{db: db}, nil
}

// Close closes the database connection.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

// RunMigrations applies the schema.
func (m *SQLiteMirror) RunMigrations(migrationSQL string) error {
	_, err := m.db.Exec(migrationSQL)
	return err
}

// MirrorTransaction writes the transaction node, the latest budget snapshot
// and the HAS_TRANSACTION edge in one local transaction, so a partially
// mirrored record never appears in the graph.
func (m *SQLiteMirror) MirrorTransaction(ctx context.Context, budget *models.AgentBudget, tx *models.Transaction) error {
	dbTx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit write: %w", err)
	}
	defer dbTx.Rollback()

	var roiData *string
	if tx.ROIData != nil {
		data, err := json.Marshal(tx.ROIData)
		if err != nil {
			return fmt.Errorf("failed to serialize roi data: %w", err)
		}
		s := string(data)
		roiData = &s
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO budget_nodes (agent_id, current_balance, total_earned, total_spent, daily_limit, per_action_limit, is_frozen, performance_score, total_transactions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			total_earned = excluded.total_earned,
			total_spent = excluded.total_spent,
			daily_limit = excluded.daily_limit,
			per_action_limit = excluded.per_action_limit,
			is_frozen = excluded.is_frozen,
			performance_score = excluded.performance_score,
			total_transactions = excluded.total_transactions,
			updated_at = excluded.updated_at
	`,
		budget.AgentID,
		budget.CurrentBalance,
		budget.TotalEarned,
		budget.TotalSpent,
		budget.DailyLimit,
		budget.PerActionLimit,
		budget.IsFrozen,
		budget.PerformanceScore,
		budget.TotalTransactions,
		budget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mirror budget snapshot: %w", err)
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transaction_nodes (transaction_id, agent_id, amount_cents, transaction_type, description, balance_before, balance_after, roi_data, processed_by, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.TransactionID,
		tx.AgentID,
		tx.AmountCents,
		string(tx.Type),
		tx.Description,
		tx.BalanceBefore,
		tx.BalanceAfter,
		roiData,
		tx.ProcessedBy,
		tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to mirror transaction: %w", err)
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO budget_edges (agent_id, transaction_id, relation, created_at)
		VALUES (?, ?, 'HAS_TRANSACTION', ?)
	`, tx.AgentID, tx.TransactionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mirror transaction edge: %w", err)
	}

	return dbTx.Commit()
}

// RecordEvent appends an operational event. Append-only: no UPDATE or
// DELETE on audit events.
func (m *SQLiteMirror) RecordEvent(ctx context.Context, eventType, agentID, details string) error {
	var agent *string
	if agentID != "" {
		agent = &agentID
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, agent_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), eventType, agent, details, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListTransactionsForAgent returns mirrored transactions for inspection
// tooling. Not used on any live decision path.
func (m *SQLiteMirror) ListTransactionsForAgent(ctx context.Context, agentID string, limit int) ([]*models.Transaction, error) {
	rows, err := m.db.QueryxContext(ctx, `
		SELECT transaction_id, agent_id, amount_cents, transaction_type, description, balance_before, balance_after, roi_data, processed_by, timestamp
		FROM transaction_nodes
		WHERE agent_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mirrored transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var (
			tx      models.Transaction
			txType  string
			roiData *string
		)
		if err := rows.Scan(&tx.TransactionID, &tx.AgentID, &tx.AmountCents, &txType, &tx.Description,
			&tx.BalanceBefore, &tx.BalanceAfter, &roiData, &tx.ProcessedBy, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan mirrored transaction: %w", err)
		}
		tx.Type = models.TransactionType(txType)
		if roiData != nil {
			var roi models.ROIData
			if err := json.Unmarshal([]byte(*roiData), &roi); err == nil {
				tx.ROIData = &roi
			}
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
