package treasury

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kip-platform/kip-treasury/internal/audit"
	"github.com/kip-platform/kip-treasury/internal/models"
	"github.com/kip-platform/kip-treasury/internal/store"
)

// processedBy identifies the system writer on ledger records.
const processedBy = "kip-treasury"

// TransactionProcessor appends immutable ledger records and keeps them
// in step with budget state. The budget mutation always happens before the
// ledger append, and the ledger append before the audit mirror, so money
// state is never worse than what is externally observable.
type TransactionProcessor struct {
	budgets *BudgetManager
	ledger  store.LedgerStore
	mirror  audit.Mirror
	log     *slog.Logger
}

// NewTransactionProcessor creates a processor over the given stores.
func NewTransactionProcessor(budgets *BudgetManager, ledger store.LedgerStore, mirror audit.Mirror, log *slog.Logger) *TransactionProcessor {
	return &TransactionProcessor{
		budgets: budgets,
		ledger:  ledger,
		mirror:  mirror,
		log:     log,
	}
}

// RecordTransaction applies a signed amount to the agent's budget and
// appends the ledger record. Returns (nil, nil) for zero amounts (a 0-cent
// debit or credit never enters the ledger) and for unknown agents (the
// ledger must never reference a budget update that did not happen).
// The audit mirror write is best-effort: failures are logged, never
// propagated, and never roll back the committed budget and ledger state.
func (p *TransactionProcessor) RecordTransaction(ctx context.Context, agentID string, amountCents int64, description string, txType models.TransactionType, roiData *models.ROIData) (*models.Transaction, error) {
	if amountCents == 0 {
		p.log.Warn("Rejected zero-amount transaction", "agent_id", agentID, "description", description)
		return nil, nil
	}

	budget, balanceBefore, err := p.budgets.UpdateBudgetBalance(ctx, agentID, amountCents)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		p.log.Warn("Transaction aborted, no budget for agent", "agent_id", agentID)
		return nil, nil
	}

	tx := &models.Transaction{
		TransactionID: uuid.New().String(),
		AgentID:       budget.AgentID,
		AmountCents:   amountCents,
		Type:          txType,
		Description:   description,
		BalanceBefore: balanceBefore,
		BalanceAfter:  budget.CurrentBalance,
		ROIData:       roiData,
		Timestamp:     time.Now().UTC(),
		ProcessedBy:   processedBy,
	}

	if err := p.ledger.PushTransaction(ctx, budget.AgentID, tx); err != nil {
		// Budget is already committed; losing the ledger entry loses
		// auditability, not money. Log and keep going.
		p.log.Error("Failed to append ledger entry", "agent_id", budget.AgentID, "transaction_id", tx.TransactionID, "error", err)
	}

	if err := p.mirror.MirrorTransaction(ctx, budget, tx); err != nil {
		p.log.Warn("Audit mirror write failed", "agent_id", budget.AgentID, "transaction_id", tx.TransactionID, "error", err)
	}

	p.log.Info("Transaction recorded",
		"agent_id", budget.AgentID,
		"transaction_id", tx.TransactionID,
		"amount_cents", amountCents,
		"type", string(txType),
		"balance_after", tx.BalanceAfter,
	)
	return tx, nil
}

// GetTransactionHistory returns a page of the agent's ledger, newest first.
func (p *TransactionProcessor) GetTransactionHistory(ctx context.Context, agentID string, limit, offset int64) ([]*models.Transaction, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return p.ledger.ListTransactions(ctx, id, offset, limit)
}

// CalculateAgentTotals recomputes revenue/expense totals from the agent's
// retained history on every call. No caching.
func (p *TransactionProcessor) CalculateAgentTotals(ctx context.Context, agentID string) (*models.AgentTotals, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}

	txs, err := p.ledger.AllTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	totals := &models.AgentTotals{AgentID: id, TransactionCount: len(txs)}
	for _, tx := range txs {
		if tx.AmountCents > 0 {
			totals.TotalRevenue += tx.AmountCents
		} else {
			totals.TotalExpenses += -tx.AmountCents
		}
	}
	totals.NetEarnings = totals.TotalRevenue - totals.TotalExpenses
	if len(txs) > 0 {
		totals.AverageTransaction = (totals.TotalRevenue + totals.TotalExpenses) / int64(len(txs))
	}
	return totals, nil
}
