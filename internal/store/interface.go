package store

import (
	"context"

	"github.com/kip-platform/kip-treasury/internal/models"
)

// BudgetStore defines budget record access against the fast store.
// GetBudget returns (nil, nil) when no record exists; corrupt records are
// treated the same way after a logged warning.
type BudgetStore interface {
	SaveBudget(ctx context.Context, budget *models.AgentBudget) error
	GetBudget(ctx context.Context, agentID string) (*models.AgentBudget, error)
	ScanBudgets(ctx context.Context) ([]*models.AgentBudget, error)
}

// LedgerStore defines the bounded per-agent transaction history.
// PushTransaction prepends (newest first), trims to the configured cap and
// refreshes the retention expiry on the whole list.
type LedgerStore interface {
	PushTransaction(ctx context.Context, agentID string, tx *models.Transaction) error
	ListTransactions(ctx context.Context, agentID string, offset, limit int64) ([]*models.Transaction, error)
	AllTransactions(ctx context.Context, agentID string) ([]*models.Transaction, error)
}
