// Package audit implements the durable audit mirror: a best-effort,
// append-oriented copy of every transaction and budget snapshot, written
// for compliance and never read back into live decision-making.
package audit

import (
	"context"

	"github.com/kip-platform/kip-treasury/internal/models"
)

// Mirror receives best-effort audit writes. Callers log and swallow every
// error from these methods; a mirror failure must never roll back or block
// the fast-store path.
type Mirror interface {
	// MirrorTransaction records a transaction node, refreshes the owning
	// budget snapshot and links them with a HAS_TRANSACTION edge.
	MirrorTransaction(ctx context.Context, budget *models.AgentBudget, tx *models.Transaction) error
	// RecordEvent appends an operational event (freeze, unfreeze,
	// limit adjustment) outside the cash ledger.
	RecordEvent(ctx context.Context, eventType, agentID, details string) error
	Close() error
}

// NoOpMirror is installed when the durable store is unavailable. The
// treasury keeps operating with audit degraded.
type NoOpMirror struct{}

func (NoOpMirror) MirrorTransaction(context.Context, *models.AgentBudget, *models.Transaction) error {
	return nil
}

func (NoOpMirror) RecordEvent(context.Context, string, string, string) error { return nil }

func (NoOpMirror) Close() error { return nil }
