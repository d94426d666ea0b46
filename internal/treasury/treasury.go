// Package treasury implements the KIP Treasury: per-agent spending budgets,
// multi-tier spending limits, an auditable transaction ledger, ROI-based
// performance adjustment and the emergency circuit breaker.
package treasury

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kip-platform/kip-treasury/internal/audit"
	"github.com/kip-platform/kip-treasury/internal/config"
	"github.com/kip-platform/kip-treasury/internal/models"
	"github.com/kip-platform/kip-treasury/internal/store"
	"github.com/kip-platform/kip-treasury/migrations"
)

// Treasury is the coordinator: it owns both store connections, composes the
// manager/processor/analyzer and carries the process-wide emergency freeze
// flag. Construct with New, release with Close.
type Treasury struct {
	budgets   *BudgetManager
	processor *TransactionProcessor
	analyzer  *EconomicAnalyzer

	fastStore *store.RedisStore
	mirror    audit.Mirror

	seedCents       int64
	emergencyFreeze atomic.Bool
	log             *slog.Logger
}

// New connects both stores and wires the components. A Redis connection
// failure is fatal. An audit store failure is degraded-but-non-fatal: the
// treasury runs with a no-op mirror and audit disabled.
func New(cfg *config.Config, log *slog.Logger) (*Treasury, error) {
	fastStore, err := store.NewRedisStore(&store.RedisConfig{
		Address:       cfg.RedisAddress,
		Username:      cfg.RedisUsername,
		Password:      cfg.RedisPassword,
		DB:            cfg.RedisDB,
		KeyPrefix:     cfg.RedisKeyPrefix,
		HistoryCap:    int64(cfg.HistoryMaxEntries),
		HistoryExpiry: time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour,
	}, log)
	if err != nil {
		return nil, err
	}

	var mirror audit.Mirror = audit.NoOpMirror{}
	if cfg.AuditDBPath != "" {
		sqliteMirror, err := audit.NewSQLiteMirror(cfg.AuditDBPath)
		if err != nil {
			log.Warn("Audit store unavailable, continuing with audit degraded", "path", cfg.AuditDBPath, "error", err)
		} else if err := runAuditMigrations(sqliteMirror); err != nil {
			log.Warn("Audit store migration failed, continuing with audit degraded", "error", err)
			sqliteMirror.Close()
		} else {
			mirror = sqliteMirror
		}
	}

	return newFromParts(cfg, fastStore, mirror, log), nil
}

func runAuditMigrations(mirror *audit.SQLiteMirror) error {
	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		return err
	}
	return mirror.RunMigrations(string(migrationSQL))
}

func newFromParts(cfg *config.Config, fastStore *store.RedisStore, mirror audit.Mirror, log *slog.Logger) *Treasury {
	budgets := NewBudgetManager(fastStore, BudgetDefaults{
		SeedCents:        cfg.DefaultSeedCents,
		DailyLimitCents:  cfg.DefaultDailyLimitCents,
		ActionLimitCents: cfg.DefaultActionLimitCents,
		CacheTTL:         time.Duration(cfg.BudgetCacheTTLSec) * time.Second,
	}, log)

	processor := NewTransactionProcessor(budgets, fastStore, mirror, log)
	analyzer := NewEconomicAnalyzer(budgets, fastStore, fastStore, mirror, log)

	return &Treasury{
		budgets:   budgets,
		processor: processor,
		analyzer:  analyzer,
		fastStore: fastStore,
		mirror:    mirror,
		seedCents: cfg.DefaultSeedCents,
		log:       log,
	}
}

// Close releases both store connections.
func (t *Treasury) Close() error {
	if err := t.mirror.Close(); err != nil {
		t.log.Warn("Error closing audit mirror", "error", err)
	}
	return t.fastStore.Close()
}

// InitializeAgentBudget provisions an agent and, on first creation, records
// the seed as a SEED_FUNDING transaction, so the seed is in the ledger and
// the balance invariant holds from the first record. Idempotent.
func (t *Treasury) InitializeAgentBudget(ctx context.Context, agentID string, opts SeedOptions) (*models.AgentBudget, error) {
	budget, created, err := t.budgets.InitializeAgentBudget(ctx, agentID, opts)
	if err != nil {
		return nil, err
	}
	if !created {
		return budget, nil
	}

	seed := opts.SeedCents
	if seed <= 0 {
		seed = t.seedCents
	}
	if seed > 0 {
		tx, err := t.processor.RecordTransaction(ctx, budget.AgentID, seed, "Initial seed funding", models.TypeSeedFunding, nil)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			return t.budgets.GetBudget(ctx, budget.AgentID)
		}
	}
	return budget, nil
}

// GetBudget returns the agent's budget or (nil, nil) for unknown agents.
func (t *Treasury) GetBudget(ctx context.Context, agentID string) (*models.AgentBudget, error) {
	return t.budgets.GetBudget(ctx, agentID)
}

// CheckFunds authorizes a prospective spend. The emergency freeze has
// highest precedence: while active, every check is rejected before any
// per-agent state is consulted.
func (t *Treasury) CheckFunds(ctx context.Context, agentID string, amountCents int64, description string) (*models.CheckResult, error) {
	return t.budgets.CheckFunds(ctx, agentID, amountCents, description, t.emergencyFreeze.Load())
}

// RecordTransaction appends an economic event to the ledger.
func (t *Treasury) RecordTransaction(ctx context.Context, agentID string, amountCents int64, description string, txType models.TransactionType, roiData *models.ROIData) (*models.Transaction, error) {
	return t.processor.RecordTransaction(ctx, agentID, amountCents, description, txType, roiData)
}

// GetTransactionHistory returns a page of the agent's ledger, newest first.
func (t *Treasury) GetTransactionHistory(ctx context.Context, agentID string, limit, offset int64) ([]*models.Transaction, error) {
	return t.processor.GetTransactionHistory(ctx, agentID, limit, offset)
}

// CalculateAgentTotals derives revenue/expense totals from history.
func (t *Treasury) CalculateAgentTotals(ctx context.Context, agentID string) (*models.AgentTotals, error) {
	return t.processor.CalculateAgentTotals(ctx, agentID)
}

// CalculateROIAdjustment runs a performance review for one agent.
func (t *Treasury) CalculateROIAdjustment(ctx context.Context, agentID string, periodDays int) (*models.ROIAdjustment, error) {
	return t.analyzer.CalculateROIAdjustment(ctx, agentID, periodDays)
}

// GetEconomicAnalytics derives the system-wide snapshot.
func (t *Treasury) GetEconomicAnalytics(ctx context.Context) (*models.EconomicAnalytics, error) {
	return t.analyzer.GetEconomicAnalytics(ctx)
}

// EmergencyFreezeActive reports the state of the global circuit breaker.
func (t *Treasury) EmergencyFreezeActive() bool {
	return t.emergencyFreeze.Load()
}

// EmergencyFreezeAll halts all spending: it raises the process-wide flag
// and individually freezes every existing budget. Double-enforced: the
// global flag covers agents created after the freeze, the per-budget flag
// survives even if the global flag is cleared without an explicit unfreeze.
// Returns the number of budgets newly frozen.
func (t *Treasury) EmergencyFreezeAll(ctx context.Context, reason string) (int, error) {
	t.emergencyFreeze.Store(true)
	t.log.Warn("EMERGENCY FREEZE activated", "reason", reason)

	budgets, err := t.fastStore.ScanBudgets(ctx)
	if err != nil {
		return 0, err
	}

	frozen := 0
	for _, b := range budgets {
		if b.IsFrozen {
			continue
		}
		if _, err := t.budgets.SetFrozen(ctx, b.AgentID, true); err != nil {
			t.log.Error("Failed to freeze budget", "agent_id", b.AgentID, "error", err)
			continue
		}
		frozen++
	}

	if err := t.mirror.RecordEvent(ctx, string(models.TypeEmergencyFreeze), "", reason); err != nil {
		t.log.Warn("Audit mirror write failed for emergency freeze", "error", err)
	}
	t.log.Warn("Emergency freeze complete", "budgets_frozen", frozen)
	return frozen, nil
}

// EmergencyUnfreezeAll lifts the circuit breaker: clears the global flag
// and unfreezes every frozen budget. Returns the number unfrozen.
func (t *Treasury) EmergencyUnfreezeAll(ctx context.Context, reason string) (int, error) {
	t.emergencyFreeze.Store(false)
	t.log.Info("Emergency freeze lifted", "reason", reason)

	budgets, err := t.fastStore.ScanBudgets(ctx)
	if err != nil {
		return 0, err
	}

	unfrozen := 0
	for _, b := range budgets {
		if !b.IsFrozen {
			continue
		}
		if _, err := t.budgets.SetFrozen(ctx, b.AgentID, false); err != nil {
			t.log.Error("Failed to unfreeze budget", "agent_id", b.AgentID, "error", err)
			continue
		}
		unfrozen++
	}

	if err := t.mirror.RecordEvent(ctx, "EMERGENCY_UNFREEZE", "", reason); err != nil {
		t.log.Warn("Audit mirror write failed for emergency unfreeze", "error", err)
	}
	return unfrozen, nil
}
