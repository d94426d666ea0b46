package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kip-platform/kip-treasury/internal/models"
	"github.com/kip-platform/kip-treasury/internal/store"
)

// SeedOptions overrides the configured defaults when provisioning an agent.
// Zero values mean "use the default".
type SeedOptions struct {
	SeedCents        int64
	DailyLimitCents  int64
	ActionLimitCents int64
}

// BudgetDefaults are the configured seed values for new agents.
type BudgetDefaults struct {
	SeedCents        int64
	DailyLimitCents  int64
	ActionLimitCents int64
	CacheTTL         time.Duration
}

// BudgetManager owns all AgentBudget mutation. Reads go through a
// short-lived in-process cache; every write path holds a per-agent mutex
// across its read-modify-write so concurrent transactions for the same
// agent cannot lose updates within this process.
type BudgetManager struct {
	store    store.BudgetStore
	defaults BudgetDefaults
	cache    *gocache.Cache
	locks    sync.Map // normalized agent id -> *sync.Mutex
	log      *slog.Logger
}

// NewBudgetManager creates a budget manager over the fast store.
func NewBudgetManager(budgets store.BudgetStore, defaults BudgetDefaults, log *slog.Logger) *BudgetManager {
	ttl := defaults.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &BudgetManager{
		store:    budgets,
		defaults: defaults,
		cache:    gocache.New(ttl, 2*ttl),
		log:      log,
	}
}

// NormalizeAgentID lowercases the id and replaces spaces with underscores.
// Returns an error for ids shorter than 3 characters after trimming.
func NormalizeAgentID(agentID string) (string, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(agentID)), " ", "_")
	if len(normalized) < 3 {
		return "", fmt.Errorf("invalid agent id %q: must be at least 3 characters", agentID)
	}
	return normalized, nil
}

func (m *BudgetManager) agentLock(agentID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(agentID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// InitializeAgentBudget provisions a budget for the agent. Idempotent: if a
// budget already exists for the normalized id it is returned unchanged with
// created=false and a logged warning. The new budget starts with a zero
// balance; seeding happens through the transaction pipeline so the seed is
// visible in the ledger.
func (m *BudgetManager) InitializeAgentBudget(ctx context.Context, agentID string, opts SeedOptions) (*models.AgentBudget, bool, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, false, err
	}

	lock := m.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.loadBudget(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		m.log.Warn("Budget already exists, returning unchanged", "agent_id", id)
		return existing, false, nil
	}

	dailyLimit := opts.DailyLimitCents
	if dailyLimit <= 0 {
		dailyLimit = m.defaults.DailyLimitCents
	}
	actionLimit := opts.ActionLimitCents
	if actionLimit <= 0 {
		actionLimit = m.defaults.ActionLimitCents
	}

	now := time.Now().UTC()
	budget := &models.AgentBudget{
		AgentID:          id,
		DailyLimit:       dailyLimit,
		PerActionLimit:   actionLimit,
		LastResetDate:    now.Format(models.DateLayout),
		PerformanceScore: 1.0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.store.SaveBudget(ctx, budget); err != nil {
		return nil, false, err
	}
	m.cache.Set(id, budget, gocache.DefaultExpiration)

	m.log.Info("Initialized agent budget", "agent_id", id, "daily_limit", dailyLimit, "per_action_limit", actionLimit)
	return budget, true, nil
}

// GetBudget returns the agent's budget or (nil, nil) for unknown agents.
// Served from the in-process cache within its TTL; on a miss the budget is
// loaded from the store with the daily-reset check applied before it is
// returned to any caller.
func (m *BudgetManager) GetBudget(ctx context.Context, agentID string) (*models.AgentBudget, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}

	if cached, ok := m.cache.Get(id); ok {
		return cached.(*models.AgentBudget), nil
	}

	lock := m.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	budget, err := m.loadBudget(ctx, id)
	if err != nil || budget == nil {
		return nil, err
	}
	m.cache.Set(id, budget, gocache.DefaultExpiration)
	return budget, nil
}

// loadBudget reads from the store and applies the daily reset. Callers must
// hold the agent lock. If the stored reset date is before today (UTC), the
// daily counter is zeroed and persisted before the budget is returned, so
// callers never observe stale daily counters.
func (m *BudgetManager) loadBudget(ctx context.Context, id string) (*models.AgentBudget, error) {
	budget, err := m.store.GetBudget(ctx, id)
	if err != nil || budget == nil {
		return nil, err
	}

	today := time.Now().UTC().Format(models.DateLayout)
	if budget.LastResetDate < today {
		budget.DailySpent = 0
		budget.LastResetDate = today
		budget.UpdatedAt = time.Now().UTC()
		if err := m.store.SaveBudget(ctx, budget); err != nil {
			return nil, fmt.Errorf("failed to persist daily reset for %s: %w", id, err)
		}
		m.log.Info("Daily spending counter reset", "agent_id", id, "reset_date", today)
	}
	return budget, nil
}

// CheckFunds is pure validation: no mutation, projections only. Checks run
// in fixed precedence: amount, emergency freeze, existence, per-budget
// freeze, balance, daily limit, per-action limit. The projected balances in
// an approval assume the spend proceeds; they are not committed state.
func (m *BudgetManager) CheckFunds(ctx context.Context, agentID string, amountCents int64, description string, emergencyFreeze bool) (*models.CheckResult, error) {
	result := &models.CheckResult{AgentID: agentID, RequestedCents: amountCents}

	if amountCents <= 0 {
		result.Reason = "Spend amount must be positive"
		return result, nil
	}
	if emergencyFreeze {
		result.Reason = "Emergency freeze active"
		return result, nil
	}

	budget, err := m.GetBudget(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		result.Reason = "No budget found for agent"
		return result, nil
	}

	result.AgentID = budget.AgentID
	result.CurrentBalance = budget.CurrentBalance
	result.DailySpent = budget.DailySpent
	result.DailyLimit = budget.DailyLimit
	result.PerActionLimit = budget.PerActionLimit

	if budget.IsFrozen {
		result.Reason = "Agent budget is frozen"
		return result, nil
	}
	if budget.CurrentBalance < amountCents {
		result.Reason = fmt.Sprintf("Insufficient balance: have %d, need %d", budget.CurrentBalance, amountCents)
		return result, nil
	}
	if budget.DailySpent+amountCents > budget.DailyLimit {
		result.Reason = fmt.Sprintf("Daily spending limit would be exceeded: %d + %d > %d", budget.DailySpent, amountCents, budget.DailyLimit)
		return result, nil
	}
	if amountCents > budget.PerActionLimit {
		result.Reason = fmt.Sprintf("Amount exceeds per-action limit: %d > %d", amountCents, budget.PerActionLimit)
		return result, nil
	}

	result.Approved = true
	result.ProjectedBalance = budget.CurrentBalance - amountCents
	result.ProjectedDailySpent = budget.DailySpent + amountCents
	m.log.Debug("Funds check approved", "agent_id", budget.AgentID, "amount_cents", amountCents, "description", description)
	return result, nil
}

// UpdateBudgetBalance is the sole balance mutation entrypoint. A positive
// delta credits earnings; a negative delta adds to total and daily spend.
// Returns the updated budget and the balance before the change, or
// (nil, 0, nil) when the agent has no budget.
func (m *BudgetManager) UpdateBudgetBalance(ctx context.Context, agentID string, deltaCents int64) (*models.AgentBudget, int64, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, 0, err
	}

	lock := m.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	budget, err := m.loadBudget(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if budget == nil {
		return nil, 0, nil
	}

	before := budget.CurrentBalance
	budget.CurrentBalance += deltaCents
	if deltaCents > 0 {
		budget.TotalEarned += deltaCents
	} else {
		budget.TotalSpent += -deltaCents
		budget.DailySpent += -deltaCents
	}
	budget.TotalTransactions++
	budget.UpdatedAt = time.Now().UTC()

	if err := m.store.SaveBudget(ctx, budget); err != nil {
		return nil, 0, err
	}
	m.cache.Set(id, budget, gocache.DefaultExpiration)
	return budget, before, nil
}

// AdjustLimits rewrites the spending limits and performance score. Used by
// the economic analyzer after an ROI review.
func (m *BudgetManager) AdjustLimits(ctx context.Context, agentID string, dailyLimit, actionLimit int64, score float64) (*models.AgentBudget, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}

	lock := m.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	budget, err := m.loadBudget(ctx, id)
	if err != nil || budget == nil {
		return nil, err
	}

	budget.DailyLimit = dailyLimit
	budget.PerActionLimit = actionLimit
	budget.PerformanceScore = score
	budget.UpdatedAt = time.Now().UTC()

	if err := m.store.SaveBudget(ctx, budget); err != nil {
		return nil, err
	}
	m.cache.Set(id, budget, gocache.DefaultExpiration)
	return budget, nil
}

// SetFrozen flips the per-budget freeze flag. Returns the updated budget or
// (nil, nil) when the agent has no budget.
func (m *BudgetManager) SetFrozen(ctx context.Context, agentID string, frozen bool) (*models.AgentBudget, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}

	lock := m.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	budget, err := m.loadBudget(ctx, id)
	if err != nil || budget == nil {
		return nil, err
	}

	budget.IsFrozen = frozen
	budget.UpdatedAt = time.Now().UTC()

	if err := m.store.SaveBudget(ctx, budget); err != nil {
		return nil, err
	}
	m.cache.Set(id, budget, gocache.DefaultExpiration)
	return budget, nil
}
