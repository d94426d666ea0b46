package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kip-platform/kip-treasury/internal/audit"
	"github.com/kip-platform/kip-treasury/internal/models"
	"github.com/kip-platform/kip-treasury/internal/store"
)

// ROI-to-multiplier tiers. Boundaries are inclusive: an ROI of exactly 2.0
// lands in the higher tier.
var roiTiers = []struct {
	MinROI     float64
	Tier       string
	Multiplier float64
}{
	{2.0, "excellent", 1.5},
	{1.5, "good", 1.2},
	{0.5, "neutral", 1.0},
	{0.2, "poor", 0.8},
}

const criticalTier = "critical"
const criticalMultiplier = 0.5

// Hard bounds on adjusted limits, in cents.
const (
	minDailyLimit  = 1000
	maxDailyLimit  = 50000
	minActionLimit = 100
	maxActionLimit = 10000
)

// EconomicAnalyzer is the read-side aggregation over budgets and
// transaction history: ROI reviews and system-wide analytics.
type EconomicAnalyzer struct {
	budgets *BudgetManager
	scanner store.BudgetStore
	ledger  store.LedgerStore
	mirror  audit.Mirror
	log     *slog.Logger
}

// NewEconomicAnalyzer creates an analyzer over the given stores.
func NewEconomicAnalyzer(budgets *BudgetManager, scanner store.BudgetStore, ledger store.LedgerStore, mirror audit.Mirror, log *slog.Logger) *EconomicAnalyzer {
	return &EconomicAnalyzer{
		budgets: budgets,
		scanner: scanner,
		ledger:  ledger,
		mirror:  mirror,
		log:     log,
	}
}

func tierForROI(roi float64) (string, float64) {
	for _, t := range roiTiers {
		if roi >= t.MinROI {
			return t.Tier, t.Multiplier
		}
	}
	return criticalTier, criticalMultiplier
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CalculateROIAdjustment reviews the agent's trailing window, maps ROI to a
// tier multiplier and rewrites the spending limits (clamped to the hard
// bounds), setting performance_score to the raw ROI. With no spending in
// the window the ROI is undefined; the report comes back neutral and the
// budget is left untouched. Returns (nil, nil) for unknown agents.
func (a *EconomicAnalyzer) CalculateROIAdjustment(ctx context.Context, agentID string, periodDays int) (*models.ROIAdjustment, error) {
	id, err := NormalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if periodDays <= 0 {
		periodDays = 7
	}

	budget, err := a.budgets.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, nil
	}

	txs, err := a.ledger.AllTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -periodDays)
	var earned, spent int64
	for _, tx := range txs {
		if tx.Timestamp.Before(cutoff) {
			continue
		}
		if tx.AmountCents > 0 {
			earned += tx.AmountCents
		} else {
			spent += -tx.AmountCents
		}
	}

	report := &models.ROIAdjustment{
		AgentID:     id,
		PeriodDays:  periodDays,
		EarnedCents: earned,
		SpentCents:  spent,
	}

	if spent == 0 {
		report.Tier = "neutral"
		report.Multiplier = 1.0
		report.Reason = "No spending in period, no adjustment"
		return report, nil
	}

	roi := float64(earned) / float64(spent)
	tier, multiplier := tierForROI(roi)

	report.ROI = roi
	report.Tier = tier
	report.Multiplier = multiplier
	report.OldDailyLimit = budget.DailyLimit
	report.OldActionLimit = budget.PerActionLimit
	report.NewDailyLimit = clamp(int64(float64(budget.DailyLimit)*multiplier), minDailyLimit, maxDailyLimit)
	report.NewActionLimit = clamp(int64(float64(budget.PerActionLimit)*multiplier), minActionLimit, maxActionLimit)

	if _, err := a.budgets.AdjustLimits(ctx, id, report.NewDailyLimit, report.NewActionLimit, roi); err != nil {
		return nil, err
	}
	report.Adjusted = true

	details := fmt.Sprintf("roi=%.2f tier=%s daily %d->%d action %d->%d",
		roi, tier, report.OldDailyLimit, report.NewDailyLimit, report.OldActionLimit, report.NewActionLimit)
	if err := a.mirror.RecordEvent(ctx, string(models.TypeLimitAdjustment), id, details); err != nil {
		a.log.Warn("Audit mirror write failed for limit adjustment", "agent_id", id, "error", err)
	}

	a.log.Info("ROI adjustment applied", "agent_id", id, "roi", roi, "tier", tier,
		"new_daily_limit", report.NewDailyLimit, "new_action_limit", report.NewActionLimit)
	return report, nil
}

// GetEconomicAnalytics scans every budget and derives the system-wide view.
// Unparseable records are skipped at the store layer; the result degrades
// to an empty snapshot only when nothing could be read at all.
func (a *EconomicAnalyzer) GetEconomicAnalytics(ctx context.Context) (*models.EconomicAnalytics, error) {
	budgets, err := a.scanner.ScanBudgets(ctx)
	if err != nil {
		return nil, err
	}

	analytics := &models.EconomicAnalytics{GeneratedAt: time.Now().UTC()}
	var top, poor []models.AgentPerformance
	for _, b := range budgets {
		analytics.TotalAgents++
		if b.IsFrozen {
			analytics.FrozenAgents++
		} else {
			analytics.ActiveAgents++
		}
		analytics.TotalBalance += b.CurrentBalance
		analytics.TotalEarned += b.TotalEarned
		analytics.TotalSpent += b.TotalSpent
		analytics.TotalTransactions += b.TotalTransactions

		perf := models.AgentPerformance{AgentID: b.AgentID, Score: b.PerformanceScore, CurrentBalance: b.CurrentBalance}
		if b.PerformanceScore > 1.0 {
			top = append(top, perf)
		}
		if b.PerformanceScore < 0.5 {
			poor = append(poor, perf)
		}
	}

	if analytics.TotalSpent > 0 {
		analytics.SystemROI = float64(analytics.TotalEarned) / float64(analytics.TotalSpent)
	}

	sort.Slice(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	sort.Slice(poor, func(i, j int) bool { return poor[i].Score < poor[j].Score })
	if len(top) > 5 {
		top = top[:5]
	}
	if len(poor) > 5 {
		poor = poor[:5]
	}
	analytics.TopPerformers = top
	analytics.PoorPerformers = poor

	return analytics, nil
}
