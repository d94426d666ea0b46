package treasury

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kip-platform/kip-treasury/internal/models"
)

func TestRecordTransaction_Spend(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)

	check, err := tr.CheckFunds(ctx, "agent_x", 500, "tool call")
	require.NoError(t, err)
	require.True(t, check.Approved)

	tx, err := tr.RecordTransaction(ctx, "agent_x", -500, "tool call", models.TypeSpending, nil)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, int64(5000), tx.BalanceBefore)
	assert.Equal(t, int64(4500), tx.BalanceAfter)
	assert.Equal(t, tx.BalanceBefore+tx.AmountCents, tx.BalanceAfter)
	assert.Equal(t, models.TypeSpending, tx.Type)
	assert.Equal(t, "kip-treasury", tx.ProcessedBy)
	assert.NotEmpty(t, tx.TransactionID)

	budget, err := tr.GetBudget(ctx, "agent_x")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), budget.CurrentBalance)
	assert.Equal(t, int64(500), budget.DailySpent)
	assert.Equal(t, int64(500), budget.TotalSpent)
}

func TestRecordTransaction_ZeroAmount(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)
	before, err := tr.GetBudget(ctx, "agent_x")
	require.NoError(t, err)

	tx, err := tr.RecordTransaction(ctx, "agent_x", 0, "noop", models.TypeSpending, nil)
	require.NoError(t, err)
	assert.Nil(t, tx)

	// No budget mutation and no ledger entry.
	after, err := tr.GetBudget(ctx, "agent_x")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentBalance, after.CurrentBalance)
	assert.Equal(t, before.TotalTransactions, after.TotalTransactions)

	history, err := tr.GetTransactionHistory(ctx, "agent_x", 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 1) // seed only
	assert.Equal(t, models.TypeSeedFunding, history[0].Type)
}

func TestRecordTransaction_UnknownAgent(t *testing.T) {
	tr, _ := newTestTreasury(t)

	tx, err := tr.RecordTransaction(context.Background(), "ghost_agent", -100, "tool", models.TypeSpending, nil)
	require.NoError(t, err)
	assert.Nil(t, tx)

	// The ledger must never reference a budget update that did not happen.
	history, err := tr.GetTransactionHistory(context.Background(), "ghost_agent", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordTransaction_BalanceInvariantOverSequence(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)

	amounts := []int64{-500, 1200, -300, 2400, -100, -700}
	for _, amount := range amounts {
		txType := models.TypeSpending
		if amount > 0 {
			txType = models.TypeEarning
		}
		tx, err := tr.RecordTransaction(ctx, "agent_x", amount, "event", txType, nil)
		require.NoError(t, err)
		require.NotNil(t, tx)
		assert.Equal(t, tx.BalanceBefore+tx.AmountCents, tx.BalanceAfter)

		budget, err := tr.GetBudget(ctx, "agent_x")
		require.NoError(t, err)
		assert.Equal(t, budget.TotalEarned-budget.TotalSpent, budget.CurrentBalance)
		assert.Equal(t, tx.BalanceAfter, budget.CurrentBalance)
	}
}

func TestRecordTransaction_ChainsBalances(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)

	tx1, err := tr.RecordTransaction(ctx, "agent_x", -500, "first", models.TypeSpending, nil)
	require.NoError(t, err)
	tx2, err := tr.RecordTransaction(ctx, "agent_x", -200, "second", models.TypeSpending, nil)
	require.NoError(t, err)

	// Single-writer append order: each record picks up where the last left off.
	assert.Equal(t, tx1.BalanceAfter, tx2.BalanceBefore)
}

func TestGetTransactionHistory_NewestFirst(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)
	_, err = tr.RecordTransaction(ctx, "agent_x", -100, "first spend", models.TypeSpending, nil)
	require.NoError(t, err)
	_, err = tr.RecordTransaction(ctx, "agent_x", -200, "second spend", models.TypeSpending, nil)
	require.NoError(t, err)

	history, err := tr.GetTransactionHistory(ctx, "agent_x", 50, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "second spend", history[0].Description)
	assert.Equal(t, "first spend", history[1].Description)
	assert.Equal(t, models.TypeSeedFunding, history[2].Type)

	// Offset pagination restarts mid-stream.
	page, err := tr.GetTransactionHistory(ctx, "agent_x", 50, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "first spend", page[0].Description)
}

func TestCalculateAgentTotals(t *testing.T) {
	tr, _ := newTestTreasury(t)
	ctx := context.Background()

	_, err := tr.InitializeAgentBudget(ctx, "agent_x", SeedOptions{})
	require.NoError(t, err)
	_, err = tr.RecordTransaction(ctx, "agent_x", -500, "spend", models.TypeSpending, nil)
	require.NoError(t, err)
	_, err = tr.RecordTransaction(ctx, "agent_x", 1500, "earn", models.TypeEarning, nil)
	require.NoError(t, err)

	totals, err := tr.CalculateAgentTotals(ctx, "agent_x")
	require.NoError(t, err)
	assert.Equal(t, 3, totals.TransactionCount)
	assert.Equal(t, int64(6500), totals.TotalRevenue) // 5000 seed + 1500
	assert.Equal(t, int64(500), totals.TotalExpenses)
	assert.Equal(t, int64(6000), totals.NetEarnings)
	assert.Equal(t, int64(7000/3), totals.AverageTransaction)
}

func TestCalculateAgentTotals_EmptyHistory(t *testing.T) {
	tr, _ := newTestTreasury(t)

	totals, err := tr.CalculateAgentTotals(context.Background(), "ghost_agent")
	require.NoError(t, err)
	assert.Equal(t, 0, totals.TransactionCount)
	assert.Equal(t, int64(0), totals.AverageTransaction)
}
