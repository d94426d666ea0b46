package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kip-platform/kip-treasury/internal/models"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(&RedisConfig{
		Address:       mr.Addr(),
		KeyPrefix:     "kip:treasury:",
		HistoryCap:    5,
		HistoryExpiry: 30 * 24 * time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func testBudget(agentID string) *models.AgentBudget {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	return &models.AgentBudget{
		AgentID:          agentID,
		CurrentBalance:   5000,
		TotalEarned:      5000,
		DailyLimit:       10000,
		PerActionLimit:   1000,
		LastResetDate:    "2026-08-10",
		PerformanceScore: 1.0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestBudgetRoundTrip(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	original := testBudget("agent_x")
	require.NoError(t, s.SaveBudget(ctx, original))

	loaded, err := s.GetBudget(ctx, "agent_x")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, original, loaded)
	// The reset date must survive as a calendar date, not a datetime.
	assert.Equal(t, "2026-08-10", loaded.LastResetDate)
}

func TestGetBudget_Missing(t *testing.T) {
	s, _ := setupTestStore(t)

	budget, err := s.GetBudget(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, budget)
}

func TestGetBudget_CorruptRecordTreatedAsNotFound(t *testing.T) {
	s, mr := setupTestStore(t)

	mr.Set("kip:treasury:budget:corrupt_agent", "{not json")

	budget, err := s.GetBudget(context.Background(), "corrupt_agent")
	require.NoError(t, err)
	assert.Nil(t, budget)
}

func TestScanBudgets_SkipsCorruptRecords(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBudget(ctx, testBudget("agent_a")))
	require.NoError(t, s.SaveBudget(ctx, testBudget("agent_b")))
	mr.Set("kip:treasury:budget:agent_bad", "{{{{")

	budgets, err := s.ScanBudgets(ctx)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestPushTransaction_TrimsToCap(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		tx := &models.Transaction{
			TransactionID: fmt.Sprintf("tx-%d", i),
			AgentID:       "agent_x",
			AmountCents:   -100,
			Type:          models.TypeSpending,
			Timestamp:     time.Now().UTC(),
			ProcessedBy:   "kip-treasury",
		}
		require.NoError(t, s.PushTransaction(ctx, "agent_x", tx))
	}

	// Cap is 5 in the test config; oldest entries drop off.
	txs, err := s.AllTransactions(ctx, "agent_x")
	require.NoError(t, err)
	require.Len(t, txs, 5)
	assert.Equal(t, "tx-7", txs[0].TransactionID)
	assert.Equal(t, "tx-3", txs[4].TransactionID)
}

func TestPushTransaction_SetsExpiry(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	tx := &models.Transaction{TransactionID: "tx-1", AgentID: "agent_x", AmountCents: 500, Timestamp: time.Now().UTC()}
	require.NoError(t, s.PushTransaction(ctx, "agent_x", tx))

	ttl := mr.TTL("kip:treasury:transactions:agent_x")
	assert.Equal(t, 30*24*time.Hour, ttl)
}

func TestListTransactions_Pagination(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tx := &models.Transaction{
			TransactionID: fmt.Sprintf("tx-%d", i),
			AgentID:       "agent_x",
			AmountCents:   100,
			Timestamp:     time.Now().UTC(),
		}
		require.NoError(t, s.PushTransaction(ctx, "agent_x", tx))
	}

	page1, err := s.ListTransactions(ctx, "agent_x", 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "tx-4", page1[0].TransactionID)
	assert.Equal(t, "tx-3", page1[1].TransactionID)

	page2, err := s.ListTransactions(ctx, "agent_x", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "tx-2", page2[0].TransactionID)

	// Restartable and finite: offset past the end returns nothing.
	empty, err := s.ListTransactions(ctx, "agent_x", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListTransactions_SkipsMalformedEntries(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	tx := &models.Transaction{TransactionID: "tx-good", AgentID: "agent_x", AmountCents: 100, Timestamp: time.Now().UTC()}
	require.NoError(t, s.PushTransaction(ctx, "agent_x", tx))
	mr.Lpush("kip:treasury:transactions:agent_x", "garbage")

	txs, err := s.ListTransactions(ctx, "agent_x", 0, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-good", txs[0].TransactionID)
}
