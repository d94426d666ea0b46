package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kip-platform/kip-treasury/internal/models"
)

// RedisConfig holds connection settings for the fast store.
type RedisConfig struct {
	Address       string
	Username      string
	Password      string
	DB            int
	KeyPrefix     string
	HistoryCap    int64
	HistoryExpiry time.Duration
}

// RedisStore is the fast mutable store: authoritative for live operation.
// Budget records are JSON values under budget:{agent_id}; per-agent history
// is a capped, expiring list under transactions:{agent_id}.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	historyCap    int64
	historyExpiry time.Duration
	log           *slog.Logger
}

// NewRedisStore connects and verifies the connection with a ping. A failed
// ping is fatal: the treasury cannot operate without the fast store.
func NewRedisStore(cfg *RedisConfig, log *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	historyCap := cfg.HistoryCap
	if historyCap <= 0 {
		historyCap = 1000
	}
	historyExpiry := cfg.HistoryExpiry
	if historyExpiry <= 0 {
		historyExpiry = 30 * 24 * time.Hour
	}

	return &RedisStore{
		client:        client,
		prefix:        cfg.KeyPrefix,
		historyCap:    historyCap,
		historyExpiry: historyExpiry,
		log:           log,
	}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) budgetKey(agentID string) string {
	return s.prefix + "budget:" + agentID
}

func (s *RedisStore) historyKey(agentID string) string {
	return s.prefix + "transactions:" + agentID
}

// SaveBudget writes the full budget record. Budget keys carry no expiry:
// the fast store is the source of truth for budget existence.
func (s *RedisStore) SaveBudget(ctx context.Context, budget *models.AgentBudget) error {
	data, err := json.Marshal(budget)
	if err != nil {
		return fmt.Errorf("failed to serialize budget for %s: %w", budget.AgentID, err)
	}
	if err := s.client.Set(ctx, s.budgetKey(budget.AgentID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save budget for %s: %w", budget.AgentID, err)
	}
	return nil
}

// GetBudget returns (nil, nil) when no record exists. A corrupt record is
// logged and treated as not found; connection errors propagate.
func (s *RedisStore) GetBudget(ctx context.Context, agentID string) (*models.AgentBudget, error) {
	data, err := s.client.Get(ctx, s.budgetKey(agentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget for %s: %w", agentID, err)
	}

	var budget models.AgentBudget
	if err := json.Unmarshal(data, &budget); err != nil {
		s.log.Warn("Corrupt budget record, treating as not found", "agent_id", agentID, "error", err)
		return nil, nil
	}
	return &budget, nil
}

// ScanBudgets walks every budget key and returns all parseable records.
// Individual corrupt records are skipped with a warning. O(N) full scan;
// agent counts are expected to stay small.
func (s *RedisStore) ScanBudgets(ctx context.Context) ([]*models.AgentBudget, error) {
	var budgets []*models.AgentBudget
	iter := s.client.Scan(ctx, 0, s.prefix+"budget:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read budget key %s: %w", key, err)
		}
		var budget models.AgentBudget
		if err := json.Unmarshal(data, &budget); err != nil {
			s.log.Warn("Skipping corrupt budget record during scan", "key", key, "error", err)
			continue
		}
		budgets = append(budgets, &budget)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("budget scan failed: %w", err)
	}
	return budgets, nil
}

// PushTransaction prepends a transaction to the agent's history, trims the
// list to the cap and refreshes the retention expiry.
func (s *RedisStore) PushTransaction(ctx context.Context, agentID string, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to serialize transaction %s: %w", tx.TransactionID, err)
	}

	key := s.historyKey(agentID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.historyCap-1)
	pipe.Expire(ctx, key, s.historyExpiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append transaction for %s: %w", agentID, err)
	}
	return nil
}

// ListTransactions returns a page of history, newest first. Malformed
// entries are skipped with a warning rather than failing the whole query.
func (s *RedisStore) ListTransactions(ctx context.Context, agentID string, offset, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.historyKey(agentID), offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", agentID, err)
	}
	return s.decodeTransactions(agentID, raw), nil
}

// AllTransactions returns the agent's entire retained history, newest first.
func (s *RedisStore) AllTransactions(ctx context.Context, agentID string) ([]*models.Transaction, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", agentID, err)
	}
	return s.decodeTransactions(agentID, raw), nil
}

func (s *RedisStore) decodeTransactions(agentID string, raw []string) []*models.Transaction {
	txs := make([]*models.Transaction, 0, len(raw))
	for _, entry := range raw {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(entry), &tx); err != nil {
			s.log.Warn("Skipping malformed transaction record", "agent_id", agentID, "error", err)
			continue
		}
		txs = append(txs, &tx)
	}
	return txs
}
