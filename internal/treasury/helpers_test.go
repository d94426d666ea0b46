package treasury

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kip-platform/kip-treasury/internal/audit"
	"github.com/kip-platform/kip-treasury/internal/config"
	"github.com/kip-platform/kip-treasury/internal/store"
)

// newTestTreasury builds a full treasury over an in-process redis with the
// audit mirror disabled.
func newTestTreasury(t *testing.T) (*Treasury, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.RedisAddress = mr.Addr()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fastStore, err := store.NewRedisStore(&store.RedisConfig{
		Address:       mr.Addr(),
		KeyPrefix:     cfg.RedisKeyPrefix,
		HistoryCap:    int64(cfg.HistoryMaxEntries),
		HistoryExpiry: time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { fastStore.Close() })

	return newFromParts(cfg, fastStore, audit.NoOpMirror{}, log), fastStore
}
