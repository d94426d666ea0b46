package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment variables
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	// Check defaults
	if cfg.Port != 8090 {
		t.Errorf("Expected default port 8090, got %d", cfg.Port)
	}
	if cfg.RedisAddress != "localhost:6379" {
		t.Errorf("Expected default redis address 'localhost:6379', got %s", cfg.RedisAddress)
	}
	if cfg.RedisKeyPrefix != "kip:treasury:" {
		t.Errorf("Expected default key prefix 'kip:treasury:', got %s", cfg.RedisKeyPrefix)
	}
	if cfg.AuditDBPath != "./treasury-audit.db" {
		t.Errorf("Expected default audit db path './treasury-audit.db', got %s", cfg.AuditDBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.DefaultSeedCents != 5000 {
		t.Errorf("Expected default seed 5000 cents, got %d", cfg.DefaultSeedCents)
	}
	if cfg.DefaultDailyLimitCents != 10000 {
		t.Errorf("Expected default daily limit 10000 cents, got %d", cfg.DefaultDailyLimitCents)
	}
	if cfg.DefaultActionLimitCents != 1000 {
		t.Errorf("Expected default action limit 1000 cents, got %d", cfg.DefaultActionLimitCents)
	}
	if cfg.BudgetCacheTTLSec != 60 {
		t.Errorf("Expected default cache TTL 60s, got %d", cfg.BudgetCacheTTLSec)
	}
	if cfg.HistoryMaxEntries != 1000 {
		t.Errorf("Expected default history cap 1000, got %d", cfg.HistoryMaxEntries)
	}
	if cfg.HistoryRetentionDays != 30 {
		t.Errorf("Expected default history retention 30 days, got %d", cfg.HistoryRetentionDays)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("KIP_TREASURY_PORT", "9000")
	os.Setenv("KIP_TREASURY_REDIS_ADDRESS", "redis.internal:6380")
	os.Setenv("KIP_TREASURY_LOG_LEVEL", "debug")
	os.Setenv("KIP_TREASURY_DEFAULT_SEED_CENTS", "2500")
	defer func() {
		os.Unsetenv("KIP_TREASURY_PORT")
		os.Unsetenv("KIP_TREASURY_REDIS_ADDRESS")
		os.Unsetenv("KIP_TREASURY_LOG_LEVEL")
		os.Unsetenv("KIP_TREASURY_DEFAULT_SEED_CENTS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.RedisAddress != "redis.internal:6380" {
		t.Errorf("Expected redis address from env, got %s", cfg.RedisAddress)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.DefaultSeedCents != 2500 {
		t.Errorf("Expected seed 2500 cents from env, got %d", cfg.DefaultSeedCents)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8090 {
		t.Errorf("Expected port 8090, got %d", cfg.Port)
	}
	if cfg.DefaultSeedCents != 5000 {
		t.Errorf("Expected seed 5000, got %d", cfg.DefaultSeedCents)
	}
}
