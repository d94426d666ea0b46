package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	RedisAddress   string `mapstructure:"redis_address"`
	RedisUsername  string `mapstructure:"redis_username"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
	RedisKeyPrefix string `mapstructure:"redis_key_prefix"`

	AuditDBPath string `mapstructure:"audit_db_path"` // SQLite audit mirror; empty = mirror disabled

	DefaultSeedCents        int64 `mapstructure:"default_seed_cents"`
	DefaultDailyLimitCents  int64 `mapstructure:"default_daily_limit_cents"`
	DefaultActionLimitCents int64 `mapstructure:"default_action_limit_cents"`

	BudgetCacheTTLSec    int `mapstructure:"budget_cache_ttl_sec"`   // In-process read cache TTL
	HistoryMaxEntries    int `mapstructure:"history_max_entries"`    // Recent-history cap per agent
	HistoryRetentionDays int `mapstructure:"history_retention_days"` // Expiry on the whole history list

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/kip-treasury/")
	viper.AddConfigPath("$HOME/.kip-treasury")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8090)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("redis_address", "localhost:6379")
	viper.SetDefault("redis_username", "")
	viper.SetDefault("redis_password", "")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("redis_key_prefix", "kip:treasury:")
	viper.SetDefault("audit_db_path", "./treasury-audit.db")
	viper.SetDefault("default_seed_cents", 5000)
	viper.SetDefault("default_daily_limit_cents", 10000)
	viper.SetDefault("default_action_limit_cents", 1000)
	viper.SetDefault("budget_cache_ttl_sec", 60)
	viper.SetDefault("history_max_entries", 1000)
	viper.SetDefault("history_retention_days", 30)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables
	viper.SetEnvPrefix("KIP_TREASURY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment. Used when Load fails and by tests.
func Default() *Config {
	return &Config{
		Port:                    8090,
		LogLevel:                "info",
		AllowedOrigins:          []string{"*"},
		RedisAddress:            "localhost:6379",
		RedisKeyPrefix:          "kip:treasury:",
		AuditDBPath:             "./treasury-audit.db",
		DefaultSeedCents:        5000,
		DefaultDailyLimitCents:  10000,
		DefaultActionLimitCents: 1000,
		BudgetCacheTTLSec:       60,
		HistoryMaxEntries:       1000,
		HistoryRetentionDays:    30,
		RequestTimeoutSec:       30,
		ShutdownTimeoutSec:      15,
	}
}
