package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the studysync CLI.
type Config struct {
	// DataDir is the directory for the local embedded store.
	DataDir string

	// DatabaseURL configures cloud sync. Empty means cloud sync is
	// disabled and every remote operation short-circuits.
	DatabaseURL string

	// RedisURL configures the offline push outbox. Empty disables it.
	RedisURL string

	// UserID keys the remote state row.
	UserID string

	AutosaveInterval   time.Duration
	MaxBackups         int
	StorageBudgetBytes int64

	// LogMode selects zap's development or production config.
	LogMode string
}

// CloudEnabled reports whether remote sync is configured.
func (c *Config) CloudEnabled() bool {
	return c.DatabaseURL != ""
}

// OutboxEnabled reports whether the offline outbox is configured.
func (c *Config) OutboxEnabled() bool {
	return c.RedisURL != ""
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	cfg := &Config{
		DataDir:            getEnv("STUDYSYNC_DATA_DIR", filepath.Join(home, ".studysync")),
		DatabaseURL:        getEnv("STUDYSYNC_DATABASE_URL", ""),
		RedisURL:           getEnv("STUDYSYNC_REDIS_URL", ""),
		UserID:             getEnv("STUDYSYNC_USER_ID", ""),
		AutosaveInterval:   getDuration("STUDYSYNC_AUTOSAVE_INTERVAL", 30*time.Second),
		MaxBackups:         getInt("STUDYSYNC_MAX_BACKUPS", 5),
		StorageBudgetBytes: int64(getInt("STUDYSYNC_STORAGE_BUDGET_BYTES", 10<<20)),
		LogMode:            getEnv("STUDYSYNC_LOG", "production"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
