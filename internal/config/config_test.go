package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"STUDYSYNC_DATA_DIR", "STUDYSYNC_DATABASE_URL", "STUDYSYNC_REDIS_URL",
		"STUDYSYNC_USER_ID", "STUDYSYNC_AUTOSAVE_INTERVAL", "STUDYSYNC_MAX_BACKUPS",
		"STUDYSYNC_STORAGE_BUDGET_BYTES", "STUDYSYNC_LOG",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir == "" {
		t.Error("expected a default data dir")
	}
	if cfg.AutosaveInterval != 30*time.Second {
		t.Errorf("expected 30s autosave default, got %v", cfg.AutosaveInterval)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("expected 5 max backups, got %d", cfg.MaxBackups)
	}
	if cfg.StorageBudgetBytes != 10<<20 {
		t.Errorf("expected 10 MB budget, got %d", cfg.StorageBudgetBytes)
	}
	if cfg.LogMode != "production" {
		t.Errorf("expected production log mode, got %q", cfg.LogMode)
	}
	if cfg.CloudEnabled() || cfg.OutboxEnabled() {
		t.Error("cloud and outbox must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STUDYSYNC_DATA_DIR", "/tmp/sync-test")
	t.Setenv("STUDYSYNC_DATABASE_URL", "postgres://localhost/plans")
	t.Setenv("STUDYSYNC_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("STUDYSYNC_USER_ID", "u-42")
	t.Setenv("STUDYSYNC_AUTOSAVE_INTERVAL", "5s")
	t.Setenv("STUDYSYNC_MAX_BACKUPS", "9")
	t.Setenv("STUDYSYNC_STORAGE_BUDGET_BYTES", "1048576")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/sync-test" || cfg.UserID != "u-42" {
		t.Errorf("string overrides not applied: %+v", cfg)
	}
	if cfg.AutosaveInterval != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.AutosaveInterval)
	}
	if cfg.MaxBackups != 9 || cfg.StorageBudgetBytes != 1048576 {
		t.Errorf("numeric overrides not applied: %+v", cfg)
	}
	if !cfg.CloudEnabled() || !cfg.OutboxEnabled() {
		t.Error("cloud and outbox should be enabled when configured")
	}
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("STUDYSYNC_AUTOSAVE_INTERVAL", "whenever")
	t.Setenv("STUDYSYNC_MAX_BACKUPS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AutosaveInterval != 30*time.Second || cfg.MaxBackups != 5 {
		t.Errorf("malformed values must fall back to defaults: %+v", cfg)
	}
}
