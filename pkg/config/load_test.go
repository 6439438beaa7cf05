package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verdict.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
catalog:
  path: ./rules
  watch: true
  debounce: 2s
engine:
  instance_policy: agreement
  default_threshold: 85
storage:
  backend: memory
  sqlite:
    wal_mode: false
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Catalog.Path != "./rules" || !cfg.Catalog.Watch || cfg.Catalog.Debounce != 2*time.Second {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Engine.InstancePolicy != "agreement" || cfg.Engine.DefaultThreshold != 85 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Storage.Backend != "memory" || cfg.Storage.SQLite.WALMode {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}

	// Untouched sections keep their defaults.
	if !cfg.Engine.EnableExpressions {
		t.Error("EnableExpressions default lost")
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Retention.Days != DefaultRetentionDays {
		t.Errorf("Retention.Days = %d", cfg.Storage.Retention.Days)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}

	if _, err := LoadConfig(writeConfig(t, "catalog: [unclosed")); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("bad YAML error = %v", err)
	}

	_, err := LoadConfig(writeConfig(t, "storage:\n  backend: postgres\n"))
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("invalid value error = %v, want ValidationError", err)
	}
	if ve.Errors[0].Field != "storage.backend" {
		t.Errorf("field = %q", ve.Errors[0].Field)
	}
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("CATALOG_TOKEN", "s3cret")
	cfg, err := LoadConfig(writeConfig(t, `
catalog:
  mode: git
  git:
    repository: https://example.com/catalog.git
    auth:
      type: token
      token: ${CATALOG_TOKEN}
`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Catalog.Git.Auth.Token != "s3cret" {
		t.Errorf("Token = %q", cfg.Catalog.Git.Auth.Token)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: sqlite\n")

	t.Setenv("VERDICT_STORAGE_BACKEND", "memory")
	t.Setenv("VERDICT_ENGINE_RULE_TIMEOUT", "250ms")
	t.Setenv("VERDICT_CATALOG_WATCH", "true")
	t.Setenv("VERDICT_STORAGE_RETENTION_DAYS", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want env override", cfg.Storage.Backend)
	}
	if cfg.Engine.RuleTimeout != 250*time.Millisecond {
		t.Errorf("RuleTimeout = %v", cfg.Engine.RuleTimeout)
	}
	if !cfg.Catalog.Watch {
		t.Error("Watch not overridden")
	}
	if cfg.Storage.Retention.Days != DefaultRetentionDays {
		t.Errorf("unparsable override applied: %d", cfg.Storage.Retention.Days)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("VERDICT_ENGINE_INSTANCE_POLICY", "newest")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("invalid override accepted")
	}
}
