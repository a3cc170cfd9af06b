package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
	if cfg.InstallTarget != "/" {
		t.Errorf("InstallTarget = %q, want /", cfg.InstallTarget)
	}
	if time.Duration(cfg.DetachDelay) != 5*time.Second {
		t.Errorf("DetachDelay = %v", cfg.DetachDelay)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default", cfg.LogLevel)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sundown.yaml")
	os.WriteFile(path, []byte(
		"logout_every_dir: /opt/items/every\n"+
			"log_level: debug\n"+
			"command_timeout: 90s\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogoutEveryDir != "/opt/items/every" {
		t.Errorf("LogoutEveryDir = %q", cfg.LogoutEveryDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if time.Duration(cfg.CommandTimeout) != 90*time.Second {
		t.Errorf("CommandTimeout = %v", cfg.CommandTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.LogoutOnceDir == "" || cfg.LedgerPath == "" {
		t.Error("overlay clobbered defaulted fields")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sundown.yaml")
	os.WriteFile(path, []byte("log_level: loud\n"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error %q should name the yaml field", err)
	}
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sundown.yaml")
	os.WriteFile(path, []byte("{{{\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateEmptyConfig(t *testing.T) {
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("empty config should not validate")
	}
	for _, field := range []string{"logout_every_dir", "logout_once_dir", "ledger_path", "prefs_path"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should mention %s: %v", field, err)
		}
	}
}
