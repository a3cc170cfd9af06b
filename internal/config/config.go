// Package config builds the single configuration struct the rest of the
// program receives at startup. No component reads ambient global state; the
// privilege-dependent path selection all happens here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every path and knob the agent uses.
type Config struct {
	// Drop directories, scanned non-recursively.
	LogoutEveryDir string `yaml:"logout_every_dir" validate:"required"`
	LogoutOnceDir  string `yaml:"logout_once_dir" validate:"required"`

	// Persisted documents.
	LedgerPath string `yaml:"ledger_path" validate:"required"`
	PrefsPath  string `yaml:"prefs_path" validate:"required"`
	AuditPath  string `yaml:"audit_path"`

	// Logging.
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	// Execution.
	InstallTarget  string   `yaml:"install_target" validate:"required"`
	CommandTimeout Duration `yaml:"command_timeout" validate:"gte=0"` // 0 disables the bound
	DetachDelay    Duration `yaml:"detach_delay" validate:"gte=0"`
}

// Duration is a time.Duration that decodes yaml strings like "90s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %v", value.Value)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration for the current privilege level. Running
// as root uses the system-wide locations; anything else keeps all state under
// the user's home so unprivileged invocations stay self-contained.
func Default() Config {
	cfg := Config{
		LogLevel:      "info",
		LogFormat:     "text",
		InstallTarget: "/",
		DetachDelay:   Duration(5 * time.Second),
	}
	if os.Geteuid() == 0 {
		cfg.LogoutEveryDir = "/usr/local/sundown/logout-every"
		cfg.LogoutOnceDir = "/usr/local/sundown/logout-once"
		cfg.LedgerPath = "/usr/local/sundown/share/once.yaml"
		cfg.PrefsPath = "/Library/Preferences/com.github.sundown.yaml"
		cfg.AuditPath = "/var/log/sundown-history.log"
		return cfg
	}
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, "Library", "Application Support", "sundown")
	cfg.LogoutEveryDir = filepath.Join(base, "logout-every")
	cfg.LogoutOnceDir = filepath.Join(base, "logout-once")
	cfg.LedgerPath = filepath.Join(base, "once.yaml")
	cfg.PrefsPath = filepath.Join(home, "Library", "Preferences", "com.github.sundown.yaml")
	cfg.AuditPath = filepath.Join(home, "Library", "Logs", "sundown-history.log")
	return cfg
}

// Load returns the defaults overlaid with the yaml file at path, when path
// is non-empty. A missing override file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
