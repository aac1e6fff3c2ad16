// Package config provides configuration loading and validation for llm-osd.
//
// Configuration file: /etc/llm-osd/config.yaml (default, optional)
// Schema version: 1
//
// Validation:
//   - All required fields must be present after defaults are applied.
//   - Numeric ranges enforced (timeouts, size ceilings must be positive).
//   - Invalid config: daemon refuses to start (fatal error). There is no
//     hot-reload: llm-osd is restart-to-reconfigure.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version, GitCommit, BuildTime can be set at build time via -ldflags -X.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for llm-osd.
type Config struct {
	// SchemaVersion must be "1". Validate rejects any other value.
	SchemaVersion string `yaml:"schema_version"`

	// SocketPath is the Unix domain socket llm-osd listens on.
	SocketPath string `yaml:"socket_path"`

	// AuditPath is the JSON-Lines audit log, the durable source of truth
	// for every dispatched plan.
	AuditPath string `yaml:"audit_path"`

	// AuditIndexPath is the BoltDB secondary index over AuditPath.
	AuditIndexPath string `yaml:"audit_index_path"`

	// ConfirmationToken is the shared secret a producer must echo back in
	// confirmation.token to run a gated action.
	ConfirmationToken string `yaml:"confirmation_token"`

	// ReadIdleTimeout bounds how long the connection server waits for the
	// next chunk of a request before treating the connection as idle.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout"`

	// MaxRequestBytes is the request size ceiling enforced while reading.
	MaxRequestBytes int `yaml:"max_request_bytes"`

	Observability ObservabilityConfig `yaml:"observability"`
}

type ObservabilityConfig struct {
	// MetricsAddr is the loopback-only address /metrics and /healthz are
	// served on.
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Defaults returns the configuration llm-osd runs with when no file is
// present or a field is omitted from one.
func Defaults() *Config {
	return &Config{
		SchemaVersion:     "1",
		SocketPath:        "/tmp/llm-osd.sock",
		AuditPath:         "./llm-osd-audit.jsonl",
		AuditIndexPath:    "./llm-osd-audit-index.bolt",
		ConfirmationToken: "i-understand",
		ReadIdleTimeout:   2 * time.Second,
		MaxRequestBytes:   262144,
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9091",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads path, overlays it onto Defaults(), and validates the result.
// A missing file is not an error: the daemon is not required to run from a
// config file, unlike the teacher codebase this was adapted from. Any
// other read or parse failure, or a validation failure, is returned as-is
// and is fatal for the caller to treat as such.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate accumulates every violation it finds rather than stopping at
// the first, so a misconfigured daemon reports everything wrong with its
// config file in one failed startup instead of one per restart.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if strings.TrimSpace(cfg.SocketPath) == "" {
		errs = append(errs, "socket_path must be non-empty")
	}
	if strings.TrimSpace(cfg.AuditPath) == "" {
		errs = append(errs, "audit_path must be non-empty")
	}
	if strings.TrimSpace(cfg.AuditIndexPath) == "" {
		errs = append(errs, "audit_index_path must be non-empty")
	}
	if strings.TrimSpace(cfg.ConfirmationToken) == "" {
		errs = append(errs, "confirmation_token must be non-empty")
	}
	if cfg.ReadIdleTimeout <= 0 {
		errs = append(errs, "read_idle_timeout must be positive")
	}
	if cfg.MaxRequestBytes <= 0 {
		errs = append(errs, "max_request_bytes must be positive")
	}
	switch cfg.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_level must be one of debug, info, warn, error, got %q", cfg.Observability.LogLevel))
	}
	switch cfg.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("observability.log_format must be one of json, console, got %q", cfg.Observability.LogFormat))
	}
	if strings.TrimSpace(cfg.Observability.MetricsAddr) == "" {
		errs = append(errs, "observability.metrics_addr must be non-empty")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
}
