package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen      string   `yaml:"listen"`
	APIKeys     []string `yaml:"api_keys"`
	RateLimit   string   `yaml:"rate_limit"`
	LogLevel    string   `yaml:"log_level"`
	LogRequests bool     `yaml:"log_requests"`
	TraceDir    string   `yaml:"trace_dir"`

	Codex    CodexConfig    `yaml:"codex"`
	OpenCode OpenCodeConfig `yaml:"opencode"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// CodexConfig configures the codex CLI backend.
type CodexConfig struct {
	Path     string `yaml:"path"`
	Model    string `yaml:"model"`
	Sandbox  string `yaml:"sandbox"`
	FullAuto bool   `yaml:"full_auto"`
}

// OpenCodeConfig configures the opencode CLI backend.
type OpenCodeConfig struct {
	Path  string `yaml:"path"`
	Model string `yaml:"model"`
}

// MetricsConfig configures per-backend metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LedgerConfig configures the SQLite request ledger. An empty path disables
// recording.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

func DefaultConfig() Config {
	return Config{
		Listen:      "0.0.0.0:8000",
		APIKeys:     nil,
		RateLimit:   "",
		LogLevel:    "info",
		LogRequests: false,
		TraceDir:    "",
		Codex: CodexConfig{
			Path:     "codex",
			Model:    "gpt-5.2-codex",
			Sandbox:  "read-only",
			FullAuto: false,
		},
		OpenCode: OpenCodeConfig{
			Path:  "opencode",
			Model: "anthropic/claude-sonnet-4",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Ledger: LedgerConfig{
			Path: "",
		},
	}
}

func DefaultPath() string {
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_CONFIG")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cliproxy", "config.yaml")
}

// Load reads the config file at the default path, layered over defaults and
// under environment overrides. A .env file in the working directory is
// honored when present.
func Load() Config {
	_ = godotenv.Load()
	return LoadFrom(DefaultPath())
}

func LoadFrom(path string) Config {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		if buf, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(buf, &cfg)
		}
	}
	ApplyEnv(&cfg)
	return cfg
}

func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_API_KEYS")); v != "" {
		cfg.APIKeys = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_RATE_LIMIT")); v != "" {
		cfg.RateLimit = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_LOG_REQUESTS")); v != "" {
		cfg.LogRequests = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_TRACE_DIR")); v != "" {
		cfg.TraceDir = v
	}

	if v := strings.TrimSpace(os.Getenv("CLIPROXY_CODEX_PATH")); v != "" {
		cfg.Codex.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_CODEX_MODEL")); v != "" {
		cfg.Codex.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_CODEX_SANDBOX")); v != "" {
		cfg.Codex.Sandbox = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_CODEX_FULL_AUTO")); v != "" {
		cfg.Codex.FullAuto = parseBool(v)
	}

	if v := strings.TrimSpace(os.Getenv("CLIPROXY_OPENCODE_PATH")); v != "" {
		cfg.OpenCode.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_OPENCODE_MODEL")); v != "" {
		cfg.OpenCode.Model = v
	}

	if v := strings.TrimSpace(os.Getenv("CLIPROXY_METRICS_ENABLED")); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv("CLIPROXY_LEDGER_PATH")); v != "" {
		cfg.Ledger.Path = v
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseBool(val string) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	return val == "1" || val == "true" || val == "yes"
}
