// Package config loads service configuration from a yaml file and the
// environment. Environment variables override file values; provider API
// keys may reference the environment with ${VAR} placeholders so keys never
// need to live in the file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment override variables, e.g.
// SUPEREGO_SERVER__PORT=9090 sets server.port.
const envPrefix = "SUPEREGO_"

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig    `koanf:"server"`
	Storage       StorageConfig   `koanf:"storage"`
	Providers     ProvidersConfig `koanf:"providers"`
	Constitutions ConstConfig     `koanf:"constitutions"`
	Compare       CompareConfig   `koanf:"compare"`
	Logging       LoggingConfig   `koanf:"logging"`
	Tracing       TracingConfig   `koanf:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `koanf:"port"`
}

// StorageConfig selects the session backend.
type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

// SQLiteConfig locates the sqlite database file.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// ProvidersConfig holds per-provider credentials and defaults.
type ProvidersConfig struct {
	Default   string         `koanf:"default"`
	Anthropic ProviderConfig `koanf:"anthropic"`
	OpenAI    ProviderConfig `koanf:"openai"`
}

// ProviderConfig is one model backend's credentials and default model.
type ProviderConfig struct {
	APIKey       string `koanf:"api_key"`
	DefaultModel string `koanf:"default_model"`
}

// ConstConfig locates the policy library.
type ConstConfig struct {
	Dir string `koanf:"dir"`
}

// CompareConfig holds named branch presets for comparison runs.
type CompareConfig struct {
	Presets []BranchPreset `koanf:"presets"`
}

// BranchPreset is one preconfigured comparison branch.
type BranchPreset struct {
	BranchID       string   `koanf:"branch_id"`
	Constitutions  []string `koanf:"constitutions"`
	Provider       string   `koanf:"provider"`
	Model          string   `koanf:"model"`
	AdherenceLevel string   `koanf:"adherence_level"`
	SkipGate       bool     `koanf:"skip_gate"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// TracingConfig toggles span export.
type TracingConfig struct {
	Enabled bool `koanf:"enabled"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the optional yaml file at path, applies environment overrides
// and defaults, and expands ${VAR} placeholders in API keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// A missing default file is fine; env vars can carry everything.
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	cfg.Providers.Anthropic.APIKey = substituteEnvVars(cfg.Providers.Anthropic.APIKey)
	cfg.Providers.OpenAI.APIKey = substituteEnvVars(cfg.Providers.OpenAI.APIKey)

	// Conventional provider env vars fill in when nothing else did.
	if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":         8000,
		"storage.type":        "memory",
		"storage.sqlite.path": "superego.db",
		"providers.default":   "anthropic",
		"constitutions.dir":   "constitutions",
		"logging.level":       "info",
		"logging.format":      "json",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			_ = k.Set(key, val)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
