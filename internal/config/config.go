// Package config handles quill configuration: defaults, the YAML config
// file, and environment overrides. A Config is built once at startup and
// passed by reference; nothing here is a process-wide mutable global.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all quill configuration.
type Config struct {
	// LLM settings
	Model          string  `mapstructure:"model" yaml:"model"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP           float64 `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	// Agent loop settings
	MaxIterations int  `mapstructure:"max_iterations" yaml:"max_iterations"`
	HistoryLimit  int  `mapstructure:"history_limit" yaml:"history_limit"`
	PersistMemory bool `mapstructure:"persist_memory" yaml:"persist_memory"`

	Reflection ReflectionConfig `mapstructure:"reflection" yaml:"reflection"`

	// Set from the --verbose flag, never from file.
	Verbose bool `mapstructure:"-" yaml:"-"`
}

// ReflectionConfig controls the answer-improvement pass.
type ReflectionConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// ValidationError reports unusable configuration, surfaced to the CLI
// before any turn runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Model:          "gpt-3.5-turbo",
		BaseURL:        "https://api.openai.com/v1",
		Temperature:    0.7,
		TopP:           0.9,
		TimeoutSeconds: 60,
		MaxIterations:  10,
		HistoryLimit:   40,
		PersistMemory:  true,
		Reflection: ReflectionConfig{
			Enabled:     false,
			Temperature: 0.7,
		},
	}
}

// Dir returns the quill state directory: $QUILL_HOME, or ~/.quill.
func Dir() (string, error) {
	if home := os.Getenv("QUILL_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".quill"), nil
}

// Path returns the config file path inside Dir.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// MemoryPath returns the persisted memory file path inside Dir.
func MemoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "memory.json"), nil
}

// Load builds the configuration from defaults, the config file, and the
// environment, in ascending precedence. path overrides the default config
// file location when non-empty. A missing config file is fine; a malformed
// one is not.
func Load(path string) (*Config, error) {
	// Pick up a local .env before reading the environment.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		defaultPath, err := Path()
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(defaultPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = defaultModelFor(cfg.BaseURL)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("top_p", d.TopP)
	v.SetDefault("timeout_seconds", d.TimeoutSeconds)
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("history_limit", d.HistoryLimit)
	v.SetDefault("persist_memory", d.PersistMemory)
	v.SetDefault("reflection.enabled", d.Reflection.Enabled)
	v.SetDefault("reflection.temperature", d.Reflection.Temperature)
}

// bindEnv wires the provider-agnostic env cascades. The first set
// variable in each list wins.
func bindEnv(v *viper.Viper) {
	v.BindEnv("api_key",
		"LLM_API_KEY",
		"OPENAI_API_KEY",
		"DEEPSEEK_API_KEY",
		"ANTHROPIC_API_KEY",
		"AZURE_OPENAI_API_KEY",
	)
	v.BindEnv("base_url",
		"LLM_BASE_URL",
		"OPENAI_BASE_URL",
		"OPENAI_API_BASE",
		"DEEPSEEK_BASE_URL",
		"ANTHROPIC_BASE_URL",
		"AZURE_OPENAI_ENDPOINT",
	)
	v.BindEnv("model", "LLM_MODEL")
	v.BindEnv("temperature", "LLM_TEMPERATURE")
	v.BindEnv("timeout_seconds", "LLM_TIMEOUT")
	v.BindEnv("max_iterations", "QUILL_MAX_ITERATIONS")
	v.BindEnv("history_limit", "QUILL_HISTORY_LIMIT")
}

// defaultModelFor picks a sensible model when none was configured, based
// on which provider the base URL points at.
func defaultModelFor(baseURL string) string {
	lower := strings.ToLower(baseURL)
	switch {
	case strings.Contains(lower, "deepseek"):
		return "deepseek-chat"
	case strings.Contains(lower, "anthropic"):
		return "claude-3-sonnet-20240229"
	case strings.Contains(lower, "azure"):
		if dep := os.Getenv("AZURE_OPENAI_DEPLOYMENT"); dep != "" {
			return dep
		}
		return "gpt-35-turbo"
	default:
		return DefaultConfig().Model
	}
}

// Validate checks that the configuration is usable for making LLM calls.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ValidationError{
			Field:  "api_key",
			Reason: "no API key found; set LLM_API_KEY or OPENAI_API_KEY",
		}
	}
	if c.Model == "" {
		return &ValidationError{Field: "model", Reason: "model name is empty"}
	}
	if c.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "timeout_seconds", Reason: "must be positive"}
	}
	if c.MaxIterations <= 0 {
		return &ValidationError{Field: "max_iterations", Reason: "must be positive"}
	}
	return nil
}

// Save writes the configuration as YAML, creating parent directories as
// needed. The API key is omitted when empty so starter files do not
// invite committing secrets.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Exists reports whether a config file is present at the default path.
func Exists() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
