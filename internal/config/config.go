// Package config holds all linkforge configuration: content providers,
// retry budgets, rotation timing, platform health thresholds, persistence,
// and logging. Configuration is loaded from .forge/forge.yaml with
// environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all linkforge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Content provider configuration
	Providers ProvidersConfig `yaml:"providers"`

	// Retry budgets for provider/platform calls
	Retry RetryConfig `yaml:"retry"`

	// Campaign rotation loop settings
	Rotation RotationConfig `yaml:"rotation"`

	// Platform health model settings
	Health HealthConfig `yaml:"health"`

	// Persistent store
	Store StoreConfig `yaml:"store"`

	// Platform catalog
	Platforms PlatformsConfig `yaml:"platforms"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProvidersConfig configures the content-generation provider chain.
type ProvidersConfig struct {
	// Default provider gets 70% first-try bias in the chain
	// (gemini, openai, anthropic)
	Default string `yaml:"default"`

	Gemini    ProviderSettings `yaml:"gemini"`
	OpenAI    ProviderSettings `yaml:"openai"`
	Anthropic ProviderSettings `yaml:"anthropic"`
}

// ProviderSettings configures one content provider.
type ProviderSettings struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// Timeout parses the provider timeout, defaulting to 2 minutes.
func (p ProviderSettings) GetTimeout() time.Duration {
	return parseDuration(p.Timeout, 2*time.Minute)
}

// RetryConfig configures the retry executor budgets.
type RetryConfig struct {
	MaxRetries     int     `yaml:"max_retries"`
	BaseDelay      string  `yaml:"base_delay"`
	MaxDelay       string  `yaml:"max_delay"`
	AttemptTimeout string  `yaml:"attempt_timeout"`
	JitterFactor   float64 `yaml:"jitter_factor"`
}

// RotationConfig configures the campaign rotation loop.
type RotationConfig struct {
	// Delay before the next cycle after a cycle with at least one success
	SuccessDelay string `yaml:"success_delay"`
	// Delay before the next cycle after a cycle where every attempt failed
	FailureDelay string `yaml:"failure_delay"`
	// Hard cap on attempts per cycle, on top of 2x|platforms|
	MaxAttemptsPerCycle int `yaml:"max_attempts_per_cycle"`
}

// HealthConfig configures the platform health model.
type HealthConfig struct {
	CheckInterval    string `yaml:"check_interval"`
	Cooldown         string `yaml:"cooldown"`
	FailureThreshold int    `yaml:"failure_threshold"`
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PlatformsConfig configures the platform catalog.
type PlatformsConfig struct {
	CatalogPath string `yaml:"catalog_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "linkforge",
		Version: "1.0.0",

		Providers: ProvidersConfig{
			Default: "gemini",
			Gemini: ProviderSettings{
				Model:   "gemini-2.5-flash",
				Timeout: "120s",
			},
			OpenAI: ProviderSettings{
				Model:   "gpt-4o-mini",
				BaseURL: "https://api.openai.com/v1",
				Timeout: "120s",
			},
			Anthropic: ProviderSettings{
				Model:   "claude-3-5-haiku-20241022",
				BaseURL: "https://api.anthropic.com/v1",
				Timeout: "120s",
			},
		},

		Retry: RetryConfig{
			MaxRetries:     3,
			BaseDelay:      "1s",
			MaxDelay:       "30s",
			AttemptTimeout: "60s",
			JitterFactor:   0.2,
		},

		Rotation: RotationConfig{
			SuccessDelay:        "30s",
			FailureDelay:        "5m",
			MaxAttemptsPerCycle: 10,
		},

		Health: HealthConfig{
			CheckInterval:    "5m",
			Cooldown:         "30m",
			FailureThreshold: 3,
		},

		Store: StoreConfig{
			DatabasePath: ".forge/forge.db",
		},

		Platforms: PlatformsConfig{
			CatalogPath: ".forge/platforms.yaml",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config path under the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".forge", "forge.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Anthropic.APIKey = key
	}
	if p := os.Getenv("FORGE_DEFAULT_PROVIDER"); p != "" {
		c.Providers.Default = p
	}
	if path := os.Getenv("FORGE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if path := os.Getenv("FORGE_PLATFORMS"); path != "" {
		c.Platforms.CatalogPath = path
	}
	if level := os.Getenv("FORGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetRetryPolicy returns the configured retry budget values.
func (c *Config) GetRetryBaseDelay() time.Duration {
	return parseDuration(c.Retry.BaseDelay, 1*time.Second)
}

// GetRetryMaxDelay returns the backoff cap.
func (c *Config) GetRetryMaxDelay() time.Duration {
	return parseDuration(c.Retry.MaxDelay, 30*time.Second)
}

// GetRetryAttemptTimeout returns the per-attempt timeout.
func (c *Config) GetRetryAttemptTimeout() time.Duration {
	return parseDuration(c.Retry.AttemptTimeout, 60*time.Second)
}

// GetSuccessDelay returns the post-success cycle delay.
func (c *Config) GetSuccessDelay() time.Duration {
	return parseDuration(c.Rotation.SuccessDelay, 30*time.Second)
}

// GetFailureDelay returns the all-attempts-failed cycle delay.
func (c *Config) GetFailureDelay() time.Duration {
	return parseDuration(c.Rotation.FailureDelay, 5*time.Minute)
}

// GetHealthCheckInterval returns the periodic health check interval.
func (c *Config) GetHealthCheckInterval() time.Duration {
	return parseDuration(c.Health.CheckInterval, 5*time.Minute)
}

// GetCooldown returns the unhealthy-platform cooldown window.
func (c *Config) GetCooldown() time.Duration {
	return parseDuration(c.Health.Cooldown, 30*time.Minute)
}

// Validate checks the configuration for problems.
func (c *Config) Validate() error {
	switch c.Providers.Default {
	case "", "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown default provider: %s", c.Providers.Default)
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor >= 1 {
		return fmt.Errorf("jitter_factor must be in [0, 1): %v", c.Retry.JitterFactor)
	}
	if c.Rotation.MaxAttemptsPerCycle < 1 {
		return fmt.Errorf("max_attempts_per_cycle must be >= 1: %d", c.Rotation.MaxAttemptsPerCycle)
	}
	if c.Health.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be >= 1: %d", c.Health.FailureThreshold)
	}
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store database_path is required")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
