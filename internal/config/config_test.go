package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "linkforge", cfg.Name)
	assert.Equal(t, "gemini", cfg.Providers.Default)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.GetSuccessDelay())
	assert.Equal(t, 5*time.Minute, cfg.GetFailureDelay())
	assert.Equal(t, 30*time.Minute, cfg.GetCooldown())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	content := []byte(`
providers:
  default: openai
rotation:
  success_delay: 10s
  failure_delay: 2m
health:
  failure_threshold: 5
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.Equal(t, 10*time.Second, cfg.GetSuccessDelay())
	assert.Equal(t, 2*time.Minute, cfg.GetFailureDelay())
	assert.Equal(t, 5, cfg.Health.FailureThreshold)
	// Untouched sections keep defaults
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("provider keys", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("OPENAI_API_KEY", "oai-key")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.Providers.Gemini.APIKey)
		assert.Equal(t, "oai-key", cfg.Providers.OpenAI.APIKey)
		assert.Equal(t, "ant-key", cfg.Providers.Anthropic.APIKey)
	})

	t.Run("FORGE_DEFAULT_PROVIDER overrides default", func(t *testing.T) {
		t.Setenv("FORGE_DEFAULT_PROVIDER", "anthropic")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "anthropic", cfg.Providers.Default)
	})

	t.Run("FORGE_DB overrides database path", func(t *testing.T) {
		t.Setenv("FORGE_DB", "/tmp/other.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/other.db", cfg.Store.DatabasePath)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Providers.Default = "clippy"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Retry.JitterFactor = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Store.DatabasePath = ""
	assert.Error(t, bad.Validate())
}

func TestParseDuration_FallsBackOnGarbage(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("-5s", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}
