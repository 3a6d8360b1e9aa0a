package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "appforge", cfg.Name)
	assert.Equal(t, 8100, cfg.Preview.PortRangeStart)
	assert.Equal(t, 8200, cfg.Preview.PortRangeEnd)
	assert.Equal(t, 3, cfg.Validation.MaxRepairAttempts)
	assert.Equal(t, 4096, cfg.Memory.ContextBudget)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Preview.PortRangeStart, cfg.Preview.PortRangeStart)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".appforge", "config.yaml")

	cfg := DefaultConfig()
	cfg.Preview.PortRangeStart = 9000
	cfg.Logging.DebugMode = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Preview.PortRangeStart)
	assert.True(t, loaded.Logging.DebugMode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APPFORGE_PREVIEW_POLL", "5s")
	t.Setenv("APPFORGE_PREVIEW_PORT_START", "9100")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "5s", cfg.Preview.PollInterval)
	assert.Equal(t, 9100, cfg.Preview.PortRangeStart)
	assert.Equal(t, "sk-test", cfg.LLM.AnthropicAPIKey)
}

func TestEnvOverrideBadIntIgnored(t *testing.T) {
	t.Setenv("APPFORGE_PREVIEW_PORT_START", "not-a-number")
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 8100, cfg.Preview.PortRangeStart)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, Duration("2s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("garbage", time.Minute))
}
