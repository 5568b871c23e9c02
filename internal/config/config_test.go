package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidation(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAMLOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentinel.yaml")
	contents := `
log_level: Debug
plugin_directories:
  - /opt/sentinel/plugins
  - /opt/sentinel/plugins-extra
enable_blockchain: false
max_concurrent_operations: 8
timeout_seconds: 45
ai_processing_rate: 50
consensus_threshold: 0.8
difficulty_bits: 20
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"/opt/sentinel/plugins", "/opt/sentinel/plugins-extra"}, cfg.PluginDirectories)
	assert.False(t, cfg.EnableBlockchain)
	assert.Equal(t, 8, cfg.MaxConcurrentOperations)
	assert.InDelta(t, 45, cfg.TimeoutSeconds, 1e-9)
	assert.InDelta(t, 50, cfg.AIProcessingRateHz, 1e-9)
	assert.InDelta(t, 0.8, cfg.ConsensusThreshold, 1e-9)
	assert.Equal(t, 20, cfg.DifficultyBits)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	t.Setenv("SENTINEL_CONSENSUS_THRESHOLD", "0.9")
	t.Setenv("SENTINEL_DIFFICULTY_BITS", "24")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.ConsensusThreshold, 1e-9)
	assert.Equal(t, 24, cfg.DifficultyBits)
}

func TestValidateRejectsConsensusThresholdOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.ConsensusThreshold = 0.2
	assert.Error(t, cfg.Validate())

	cfg.ConsensusThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsDifficultyBitsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.DifficultyBits = 0
	assert.Error(t, cfg.Validate())

	cfg.DifficultyBits = 33
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "Verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := Default()
	cfg.TimeoutSeconds = 0
	assert.Error(t, cfg.Validate())
}
