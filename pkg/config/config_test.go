package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	globalConfig = Config{}
	t.Cleanup(viper.Reset)
}

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
}

func TestLoad_MissingFileAppliesDefaults(t *testing.T) {
	resetConfig(t)

	require.NoError(t, Load(t.TempDir()))

	cfg := GetConfig()
	assert.Equal(t, safety.DefaultConfig(), cfg.Guardian.Defaults)
	assert.Equal(t, 10*time.Second, cfg.Guardian.DetectorTimeout)
	assert.Equal(t, int64(1), cfg.Guardian.UnitCost)
	assert.InDelta(t, 0.3, cfg.Guardian.BiasTolerance, 1e-9)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "openai", cfg.Providers.Rewrite.Provider)
	assert.Equal(t, "openai", cfg.Providers.Bias.Provider)
}

func TestLoad_PartialDefaultsBlockKeepsFieldDefaults(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	writeConfigFile(t, dir, "guardian:\n  defaults:\n    toxicity_threshold: 0.5\n")

	require.NoError(t, Load(dir))

	cfg := GetConfig()
	assert.InDelta(t, 0.5, cfg.Guardian.Defaults.ToxicityThreshold, 1e-9)
	assert.Equal(t, safety.OnFlagWarnOnly, cfg.Guardian.Defaults.OnFlag)
	assert.True(t, cfg.Guardian.Defaults.EnableBiasCheck)
	assert.True(t, cfg.Guardian.Defaults.EnableJailbreakCheck)
	assert.True(t, cfg.Guardian.Defaults.EnableRemediation)
	assert.Equal(t, 10*time.Second, cfg.Guardian.DetectorTimeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	writeConfigFile(t, dir, `
guardian:
  defaults:
    on_flag: strict
    toxicity_threshold: 0.9
    enable_bias_check: false
  detector_timeout: 3s
  unit_cost: 5
`)

	require.NoError(t, Load(dir))

	cfg := GetConfig()
	assert.Equal(t, safety.OnFlagStrict, cfg.Guardian.Defaults.OnFlag)
	assert.InDelta(t, 0.9, cfg.Guardian.Defaults.ToxicityThreshold, 1e-9)
	assert.False(t, cfg.Guardian.Defaults.EnableBiasCheck)
	assert.Equal(t, 3*time.Second, cfg.Guardian.DetectorTimeout)
	assert.Equal(t, int64(5), cfg.Guardian.UnitCost)
	require.NoError(t, cfg.Guardian.Defaults.Validate())
}

func TestLoad_MalformedFileFails(t *testing.T) {
	resetConfig(t)

	dir := t.TempDir()
	writeConfigFile(t, dir, "guardian: [not: valid: yaml\n")

	assert.Error(t, Load(dir))
}
