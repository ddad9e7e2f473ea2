package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, DefaultK1, cfg.Scoring.K1)
	assert.Equal(t, DefaultBParam, cfg.Scoring.BParam)
	assert.Equal(t, DefaultPhraseBoost, cfg.Scoring.PhraseBoost)
	assert.Equal(t, DefaultHeadingBoost, cfg.Scoring.HeadingBoost)
	assert.Equal(t, DefaultProximityStrength, cfg.Scoring.ProximityStrength)
	assert.Equal(t, DefaultLambda, cfg.Scoring.Lambda)
	assert.Equal(t, DefaultSimThreshold, cfg.Scoring.SimThreshold)
	assert.Equal(t, DefaultKNSStrength, cfg.Scoring.KNSStrength)
	assert.Equal(t, DefaultExpansionWeight, cfg.Scoring.ExpansionWeight)

	assert.Equal(t, "./docs.kpack", cfg.Output.PackPath)
	assert.NotEmpty(t, cfg.Output.CacheDir)

	assert.True(t, cfg.Telemetry.Enabled)
	assert.NotEmpty(t, cfg.Telemetry.DBPath)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 5, cfg.Logging.MaxFiles)
	assert.True(t, cfg.Logging.WriteToStderr)
}

func TestConfig_Validate_DefaultsPass(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonDefaultFixedKnob(t *testing.T) {
	cfg := NewConfig()
	cfg.Scoring.K1 = 2.0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring.k1")
}

func TestConfig_Validate_RejectsOutOfRangeLambda(t *testing.T) {
	cfg := NewConfig()
	cfg.Scoring.Lambda = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lambda")
}

func TestConfig_Validate_RejectsOutOfRangeSimThreshold(t *testing.T) {
	cfg := NewConfig()
	cfg.Scoring.SimThreshold = -0.1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sim_threshold")
}

func TestConfig_Validate_RejectsBadLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestConfig_WriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewConfig()
	cfg.Output.PackPath = "./custom.kpack"
	cfg.Scoring.Lambda = 0.7

	require.NoError(t, cfg.WriteYAML(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pack_path: ./custom.kpack")
	assert.Contains(t, string(data), "lambda: 0.7")
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultLambda, cfg.Scoring.Lambda)
	assert.Equal(t, "./docs.kpack", cfg.Output.PackPath)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	yamlContent := "output:\n  pack_path: ./project.kpack\nscoring:\n  lambda: 0.6\n  sim_threshold: 0.9\n  k1: 1.5\n  b_param: 0.75\n  phrase_boost: 0.6\n  heading_boost: 0.3\n  proximity_strength: 0.15\n  kns_strength: 0.02\n  expansion_weight: 0.35\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".packctl.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "./project.kpack", cfg.Output.PackPath)
	assert.Equal(t, 0.6, cfg.Scoring.Lambda)
	assert.Equal(t, 0.9, cfg.Scoring.SimThreshold)
}

func TestLoad_ProjectFileWithInvalidFixedKnobFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	yamlContent := "scoring:\n  k1: 3.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".packctl.yaml"), []byte(yamlContent), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PACKCTL_LAMBDA", "0.5")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Scoring.Lambda)
}

func TestLoad_EnvTelemetryToggle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PACKCTL_TELEMETRY", "false")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestGetUserConfigPath_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := GetUserConfigPath()
	assert.Equal(t, filepath.Join(dir, "packctl", "config.yaml"), path)
}

func TestUserConfigExists_FalseWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.False(t, UserConfigExists())
}

func TestLoadUserConfig_NilWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
