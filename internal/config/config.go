// Package config loads packctl's CLI-facing configuration: the scoring
// knobs documented alongside the core query/pack engines, plus settings
// that only matter to the command-line tool itself (output paths,
// telemetry, logging). The core packages (pkg/pack, pkg/query) never read
// this package; it exists purely to populate their Options/BuildOptions
// structs from a file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScoringConfig carries the scoring knobs named in the core specification.
// k1, b_param, phrase_boost, heading_boost, and proximity_strength mirror
// constants the query engine already hardcodes (pkg/query/bm25.go); they
// are recorded here so the engine's behavior is fully documented in one
// place, but packctl only accepts values equal to the built-in defaults —
// the engine's scoring formula is fixed, not pluggable. lambda,
// sim_threshold, kns_strength, and expansion_weight likewise describe
// pkg/query behavior, and only lambda/sim_threshold are currently
// accepted as per-query overrides (query.Options.MMRLambda/SimThreshold).
type ScoringConfig struct {
	K1                float64 `yaml:"k1" json:"k1"`
	BParam            float64 `yaml:"b_param" json:"b_param"`
	PhraseBoost       float64 `yaml:"phrase_boost" json:"phrase_boost"`
	HeadingBoost      float64 `yaml:"heading_boost" json:"heading_boost"`
	ProximityStrength float64 `yaml:"proximity_strength" json:"proximity_strength"`
	Lambda            float64 `yaml:"lambda" json:"lambda"`
	SimThreshold      float64 `yaml:"sim_threshold" json:"sim_threshold"`
	KNSStrength       float64 `yaml:"kns_strength" json:"kns_strength"`
	ExpansionWeight   float64 `yaml:"expansion_weight" json:"expansion_weight"`
}

// OutputConfig configures where packctl writes artifacts.
type OutputConfig struct {
	// PackPath is the default destination for `packctl build`'s output
	// sink (BuildOptions.SinkPath).
	PackPath string `yaml:"pack_path" json:"pack_path"`

	// CacheDir is a cache directory setting loaded and merged like the
	// others; no subcommand reads it, and internal/packcache keeps mounted
	// packs in memory only.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// TelemetryConfig controls the query telemetry log (internal/telemetry).
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"db_path" json:"db_path"`
}

// LoggingConfig controls the internal/logging setup shared by every
// subcommand and the MCP adapter.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// Config is packctl's complete configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// Documented defaults for the scoring knobs; see the core specification's
// scoring section for derivations.
const (
	DefaultK1                = 1.5
	DefaultBParam            = 0.75
	DefaultPhraseBoost       = 0.6
	DefaultHeadingBoost      = 0.3
	DefaultProximityStrength = 0.15
	DefaultLambda            = 0.8
	DefaultSimThreshold      = 0.92
	DefaultKNSStrength       = 0.02
	DefaultExpansionWeight   = 0.35
)

// NewConfig returns a Config populated with documented defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Scoring: ScoringConfig{
			K1:                DefaultK1,
			BParam:            DefaultBParam,
			PhraseBoost:       DefaultPhraseBoost,
			HeadingBoost:      DefaultHeadingBoost,
			ProximityStrength: DefaultProximityStrength,
			Lambda:            DefaultLambda,
			SimThreshold:      DefaultSimThreshold,
			KNSStrength:       DefaultKNSStrength,
			ExpansionWeight:   DefaultExpansionWeight,
		},
		Output: OutputConfig{
			PackPath: "./docs.kpack",
			CacheDir: defaultCacheDir(),
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			DBPath:  defaultTelemetryPath(),
		},
		Logging: LoggingConfig{
			Level:         "info",
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".packctl", "cache")
	}
	return filepath.Join(home, ".packctl", "cache")
}

func defaultTelemetryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".packctl", "telemetry.db")
	}
	return filepath.Join(home, ".packctl", "telemetry.db")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/packctl/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/packctl/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "packctl", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "packctl", "config.yaml")
	}
	return filepath.Join(home, ".config", "packctl", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, if any.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for dir, applying sources in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/packctl/config.yaml)
//  3. Project config (.packctl.yaml in dir)
//  4. Environment variables (PACKCTL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .packctl.yaml or
// .packctl.yml in dir. A missing file is not an error.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".packctl.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".packctl.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Scoring.K1 != 0 {
		c.Scoring.K1 = other.Scoring.K1
	}
	if other.Scoring.BParam != 0 {
		c.Scoring.BParam = other.Scoring.BParam
	}
	if other.Scoring.PhraseBoost != 0 {
		c.Scoring.PhraseBoost = other.Scoring.PhraseBoost
	}
	if other.Scoring.HeadingBoost != 0 {
		c.Scoring.HeadingBoost = other.Scoring.HeadingBoost
	}
	if other.Scoring.ProximityStrength != 0 {
		c.Scoring.ProximityStrength = other.Scoring.ProximityStrength
	}
	if other.Scoring.Lambda != 0 {
		c.Scoring.Lambda = other.Scoring.Lambda
	}
	if other.Scoring.SimThreshold != 0 {
		c.Scoring.SimThreshold = other.Scoring.SimThreshold
	}
	if other.Scoring.KNSStrength != 0 {
		c.Scoring.KNSStrength = other.Scoring.KNSStrength
	}
	if other.Scoring.ExpansionWeight != 0 {
		c.Scoring.ExpansionWeight = other.Scoring.ExpansionWeight
	}

	if other.Output.PackPath != "" {
		c.Output.PackPath = other.Output.PackPath
	}
	if other.Output.CacheDir != "" {
		c.Output.CacheDir = other.Output.CacheDir
	}

	if other.Telemetry.DBPath != "" {
		c.Telemetry.DBPath = other.Telemetry.DBPath
	}
	c.Telemetry.Enabled = other.Telemetry.Enabled || c.Telemetry.Enabled

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies PACKCTL_* environment variable overrides,
// the highest-precedence configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PACKCTL_LAMBDA"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Scoring.Lambda = f
		}
	}
	if v := os.Getenv("PACKCTL_SIM_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Scoring.SimThreshold = f
		}
	}
	if v := os.Getenv("PACKCTL_PACK_PATH"); v != "" {
		c.Output.PackPath = v
	}
	if v := os.Getenv("PACKCTL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PACKCTL_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// Validate checks the configuration for internal consistency. Scoring
// knobs that the query/pack engines hardcode rather than accept as
// overrides (k1, b_param, phrase_boost, heading_boost,
// proximity_strength, kns_strength, expansion_weight) must match their
// documented defaults exactly — packctl has no way to honor a different
// value, so it refuses to silently ignore one.
func (c *Config) Validate() error {
	fixed := []struct {
		name string
		got  float64
		want float64
	}{
		{"scoring.k1", c.Scoring.K1, DefaultK1},
		{"scoring.b_param", c.Scoring.BParam, DefaultBParam},
		{"scoring.phrase_boost", c.Scoring.PhraseBoost, DefaultPhraseBoost},
		{"scoring.heading_boost", c.Scoring.HeadingBoost, DefaultHeadingBoost},
		{"scoring.proximity_strength", c.Scoring.ProximityStrength, DefaultProximityStrength},
		{"scoring.kns_strength", c.Scoring.KNSStrength, DefaultKNSStrength},
		{"scoring.expansion_weight", c.Scoring.ExpansionWeight, DefaultExpansionWeight},
	}
	for _, f := range fixed {
		if f.got != f.want {
			return fmt.Errorf("%s is fixed by the query engine; got %v, want %v", f.name, f.got, f.want)
		}
	}

	if c.Scoring.Lambda < 0 || c.Scoring.Lambda > 1 {
		return fmt.Errorf("scoring.lambda must be between 0 and 1, got %v", c.Scoring.Lambda)
	}
	if c.Scoring.SimThreshold < 0 || c.Scoring.SimThreshold > 1 {
		return fmt.Errorf("scoring.sim_threshold must be between 0 and 1, got %v", c.Scoring.SimThreshold)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .packctl.yaml/.yml file, returning the first directory that has one. If
// neither is found before reaching the filesystem root, it returns the
// absolute form of startDir unchanged.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".packctl.yaml")) ||
			fileExists(filepath.Join(currentDir, ".packctl.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}
