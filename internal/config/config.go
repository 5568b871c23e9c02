// Package config loads and validates the runtime's recognized
// configuration options (spec.md §6), following the teacher's
// internal/config.Config's shape — a flat struct loaded from a file,
// then overridden by environment variables — but backed by a YAML
// document (gopkg.in/yaml.v3) instead of a flat .env, since spec.md's
// options are nested lists (plugin_directories) and typed ranges that a
// .env file represents awkwardly. godotenv still loads an optional
// .env for the environment-variable override layer, exactly as the
// teacher's Load does for its MarbleRun/Neo N3 settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
)

// LogLevel is one of spec.md §6's recognized log thresholds.
type LogLevel string

const (
	LogLevelDebug    LogLevel = "Debug"
	LogLevelInfo     LogLevel = "Info"
	LogLevelWarning  LogLevel = "Warning"
	LogLevelError    LogLevel = "Error"
	LogLevelCritical LogLevel = "Critical"
)

func (l LogLevel) valid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelCritical:
		return true
	default:
		return false
	}
}

// Config holds every option spec.md §6 recognizes.
type Config struct {
	LogLevel                LogLevel `yaml:"log_level"`
	PluginDirectories       []string `yaml:"plugin_directories"`
	EnableBlockchain        bool     `yaml:"enable_blockchain"`
	MaxConcurrentOperations int      `yaml:"max_concurrent_operations"`
	TimeoutSeconds          float64  `yaml:"timeout_seconds"`
	AIProcessingRateHz      float64  `yaml:"ai_processing_rate"`
	ConsensusThreshold      float64  `yaml:"consensus_threshold"`
	DifficultyBits          int      `yaml:"difficulty_bits"`
}

// Default returns spec.md's documented defaults for options the table
// doesn't pin to a single required value.
func Default() Config {
	return Config{
		LogLevel:                LogLevelInfo,
		EnableBlockchain:        true,
		MaxConcurrentOperations: 4,
		TimeoutSeconds:          30,
		AIProcessingRateHz:      25,
		ConsensusThreshold:      0.67,
		DifficultyBits:          16,
	}
}

// Load reads path as YAML into Default()'s base, then applies
// environment-variable overrides (loading envFile via godotenv first,
// if it exists), and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		c.LogLevel = LogLevel(v)
	}
	if v := os.Getenv("SENTINEL_PLUGIN_DIRECTORIES"); v != "" {
		c.PluginDirectories = strings.Split(v, ",")
	}
	if v, ok := getBoolEnv("SENTINEL_ENABLE_BLOCKCHAIN"); ok {
		c.EnableBlockchain = v
	}
	if v, ok := getIntEnv("SENTINEL_MAX_CONCURRENT_OPERATIONS"); ok {
		c.MaxConcurrentOperations = v
	}
	if v, ok := getFloatEnv("SENTINEL_TIMEOUT_SECONDS"); ok {
		c.TimeoutSeconds = v
	}
	if v, ok := getFloatEnv("SENTINEL_AI_PROCESSING_RATE"); ok {
		c.AIProcessingRateHz = v
	}
	if v, ok := getFloatEnv("SENTINEL_CONSENSUS_THRESHOLD"); ok {
		c.ConsensusThreshold = v
	}
	if v, ok := getIntEnv("SENTINEL_DIFFICULTY_BITS"); ok {
		c.DifficultyBits = v
	}
}

func getBoolEnv(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(v)
	return parsed, err == nil
}

func getIntEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(v)
	return parsed, err == nil
}

func getFloatEnv(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(v, 64)
	return parsed, err == nil
}

// Validate enforces spec.md §6's typed bounds, returning a classified
// configuration error for the first violation found.
func (c Config) Validate() error {
	if !c.LogLevel.valid() {
		return cerrors.InvalidConfig("log_level", fmt.Sprintf("must be one of Debug,Info,Warning,Error,Critical, got %q", c.LogLevel))
	}
	if c.MaxConcurrentOperations < 1 {
		return cerrors.OutOfRange("max_concurrent_operations", 1, nil)
	}
	if c.TimeoutSeconds <= 0 {
		return cerrors.OutOfRange("timeout_seconds", 0, nil)
	}
	if c.AIProcessingRateHz <= 0 {
		return cerrors.OutOfRange("ai_processing_rate", 0, nil)
	}
	if c.ConsensusThreshold < 0.5 || c.ConsensusThreshold > 1.0 {
		return cerrors.OutOfRange("consensus_threshold", 0.5, 1.0)
	}
	if c.DifficultyBits < 1 || c.DifficultyBits > 32 {
		return cerrors.OutOfRange("difficulty_bits", 1, 32)
	}
	return nil
}
