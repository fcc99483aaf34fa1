package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database (empty = $THINGAMAJIG_HOME/history/runs.db)
	DBPath string `yaml:"db_path"`

	// KeepRuns is the number of most recent runs to keep (0 = keep all)
	KeepRuns int `yaml:"keep_runs"`
}

// Config represents thingamajig configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written (empty = no file log)
	LogDir string `yaml:"log_dir"`

	// MaxSteps stops a run after this many instructions (0 = unlimited)
	MaxSteps uint64 `yaml:"max_steps"`

	// Timeout is the maximum wall-clock time for a run (0 = no timeout)
	Timeout time.Duration `yaml:"timeout"`

	// Trace prints every executed instruction and the register file
	Trace bool `yaml:"trace"`

	// Color controls colored output: auto, always, never
	Color string `yaml:"color"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   "",
		MaxSteps: 0, // Unlimited, a program runs until HALT
		Timeout:  0,
		Trace:    true,
		Color:    ColorAuto,
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   "",
			KeepRuns: 500,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		LogLevel string        `yaml:"log_level"`
		LogDir   string        `yaml:"log_dir"`
		MaxSteps uint64        `yaml:"max_steps"`
		Timeout  string        `yaml:"timeout"`
		Trace    bool          `yaml:"trace"`
		Color    string        `yaml:"color"`
		History  HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.MaxSteps != 0 {
		cfg.MaxSteps = yamlCfg.MaxSteps
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.Color != "" {
		cfg.Color = yamlCfg.Color
	}

	// Booleans default to true, so only keys present in the file may override them
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if _, exists := rawMap["trace"]; exists {
			cfg.Trace = yamlCfg.Trace
		}
		if historySection, exists := rawMap["history"]; exists && historySection != nil {
			historyMap, _ := historySection.(map[string]interface{})
			history := yamlCfg.History

			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = history.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = history.DBPath
			}
			if _, exists := historyMap["keep_runs"]; exists {
				cfg.History.KeepRuns = history.KeepRuns
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .thingamajig/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, HomeDirName, "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, maxSteps *uint64, timeout *time.Duration, trace *bool, color *string) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if maxSteps != nil {
		c.MaxSteps = *maxSteps
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if trace != nil {
		c.Trace = *trace
	}
	if color != nil {
		c.Color = *color
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q, must be one of: auto, always, never", c.Color)
	}

	if c.History.KeepRuns < 0 {
		return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
	}

	return nil
}
