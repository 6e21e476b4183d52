// Package config holds the engine configuration: a YAML file layered under
// RETRACE_* environment overrides, validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	// DatabasePath is the SQLite file holding sessions, captures and
	// breakpoints.
	// Default: .retrace/retrace.db
	DatabasePath string `yaml:"database_path"`

	// PlaybackSpeed is the default continuous-playback multiplier.
	// Default: 1.0, Range: (0, 100]
	PlaybackSpeed float64 `yaml:"playback_speed"`

	// MaxSnapshots caps a single recording. Recording stops automatically
	// when the cap is reached, keeping runaway instrumentation from
	// exhausting memory. Set to 0 for unlimited.
	// Default: 100000
	MaxSnapshots int `yaml:"max_snapshots"`

	// HistoryFile is the readline history file used by the interactive
	// shell.
	// Default: .retrace/history
	HistoryFile string `yaml:"history_file"`

	// AutoSaveSessions persists every stopped recording to the database.
	// Default: true
	AutoSaveSessions bool `yaml:"auto_save_sessions"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DatabasePath:     ".retrace/retrace.db",
		PlaybackSpeed:    1.0,
		MaxSnapshots:     100000,
		HistoryFile:      ".retrace/history",
		AutoSaveSessions: true,
	}
}

// Validate checks if the configuration has valid values.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.PlaybackSpeed <= 0 || c.PlaybackSpeed > 100 {
		return fmt.Errorf("playback_speed must be in (0, 100] (got %g)", c.PlaybackSpeed)
	}
	if c.MaxSnapshots < 0 {
		return fmt.Errorf("max_snapshots cannot be negative (got %d)", c.MaxSnapshots)
	}
	return nil
}

// Load reads the configuration in layers: defaults, then the YAML file at
// path if it exists, then RETRACE_* environment overrides. An empty path
// skips the file layer entirely.
//
// Environment variables:
//   - RETRACE_DB_PATH: database file location
//   - RETRACE_PLAYBACK_SPEED: default playback multiplier
//   - RETRACE_MAX_SNAPSHOTS: recording cap, 0 for unlimited
//   - RETRACE_HISTORY_FILE: shell history file location
//   - RETRACE_AUTO_SAVE: persist stopped recordings (true/false)
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := parseEnvString("RETRACE_DB_PATH", &cfg.DatabasePath); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("RETRACE_PLAYBACK_SPEED", &cfg.PlaybackSpeed); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("RETRACE_MAX_SNAPSHOTS", &cfg.MaxSnapshots); err != nil {
		return cfg, err
	}
	if err := parseEnvString("RETRACE_HISTORY_FILE", &cfg.HistoryFile); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("RETRACE_AUTO_SAVE", &cfg.AutoSaveSessions); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	*dest = value
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
