// Package config provides configuration loading for the coral-modules CLI.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// CORAL_MODULES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/coral-modules/internal/safe"
	"github.com/coral-mesh/coral-modules/internal/sys/proc"
)

// Config is the CLI configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Finder FinderConfig `yaml:"finder"`
	Watch  WatchConfig  `yaml:"watch"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"CORAL_MODULES_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"CORAL_MODULES_LOG_PRETTY"`
}

// FinderConfig selects the pseudo-files the module finder reads.
type FinderConfig struct {
	MapsPath string `yaml:"maps_path" env:"CORAL_MODULES_MAPS_PATH"`
	AuxvPath string `yaml:"auxv_path" env:"CORAL_MODULES_AUXV_PATH"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval" env:"CORAL_MODULES_WATCH_INTERVAL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Finder: FinderConfig{
			MapsPath: proc.SelfMapsPath,
			AuxvPath: proc.SelfAuxvPath,
		},
		Watch: WatchConfig{
			Interval: 2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is set and the file exists) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := safe.ReadFile(path, nil)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Finder.MapsPath == "" {
		return fmt.Errorf("finder.maps_path must not be empty")
	}
	if c.Finder.AuxvPath == "" {
		return fmt.Errorf("finder.auxv_path must not be empty")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	return nil
}
