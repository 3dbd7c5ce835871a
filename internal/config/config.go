package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Defaults applied to a missing or partial config file.
const (
	DefaultLogLevel      = "info"
	DefaultDrainInterval = time.Second
	DefaultBusBuffer     = 256
)

// Duration is a time.Duration written as a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Store configures the batch recorder.
type Store struct {
	Enabled bool `toml:"enabled"`
}

// Config represents the global ~/.tgp/config.toml.
type Config struct {
	DefaultAccount string   `toml:"default_account"`
	LogLevel       string   `toml:"log_level"`
	DrainInterval  Duration `toml:"drain_interval"`
	BusBuffer      int      `toml:"bus_buffer"`
	Store          Store    `toml:"store"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		DrainInterval: Duration{DefaultDrainInterval},
		BusBuffer:     DefaultBusBuffer,
		Store:         Store{Enabled: true},
	}
}

// Load reads config from the given path on top of Default. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.DrainInterval.Duration < 0 {
		return fmt.Errorf("drain_interval must not be negative, got %s", c.DrainInterval)
	}
	if c.BusBuffer < 0 {
		return fmt.Errorf("bus_buffer must not be negative, got %d", c.BusBuffer)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
