// Package config loads omni runtime settings from YAML.
//
// Example omni.yaml:
//
//	adapter: sqlite
//	database: ./kanban.db
//	schema: ./store.cue
//	poll_interval: 500ms
//	error_ttl: 5s
//	resolve_timeout: 30s
//	log_level: debug
//
// Relative paths resolve against the directory holding the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Adapter names.
const (
	AdapterMemory = "memory"
	AdapterSQLite = "sqlite"
)

// Config holds runtime settings.
type Config struct {
	Adapter        string        `yaml:"adapter"`
	Database       string        `yaml:"database,omitempty"`
	Schema         string        `yaml:"schema"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ErrorTTL       time.Duration `yaml:"error_ttl,omitempty"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	Latency        time.Duration `yaml:"latency,omitempty"`
	LogLevel       string        `yaml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Adapter:        AdapterMemory,
		Schema:         "store.cue",
		PollInterval:   time.Second,
		ResolveTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// Load reads path over the defaults and validates the result. Unknown
// keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.Schema = resolvePath(dir, cfg.Schema)
	cfg.Database = resolvePath(dir, cfg.Database)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks adapter, durations and log level.
func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMemory:
	case AdapterSQLite:
		if c.Database == "" {
			return errors.New("adapter sqlite requires database")
		}
	default:
		return fmt.Errorf("unknown adapter %q (want %s or %s)", c.Adapter, AdapterMemory, AdapterSQLite)
	}
	if c.Schema == "" {
		return errors.New("schema is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	for name, d := range map[string]time.Duration{
		"error_ttl":       c.ErrorTTL,
		"resolve_timeout": c.ResolveTimeout,
		"latency":         c.Latency,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
