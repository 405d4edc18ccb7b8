package hoststore

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Environment overrides, applied on top of any config file.
const (
	EnvDriver      = "PUBLISHCORE_STORAGE_DRIVER"
	EnvSQLitePath  = "PUBLISHCORE_SQLITE_PATH"
	EnvPostgresDSN = "PUBLISHCORE_POSTGRES_DSN"
)

// Config selects and parameterizes a storage backend.
type Config struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoadConfig reads a YAML config file. A missing path yields a zero config
// so environment-only setups need no file at all.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	payload, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment overrides onto the config.
func (c Config) ApplyEnv() Config {
	if driver := os.Getenv(EnvDriver); driver != "" {
		c.Driver = driver
	}
	if path := os.Getenv(EnvSQLitePath); path != "" {
		c.SQLitePath = path
	}
	if dsn := os.Getenv(EnvPostgresDSN); dsn != "" {
		c.PostgresDSN = dsn
	}
	return c
}

// Open builds the store selected by the config. An empty driver falls back
// to the in-memory store.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case DriverPostgres:
		return NewPostgresStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenFromEnv loads the config file (optional) and opens the store with
// environment overrides applied.
func OpenFromEnv(configPath string) (Store, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return Open(cfg.ApplyEnv())
}
