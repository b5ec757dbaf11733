// Package config loads the orchestrator's configuration: a base config.toml,
// an optional per-environment overlay, environment variable overrides, and
// validation, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/tessera-ai/tessera/pkg/database"
	"github.com/tessera-ai/tessera/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvTesseraEnv     = "TESSERA_ENV"
	EnvTesseraVersion = "TESSERA_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "TESSERA_DB_HOST",
	Port:            "TESSERA_DB_PORT",
	Name:            "TESSERA_DB_NAME",
	User:            "TESSERA_DB_USER",
	Password:        "TESSERA_DB_PASSWORD",
	SSLMode:         "TESSERA_DB_SSL_MODE",
	MaxOpenConns:    "TESSERA_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "TESSERA_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "TESSERA_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "TESSERA_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "TESSERA_STORAGE_CONTAINER_NAME",
	ConnectionString: "TESSERA_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the orchestration service.
type Config struct {
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Extraction   ExtractionConfig   `toml:"extraction"`
	Models       []ModelEntry       `toml:"models"`
	Backend      BackendConfig      `toml:"backend"`
	Database     database.Config    `toml:"database"`
	Storage      storage.Config     `toml:"storage"`
	Version      string             `toml:"version"`
}

// Env returns the TESSERA_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTesseraEnv); env != "" {
		return env
	}
	return "local"
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and
// environment variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if len(overlay.Models) > 0 {
		c.Models = overlay.Models
	}
	c.Orchestrator.Merge(&overlay.Orchestrator)
	c.Extraction.Merge(&overlay.Extraction)
	c.Backend.Merge(&overlay.Backend)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
}

// Finalize applies defaults, environment variable overrides, and validation
// to every section.
func (c *Config) Finalize() error {
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if v := os.Getenv(EnvTesseraVersion); v != "" {
		c.Version = v
	}

	if err := c.Orchestrator.Finalize(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := c.Extraction.Finalize(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := c.finalizeModels(); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if err := c.Backend.Finalize(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvTesseraEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
