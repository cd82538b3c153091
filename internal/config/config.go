// Package config loads daemon configuration.
//
// Sources are applied in order: built-in defaults, an optional YAML file,
// an optional .env file (never overriding variables already set), and
// MCPD_* environment variables. Command-line flags are applied last by the
// caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	SlowTimeout     time.Duration `yaml:"slow_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DataDir         string        `yaml:"data_dir"`

	Container ContainerConfig `yaml:"container"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Browser   BrowserConfig   `yaml:"browser"`
	Store     StoreConfig     `yaml:"store"`
}

// ContainerConfig configures container-mcp.
type ContainerConfig struct {
	// Runtime is auto, docker or podman.
	Runtime string `yaml:"runtime"`
}

// DatabaseConfig configures database-mcp.
type DatabaseConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxRows         int           `yaml:"max_rows"`
}

// HTTPConfig configures http-mcp.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	HistoryPath  string        `yaml:"history_path"`
	HistoryLimit int           `yaml:"history_limit"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// BrowserConfig configures browser-mcp.
type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	Bin      string `yaml:"bin"`
}

// StoreConfig configures store-mcp.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "json",
		DefaultTimeout:  30 * time.Second,
		SlowTimeout:     300 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DataDir:         GetPaths().Home,
		Container:       ContainerConfig{Runtime: "auto"},
		Database: DatabaseConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			MaxRows:         500,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			HistoryLimit: 200,
			UserAgent:    "mcpd-http/1.0",
			MaxBodyBytes: 64 * 1024,
		},
		Browser: BrowserConfig{Headless: true},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// non-empty path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(cfg.DataDir); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads MCPD_ENV_FILE, or ./.env and <dataDir>/.env when present.
func loadDotEnv(dataDir string) error {
	candidates := []string{".env", filepath.Join(dataDir, ".env")}
	if explicit := os.Getenv("MCPD_ENV_FILE"); explicit != "" {
		candidates = []string{explicit}
	}

	var files []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.HTTP.HistoryPath == "" {
		c.HTTP.HistoryPath = filepath.Join(c.DataDir, "http-history.db")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "store.db")
	}
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.DefaultTimeout <= 0 {
		errs = append(errs, errors.New("default_timeout must be positive"))
	}
	if c.SlowTimeout < c.DefaultTimeout {
		errs = append(errs, errors.New("slow_timeout must not be shorter than default_timeout"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be json or console", c.LogFormat))
	}
	switch c.Container.Runtime {
	case "auto", "docker", "podman":
	default:
		errs = append(errs, fmt.Errorf("container.runtime %q must be auto, docker or podman", c.Container.Runtime))
	}
	if c.Database.MaxRows <= 0 {
		errs = append(errs, errors.New("database.max_rows must be positive"))
	}
	if c.HTTP.HistoryLimit < 0 {
		errs = append(errs, errors.New("http.history_limit must not be negative"))
	}
	return errors.Join(errs...)
}
