package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MCPD_"

func applyEnv(c *Config) error {
	c.LogLevel = getEnvDefault("MCPD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvDefault("MCPD_LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = getEnvDefault("MCPD_METRICS_ADDR", c.MetricsAddr)
	c.DataDir = getEnvDefault("MCPD_DATA_DIR", c.DataDir)
	c.Container.Runtime = getEnvDefault("MCPD_CONTAINER_RUNTIME", c.Container.Runtime)
	c.HTTP.HistoryPath = getEnvDefault("MCPD_HTTP_HISTORY_PATH", c.HTTP.HistoryPath)
	c.HTTP.UserAgent = getEnvDefault("MCPD_HTTP_USER_AGENT", c.HTTP.UserAgent)
	c.Browser.Bin = getEnvDefault("MCPD_BROWSER_BIN", c.Browser.Bin)
	c.Store.Path = getEnvDefault("MCPD_STORE_PATH", c.Store.Path)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"MCPD_DEFAULT_TIMEOUT", &c.DefaultTimeout},
		{"MCPD_SLOW_TIMEOUT", &c.SlowTimeout},
		{"MCPD_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"MCPD_DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime},
		{"MCPD_HTTP_TIMEOUT", &c.HTTP.Timeout},
	}
	for _, d := range durations {
		if err := envDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MCPD_DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns},
		{"MCPD_DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns},
		{"MCPD_DATABASE_MAX_ROWS", &c.Database.MaxRows},
		{"MCPD_HTTP_HISTORY_LIMIT", &c.HTTP.HistoryLimit},
	}
	for _, i := range ints {
		if err := envInt(i.key, i.dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("MCPD_HTTP_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MCPD_HTTP_MAX_BODY_BYTES: %w", err)
		}
		c.HTTP.MaxBodyBytes = n
	}
	if v := os.Getenv("MCPD_BROWSER_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MCPD_BROWSER_HEADLESS: %w", err)
		}
		c.Browser.Headless = b
	}
	return nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Paths holds standard mcpd directory paths.
type Paths struct {
	// Home is the mcpd home directory (~/.mcpd)
	Home string

	// EnvFile is the .env file path (~/.mcpd/.env)
	EnvFile string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		mcpdHome := filepath.Join(home, ".mcpd")

		paths = &Paths{
			Home:    mcpdHome,
			EnvFile: filepath.Join(mcpdHome, ".env"),
		}
	})
	return paths
}

// ResetPaths clears the cached paths (for testing).
func ResetPaths() {
	pathsOnce = sync.Once{}
	paths = nil
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
