package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "APPSCANNER_DB_"

// parseBoolEnv reads an environment variable and parses it as a boolean.
// Returns the parsed value and a boolean indicating if the variable was present.
// Supports true/false, 1/0, yes/no, on/off, t/f, y/n (case-insensitive).
func parseBoolEnv(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed, true
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Config holds the activity journal database options
type Config struct {
	// Connection settings
	Path                  string        `json:"path" yaml:"path"`
	MaxConnections        int           `json:"maxConnections" yaml:"maxConnections"`
	MaxIdleConns          int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime       time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"` // 0 = no limit
	ConnMaxIdleTime       time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"` // 0 = no limit
	ForceSingleConnection bool          `json:"forceSingleConnection" yaml:"forceSingleConnection"`

	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`

	// SQLite pragmas
	JournalMode     string `json:"journalMode" yaml:"journalMode"`
	SynchronousMode string `json:"synchronousMode" yaml:"synchronousMode"`
	CacheSize       int    `json:"cacheSize" yaml:"cacheSize"`     // KB
	BusyTimeout     int    `json:"busyTimeout" yaml:"busyTimeout"` // milliseconds
	ForeignKeys     bool   `json:"foreignKeys" yaml:"foreignKeys"`

	// Journal entries older than this are pruned on startup (0 = keep everything)
	RetentionDays int  `json:"retentionDays" yaml:"retentionDays"`
	EnableCleanup bool `json:"enableCleanup" yaml:"enableCleanup"`

	Environment string `json:"environment" yaml:"environment"`
	LogLevel    string `json:"logLevel" yaml:"logLevel"`
}

// DefaultPath places the journal under the user's config directory,
// falling back to the working directory.
func DefaultPath(filename string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", filename)
	}
	return filepath.Join(dir, "appscanner", filename)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path:                  "appscanner.db",
		MaxConnections:        4,
		MaxIdleConns:          2,
		ConnMaxLifetime:       24 * time.Hour,
		ConnMaxIdleTime:       30 * time.Minute,
		ForceSingleConnection: false, // let the service decide from the journal mode

		AutoMigrate: true,

		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		CacheSize:       2000,
		BusyTimeout:     5000,
		ForeignKeys:     true,

		RetentionDays: 30,
		EnableCleanup: true,

		Environment: "production",
		LogLevel:    "info",
	}
}

// DevelopmentConfig returns a configuration optimized for development
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Path = "appscanner_dev.db"
	config.Environment = "development"
	config.LogLevel = "debug"
	config.RetentionDays = 7
	config.EnableCleanup = false
	return config
}

// TestConfig returns an in-memory configuration for tests
func TestConfig() *Config {
	config := DefaultConfig()
	config.Path = ":memory:"
	config.Environment = "test"
	config.LogLevel = "error"
	config.AutoMigrate = true
	config.RetentionDays = 0
	config.EnableCleanup = false

	// an in-memory database lives and dies with its only connection
	config.ForceSingleConnection = true
	config.ConnMaxLifetime = 0
	config.ConnMaxIdleTime = 0

	config.JournalMode = "MEMORY"
	config.SynchronousMode = "OFF"
	config.CacheSize = 1000
	config.BusyTimeout = 1000

	return config
}

// LoadFromEnvironment applies APPSCANNER_DB_* overrides
func (c *Config) LoadFromEnvironment() error {
	if path := os.Getenv(envPrefix + "PATH"); path != "" {
		c.Path = path
	}

	if maxConns := os.Getenv(envPrefix + "MAX_CONNECTIONS"); maxConns != "" {
		if val, err := strconv.Atoi(maxConns); err == nil && val > 0 {
			c.MaxConnections = val
		}
	}

	if maxIdle := os.Getenv(envPrefix + "MAX_IDLE_CONNECTIONS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil && val >= 0 {
			c.MaxIdleConns = val
		}
	}

	if lifetime := os.Getenv(envPrefix + "CONN_MAX_LIFETIME"); lifetime != "" {
		if val, err := time.ParseDuration(lifetime); err == nil {
			c.ConnMaxLifetime = val
		}
	}

	if idleTime := os.Getenv(envPrefix + "CONN_MAX_IDLE_TIME"); idleTime != "" {
		if val, err := time.ParseDuration(idleTime); err == nil {
			c.ConnMaxIdleTime = val
		}
	}

	if forceSingle, present := parseBoolEnv(envPrefix + "FORCE_SINGLE_CONNECTION"); present {
		c.ForceSingleConnection = forceSingle
	}

	if autoMigrate, present := parseBoolEnv(envPrefix + "AUTO_MIGRATE"); present {
		c.AutoMigrate = autoMigrate
	}

	if journalMode := os.Getenv(envPrefix + "JOURNAL_MODE"); journalMode != "" {
		c.JournalMode = journalMode
	}

	if syncMode := os.Getenv(envPrefix + "SYNCHRONOUS_MODE"); syncMode != "" {
		c.SynchronousMode = strings.ToUpper(syncMode)
	}

	if cacheSize := os.Getenv(envPrefix + "CACHE_SIZE"); cacheSize != "" {
		if val, err := strconv.Atoi(cacheSize); err == nil && val > 0 {
			c.CacheSize = val
		}
	}

	if busyTimeout := os.Getenv(envPrefix + "BUSY_TIMEOUT"); busyTimeout != "" {
		if val, err := strconv.Atoi(busyTimeout); err == nil && val >= 0 {
			c.BusyTimeout = val
		}
	}

	if foreignKeys, present := parseBoolEnv(envPrefix + "FOREIGN_KEYS"); present {
		c.ForeignKeys = foreignKeys
	}

	if retentionDays := os.Getenv(envPrefix + "RETENTION_DAYS"); retentionDays != "" {
		if val, err := strconv.Atoi(retentionDays); err == nil && val >= 0 {
			c.RetentionDays = val
		}
	}

	if enableCleanup, present := parseBoolEnv(envPrefix + "ENABLE_CLEANUP"); present {
		c.EnableCleanup = enableCleanup
	}

	if environment := os.Getenv("APPSCANNER_ENVIRONMENT"); environment != "" {
		c.Environment = environment
	}

	if logLevel := os.Getenv(envPrefix + "LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	return nil
}

// Validate validates the configuration and creates the database directory if needed
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if !c.IsInMemory() {
		dir := filepath.Dir(c.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("maxConnections must be positive, got %d", c.MaxConnections)
	}

	if c.MaxIdleConns < 0 {
		return fmt.Errorf("maxIdleConns cannot be negative, got %d", c.MaxIdleConns)
	}

	if c.MaxIdleConns > c.MaxConnections {
		return fmt.Errorf("maxIdleConns (%d) cannot be greater than maxConnections (%d)", c.MaxIdleConns, c.MaxConnections)
	}

	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connMaxLifetime cannot be negative, got %v", c.ConnMaxLifetime)
	}

	if c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connMaxIdleTime cannot be negative, got %v", c.ConnMaxIdleTime)
	}

	validJournalModes := []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	journalModeValid := false
	for _, mode := range validJournalModes {
		if strings.EqualFold(c.JournalMode, mode) {
			journalModeValid = true
			break
		}
	}
	if !journalModeValid {
		return fmt.Errorf("invalid journalMode: %s", c.JournalMode)
	}

	if c.IsInMemory() && strings.EqualFold(c.JournalMode, "WAL") {
		return fmt.Errorf("journalMode cannot be WAL when using in-memory database")
	}

	validSyncModes := map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
	if !validSyncModes[c.SynchronousMode] {
		return fmt.Errorf("invalid synchronousMode: %s", c.SynchronousMode)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}

	if c.BusyTimeout < 0 {
		return fmt.Errorf("busyTimeout cannot be negative, got %d", c.BusyTimeout)
	}

	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative, got %d", c.RetentionDays)
	}

	validEnvironments := map[string]bool{
		"development": true,
		"test":        true,
		"production":  true,
	}
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid logLevel: %s", c.LogLevel)
	}

	return nil
}

// GetConnectionString builds the go-sqlite3 DSN.
// Only the query parameters are URL-encoded.
func (c *Config) GetConnectionString() string {
	values := url.Values{}

	if c.ForeignKeys {
		values.Set("_foreign_keys", "on")
	} else {
		values.Set("_foreign_keys", "off")
	}
	values.Set("_journal_mode", c.JournalMode)
	values.Set("_synchronous", c.SynchronousMode)
	// negative cache_size is interpreted as KB
	values.Set("_cache_size", fmt.Sprintf("%d", -c.CacheSize))
	values.Set("_busy_timeout", fmt.Sprintf("%d", c.BusyTimeout))

	path := c.Path
	if strings.ContainsAny(path, "?&") {
		path = strings.ReplaceAll(path, "?", "%3F")
		path = strings.ReplaceAll(path, "&", "%26")
	}

	return path + "?" + values.Encode()
}

// IsInMemory returns true if the database is configured to use in-memory storage
func (c *Config) IsInMemory() bool {
	return c.Path == ":memory:"
}

// ConfigForEnvironment returns a configuration optimized for the given environment
func ConfigForEnvironment(env string) *Config {
	switch env {
	case "development":
		return DevelopmentConfig()
	case "test":
		return TestConfig()
	default:
		config := DefaultConfig()
		config.Path = DefaultPath("activity.db")
		return config
	}
}
