// Package config loads host and journal settings from flags, APPSCANNER_*
// environment variables and an optional appscanner.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"appscanner/internal/database"
	"appscanner/internal/icon"
	"appscanner/internal/platform"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. APPSCANNER_ADB_SERIAL
const EnvPrefix = "APPSCANNER"

// Config is the resolved application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Adb         AdbConfig     `mapstructure:"adb"`
	Icons       IconsConfig   `mapstructure:"icons"`
	Journal     JournalConfig `mapstructure:"journal"`
}

// AdbConfig selects the device and the tools used to talk to it
type AdbConfig struct {
	Path    string        `mapstructure:"path"`
	Serial  string        `mapstructure:"serial"`
	Aapt    string        `mapstructure:"aapt"`
	Timeout time.Duration `mapstructure:"timeout"`
	Workers int           `mapstructure:"workers"` // parallel per-package lookups
}

// IconsConfig controls icon extraction
type IconsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	MaxSize int  `mapstructure:"max_size"`
}

// JournalConfig controls the activity journal
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"` // empty selects the environment default
	RetentionDays int    `mapstructure:"retention_days"`
}

// SetDefaults registers every key so AutomaticEnv can resolve it
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "production")

	v.SetDefault("adb.path", "adb")
	v.SetDefault("adb.serial", "")
	v.SetDefault("adb.aapt", "")
	v.SetDefault("adb.timeout", 30*time.Second)
	v.SetDefault("adb.workers", 4)

	v.SetDefault("icons.enabled", true)
	v.SetDefault("icons.max_size", icon.DefaultMaxSize)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.retention_days", 30)
}

// New returns a viper instance with defaults and environment binding applied
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("appscanner")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "appscanner"))
	}
	return v
}

// Load reads configFile, or searches the default locations when it is empty,
// and decodes the merged settings. A missing default file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the host or journal cannot work with
func (c *Config) Validate() error {
	switch c.Environment {
	case "production", "development", "test":
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.Adb.Path == "" {
		return fmt.Errorf("adb.path cannot be empty")
	}
	if c.Adb.Timeout < 0 {
		return fmt.Errorf("adb.timeout cannot be negative, got %v", c.Adb.Timeout)
	}
	if c.Adb.Workers < 0 {
		return fmt.Errorf("adb.workers cannot be negative, got %d", c.Adb.Workers)
	}
	if c.Icons.MaxSize < 0 {
		return fmt.Errorf("icons.max_size cannot be negative, got %d", c.Icons.MaxSize)
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("journal.retention_days cannot be negative, got %d", c.Journal.RetentionDays)
	}
	return nil
}

// HostConfig maps the settings onto the adb package host
func (c *Config) HostConfig() platform.AdbConfig {
	return platform.AdbConfig{
		AdbPath:      c.Adb.Path,
		Serial:       c.Adb.Serial,
		AaptPath:     c.Adb.Aapt,
		Timeout:      c.Adb.Timeout,
		IconsEnabled: c.Icons.Enabled,
	}
}

// DatabaseConfig derives the journal database settings. APPSCANNER_DB_*
// variables still apply on top, journal.path and journal.retention_days win.
func (c *Config) DatabaseConfig() (*database.Config, error) {
	dbConfig := database.ConfigForEnvironment(c.Environment)
	if err := dbConfig.LoadFromEnvironment(); err != nil {
		return nil, err
	}

	if c.Journal.Path != "" {
		dbConfig.Path = c.Journal.Path
	}
	dbConfig.RetentionDays = c.Journal.RetentionDays
	dbConfig.EnableCleanup = c.Journal.RetentionDays > 0
	dbConfig.Environment = c.Environment
	return dbConfig, nil
}
