package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source    RedisConfig `yaml:"source"`
	Target    RedisConfig `yaml:"target"`
	Migration Migration   `yaml:"migration"`
	LogLevel  string      `yaml:"log_level"`
}

// RedisConfig represents one Redis instance connection
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Migration represents migration-specific configuration
type Migration struct {
	BatchSize      int64  `yaml:"batch_size"`
	SizeLimit      int64  `yaml:"size_limit"`
	Manifest       string `yaml:"manifest"`
	Journal        string `yaml:"journal"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MetricsAddr    string `yaml:"metrics_addr"`
	ShowProgress   bool   `yaml:"show_progress"`
}

// Timeout returns the per-connection operation timeout
func (m Migration) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		Source:   RedisConfig{Port: 6379},
		Target:   RedisConfig{Port: 6379},
		LogLevel: "info",
		Migration: Migration{
			BatchSize:      1000,
			SizeLimit:      10 * 1024 * 1024, // 10MiB
			Manifest:       "large_keys.txt",
			Journal:        "./migration.db",
			TimeoutSeconds: 60,
			ShowProgress:   true,
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("src-host") {
		cfg.Source.Host, _ = flags.GetString("src-host")
	}
	if flags.Changed("src-port") {
		cfg.Source.Port, _ = flags.GetInt("src-port")
	}
	if flags.Changed("src-password") {
		cfg.Source.Password, _ = flags.GetString("src-password")
	}
	if flags.Changed("src-db") {
		cfg.Source.DB, _ = flags.GetInt("src-db")
	}

	if flags.Changed("dst-host") {
		cfg.Target.Host, _ = flags.GetString("dst-host")
	}
	if flags.Changed("dst-port") {
		cfg.Target.Port, _ = flags.GetInt("dst-port")
	}
	if flags.Changed("dst-password") {
		cfg.Target.Password, _ = flags.GetString("dst-password")
	}
	if flags.Changed("dst-db") {
		cfg.Target.DB, _ = flags.GetInt("dst-db")
	}

	if flags.Changed("batch-size") {
		cfg.Migration.BatchSize, _ = flags.GetInt64("batch-size")
	}
	if flags.Changed("size-limit") {
		cfg.Migration.SizeLimit, _ = flags.GetInt64("size-limit")
	}
	if flags.Changed("manifest") {
		cfg.Migration.Manifest, _ = flags.GetString("manifest")
	}
	if flags.Changed("journal") {
		cfg.Migration.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("timeout") {
		cfg.Migration.TimeoutSeconds, _ = flags.GetInt("timeout")
	}
	if flags.Changed("metrics-addr") {
		cfg.Migration.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("show-progress") {
		cfg.Migration.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Source.Host == "" {
		return fmt.Errorf("source host is required")
	}
	if c.Target.Host == "" {
		return fmt.Errorf("target host is required")
	}

	if c.Source.Port <= 0 || c.Source.Port > 65535 {
		return fmt.Errorf("source port must be between 1 and 65535")
	}
	if c.Target.Port <= 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target port must be between 1 and 65535")
	}

	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Migration.SizeLimit <= 0 {
		return fmt.Errorf("size limit must be positive")
	}
	if c.Migration.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Migration.Manifest == "" {
		return fmt.Errorf("manifest path is required")
	}

	return nil
}
