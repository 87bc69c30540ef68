// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// HoldTTL is how long a checkout hold stays valid before the sweeper
	// reclaims it.
	HoldTTL time.Duration `yaml:"hold_ttl"`
	// SweepCron is the schedule for the expired-hold sweep job.
	SweepCron string `yaml:"sweep_cron"`
	// MaxAdvanceDays limits how far ahead slots can be computed and held.
	MaxAdvanceDays int `yaml:"max_advance_days"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Booking BookingConfig `yaml:"booking"`
}

const (
	defaultHoldTTL        = 10 * time.Minute
	defaultSweepCron      = "* * * * *"
	defaultMaxAdvanceDays = 60
)

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Read and parse YAML config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Booking.HoldTTL == 0 {
		c.Booking.HoldTTL = defaultHoldTTL
	}
	if c.Booking.SweepCron == "" {
		c.Booking.SweepCron = defaultSweepCron
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = defaultMaxAdvanceDays
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("booking hold_ttl must be positive")
	}
	if c.Booking.MaxAdvanceDays <= 0 {
		return fmt.Errorf("booking max_advance_days must be positive")
	}
	if _, err := cron.ParseStandard(c.Booking.SweepCron); err != nil {
		return fmt.Errorf("invalid booking sweep_cron %q: %w", c.Booking.SweepCron, err)
	}

	return nil
}
