package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrapline/auction-engine/internal/money"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auction        AuctionConfig        `yaml:"auction"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "sqlx" or "pgx"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// AuctionConfig holds engine-wide bidding defaults.
type AuctionConfig struct {
	// DefaultIncrement applies to listings created without an increment.
	DefaultIncrement money.Amount `yaml:"default_increment"`
	// DefaultExtension is the anti-sniping window for listings created
	// without one.
	DefaultExtension time.Duration `yaml:"default_extension"`
	// AllowSelfOutbid lets the current leader raise their own bid.
	AllowSelfOutbid bool `yaml:"allow_self_outbid"`
	// TickInterval is the lifecycle scheduler's polling cadence.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration defaults applied before any file is read.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "sqlx",
		},
		Auction: AuctionConfig{
			DefaultIncrement: money.FromInt(500),
			DefaultExtension: 10 * time.Minute,
			TickInterval:     time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auction-engine",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auction-engine-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "pgx":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\" or \"pgx\"", c.Database.Driver)
	}
	if c.Auction.DefaultIncrement.IsZero() {
		return fmt.Errorf("auction default_increment must be positive")
	}
	if c.Auction.DefaultExtension < 0 {
		return fmt.Errorf("auction default_extension cannot be negative")
	}
	if c.Auction.TickInterval <= 0 {
		return fmt.Errorf("auction tick_interval must be positive")
	}
	return nil
}
