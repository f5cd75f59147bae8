package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tourney/database"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"` // "postgres" or "memory"

	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	// Bounds every individual store round-trip
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Tournament schedule configuration
	TournamentTimezone string        `env:"TOURNAMENT_TIMEZONE" envDefault:"UTC"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"` // 0 disables the periodic job

	// HTTP
	HTTPAddress string `env:"HTTP_ADDRESS" envDefault:":8080"`
	AdminToken  string `env:"ADMIN_TOKEN"` // empty leaves admin routes open

	// Discord notifications (optional)
	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	// NATS (optional, empty disables event forwarding)
	NATSServers string `env:"NATS_SERVERS"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"

	location *time.Location
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the zone tournament dates and times are interpreted in
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.TournamentTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationsEnabled checks if Discord notifications are configured
func (c *Config) NotificationsEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

// load loads configuration from an optional .env file and the environment
func load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration and resolves the tournament timezone
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.TournamentTimezone)
	if err != nil {
		return fmt.Errorf("invalid TOURNAMENT_TIMEZONE %q: %w", c.TournamentTimezone, err)
	}
	c.location = loc

	if c.ReconcileInterval < 0 {
		return fmt.Errorf("RECONCILE_INTERVAL cannot be negative")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.Environment == "production" && c.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required in production")
	}

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.Environment != "test" && c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		StoreBackend:       StoreBackendMemory,
		StoreTimeout:       time.Second,
		DBMaxConns:         4,
		TournamentTimezone: "UTC",
		HTTPAddress:        ":0",
		LogLevel:           "debug",
		Environment:        "test",
		location:           time.UTC,
	}
}
