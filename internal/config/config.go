package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	AppPort     string `envconfig:"APP_PORT" default:"8080"`
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:""`

	// Public address used to build image URLs
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"restaurant"`
	DBURL      string `envconfig:"DB_URL"`

	// Redis (carts and cross-instance live feed)
	RedisURL      string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"restaurant:events"`

	// MongoDB (dish images and status audit log)
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"restaurant"`

	CartTTL time.Duration `envconfig:"CART_TTL" default:"2h"`

	// Reject status edges outside the kitchen workflow instead of allowing any change
	StrictTransitions bool `envconfig:"ORDER_STRICT_TRANSITIONS" default:"false"`
}

var instance *Config

// Load initializes and returns the singleton Config instance
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment variables: %w", err)
	}

	if cfg.DBURL == "" {
		if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
			cfg.DBURL = databaseURL
		}
	}

	if cfg.DBURL == "" {
		cfg.DBURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	instance = cfg
	return instance, nil
}

// Location resolves APP_TIMEZONE, the zone order dates are computed in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.AppTimezone, err)
	}
	return loc, nil
}
