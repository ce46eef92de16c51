package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	Capacity     int
	Environment  string
	AuditLogPath string
	AuditMongo   MongoConfig
	ReportCron   string
	OTelService  string
	OTelEndpoint string
}

// MongoConfig enables the MongoDB audit sink when URI is set.
type MongoConfig struct {
	URI    string
	DBName string
}

// Load reads environment variables, optionally seeded from envFile, and
// validates the result. A named envFile must exist; an empty envFile loads
// ".env" when present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed loading .env: %w", err)
	}

	cfg := &Config{
		Port:         envOr("APP_PORT", "8080"),
		Capacity:     envOrInt("PARKING_CAPACITY", 10),
		Environment:  envOr("APP_ENV", "development"),
		AuditLogPath: envOr("AUDIT_LOG_PATH", "parking_log.txt"),
		AuditMongo: MongoConfig{
			URI:    os.Getenv("AUDIT_MONGODB_URI"),
			DBName: envOr("AUDIT_MONGODB_DB", "smart_parking"),
		},
		ReportCron:   envOr("REPORT_CRON_SCHEDULE", "@hourly"),
		OTelService:  envOr("OTEL_SERVICE_NAME", "smart-parking"),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Port == "" {
		return errors.New("APP_PORT must not be empty")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("PARKING_CAPACITY must be positive, got %d", c.Capacity)
	}
	if c.AuditMongo.URI != "" && c.AuditMongo.DBName == "" {
		return errors.New("AUDIT_MONGODB_DB must be provided when AUDIT_MONGODB_URI is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
