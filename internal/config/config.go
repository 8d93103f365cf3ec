// Package config loads the platform configuration from the environment.
//
// Values are resolved in priority order: OS environment, then a .env file in
// the working directory, then the defaults declared on the struct tags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"rainfall-platform/pkg/database"
	"rainfall-platform/pkg/logging"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Record store backends
const (
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

// Config is the top-level configuration
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development production test"`

	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Store     StoreConfig
	Ingestion IngestionConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"5000" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`
	// PublicURL is advertised in the API docs; derived from host and port when empty
	PublicURL      string   `envconfig:"PUBLIC_URL" validate:"omitempty,url"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*" validate:"min=1"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	// URL selects PostgreSQL regardless of Driver
	URL        string `envconfig:"DATABASE_URL"`
	Driver     string `envconfig:"DB_DRIVER" default:"sqlite3" validate:"oneof=postgres sqlite3"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"instance/rainfall_data.db"`

	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Database string `envconfig:"DB_NAME" default:"rainfall"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"min=1"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"5m"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	// Format defaults to text in development and json elsewhere
	Format         string `envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json text"`
	File           string `envconfig:"LOG_FILE"`
	FileMaxSizeMB  int    `envconfig:"LOG_FILE_MAX_SIZE_MB" default:"1" validate:"min=1"`
	FileMaxBackups int    `envconfig:"LOG_FILE_MAX_BACKUPS" default:"20" validate:"min=0"`
}

// StoreConfig selects and tunes the record store
type StoreConfig struct {
	Backend         string        `envconfig:"STORE_BACKEND" default:"database" validate:"oneof=database memory"`
	BreakerFailures uint32        `envconfig:"STORE_BREAKER_FAILURES" default:"5" validate:"min=1"`
	BreakerTimeout  time.Duration `envconfig:"STORE_BREAKER_TIMEOUT" default:"30s" validate:"gt=0"`
}

// IngestionConfig locates the source spreadsheet
type IngestionConfig struct {
	DataPath      string `envconfig:"DATA_PATH" default:"./data/Data.xlsx"`
	Sheet         string `envconfig:"DATA_SHEET"`
	SeedOnStartup bool   `envconfig:"SEED_ON_STARTUP" default:"true"`
	BatchSize     int    `envconfig:"INGEST_BATCH_SIZE" default:"500" validate:"min=1"`
}

// LoadConfig reads configuration from the environment and an optional .env file
func LoadConfig() (*Config, error) {
	// A missing .env file is not an error; existing variables are never overridden.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if c.Store.Backend == BackendMemory && strings.TrimSpace(c.Ingestion.DataPath) == "" {
		return fmt.Errorf("DATA_PATH is required when STORE_BACKEND=%s", BackendMemory)
	}

	if c.DriverName() == database.DriverPostgres && c.Database.URL == "" && c.Database.Database == "" {
		return fmt.Errorf("DB_NAME or DATABASE_URL is required for postgres")
	}

	if c.DriverName() == database.DriverSQLite && strings.TrimSpace(c.Database.SQLitePath) == "" {
		return fmt.Errorf("SQLITE_PATH is required for sqlite3")
	}

	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// DriverName resolves the database driver; DATABASE_URL forces PostgreSQL
func (c *Config) DriverName() string {
	if c.Database.URL != "" {
		return database.DriverPostgres
	}
	return c.Database.Driver
}

// DatabaseConfig converts the settings into a database.Config
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.DriverName(),
		URL:             c.Database.URL,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		SQLitePath:      c.Database.SQLitePath,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// LogOptions converts the settings into logging.Options for service
func (c *Config) LogOptions(service, version string) logging.Options {
	format := logging.Format(c.Logging.Format)
	if format == "" {
		format = logging.FormatJSON
		if c.IsDevelopment() {
			format = logging.FormatText
		}
	}

	return logging.Options{
		Service:        service,
		Version:        version,
		Level:          logging.ParseLevel(c.Logging.Level),
		Format:         format,
		File:           c.Logging.File,
		FileMaxSizeMB:  c.Logging.FileMaxSizeMB,
		FileMaxBackups: c.Logging.FileMaxBackups,
	}
}

// Address is the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ExternalURL is the base URL clients use to reach the server
func (c *Config) ExternalURL() string {
	if c.Server.PublicURL != "" {
		return c.Server.PublicURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}
