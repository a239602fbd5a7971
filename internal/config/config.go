package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultReplicateBaseURL   = "https://api.replicate.com/v1"
	defaultModelVersion       = "c871bb9b046607b680449ecbae55fd8c6d945e0a1948644bf2361b3d021d3ff4" // IDM-VTON
	defaultGarmentDescription = "A garment item"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a Postgres backend was configured.
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// StorageConfig holds the S3-compatible bucket used for uploads
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// Enabled reports whether image uploads can be stored.
func (c StorageConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Config holds all configuration for the application
type Config struct {
	ReplicateAPIToken    string
	ReplicateBaseURL     string
	ModelVersion         string
	GarmentDescription   string
	PollInterval         time.Duration
	PollTimeout          time.Duration
	MaxConcurrentRelays  int
	HTTPAddr             string
	AuthJWTSecret        string
	LogLevel             string
	LogFormat            string
	TracingExporter      string
	HistoryRetention     time.Duration
	HistoryPruneSchedule string
	DB                   DBConfig
	Storage              StorageConfig
}

// Load loads the configuration from environment variables, reading a .env
// file first when one exists.
func Load() (*Config, error) {
	return load(true)
}

// LoadMaintenance loads the configuration for commands that only touch the
// database, so the prediction service token is not required.
func LoadMaintenance() (*Config, error) {
	return load(false)
}

func load(requireToken bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{
		ReplicateAPIToken:    os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:     getenv("REPLICATE_BASE_URL", defaultReplicateBaseURL),
		ModelVersion:         getenv("REPLICATE_MODEL_VERSION", defaultModelVersion),
		GarmentDescription:   getenv("GARMENT_DESCRIPTION", defaultGarmentDescription),
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
		TracingExporter:      getenv("TRACING_EXPORTER", "none"),
		HistoryPruneSchedule: os.Getenv("HISTORY_PRUNE_SCHEDULE"),
	}
	config.ReplicateBaseURL = strings.TrimRight(config.ReplicateBaseURL, "/")

	if interval, err := strconv.Atoi(os.Getenv("RELAY_POLL_INTERVAL")); err == nil {
		config.PollInterval = time.Duration(interval) * time.Millisecond
	} else {
		config.PollInterval = time.Second // default value
	}

	if timeout, err := strconv.Atoi(os.Getenv("RELAY_POLL_TIMEOUT")); err == nil {
		config.PollTimeout = time.Duration(timeout) * time.Second
	} else {
		config.PollTimeout = 5 * time.Minute // default value
	}

	if n, err := strconv.Atoi(os.Getenv("RELAY_MAX_CONCURRENT")); err == nil {
		config.MaxConcurrentRelays = n
	} else {
		config.MaxConcurrentRelays = 16 // default value
	}

	if days, err := strconv.Atoi(os.Getenv("HISTORY_RETENTION_DAYS")); err == nil {
		config.HistoryRetention = time.Duration(days) * 24 * time.Hour
	} else {
		config.HistoryRetention = 90 * 24 * time.Hour // default value
	}

	// Load database configuration
	dbConfig := DBConfig{
		Host:     os.Getenv("DB_HOST"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: os.Getenv("DB_NAME"),
		SSLMode:  getenv("DB_SSL_MODE", "disable"),
	}

	// Parse database port
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		dbConfig.Port = port
	} else {
		dbConfig.Port = 5432 // default PostgreSQL port
	}

	// Parse connection pool settings
	if maxOpenConns, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS")); err == nil {
		dbConfig.MaxOpenConns = maxOpenConns
	} else {
		dbConfig.MaxOpenConns = 25 // default value
	}

	if maxIdleConns, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS")); err == nil {
		dbConfig.MaxIdleConns = maxIdleConns
	} else {
		dbConfig.MaxIdleConns = 25 // default value
	}

	if connMaxLifetime, err := strconv.Atoi(os.Getenv("DB_CONN_MAX_LIFETIME")); err == nil {
		dbConfig.ConnMaxLifetime = time.Duration(connMaxLifetime) * time.Second
	} else {
		dbConfig.ConnMaxLifetime = 5 * time.Minute // default value
	}

	config.DB = dbConfig

	useSSL, _ := strconv.ParseBool(os.Getenv("STORAGE_USE_SSL"))
	config.Storage = StorageConfig{
		Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
		AccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
		Bucket:        getenv("STORAGE_BUCKET", "tryon-images"),
		UseSSL:        useSSL,
		PublicBaseURL: strings.TrimRight(os.Getenv("STORAGE_PUBLIC_BASE_URL"), "/"),
	}

	if err := config.validate(requireToken); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate(requireToken bool) error {
	if requireToken && c.ReplicateAPIToken == "" {
		return fmt.Errorf("REPLICATE_API_TOKEN is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("RELAY_POLL_INTERVAL must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("RELAY_POLL_TIMEOUT must be positive")
	}
	if c.MaxConcurrentRelays <= 0 {
		return fmt.Errorf("RELAY_MAX_CONCURRENT must be positive")
	}

	// Validate database configuration only when a backend was requested
	if c.DB.Enabled() {
		if c.DB.User == "" {
			return fmt.Errorf("DB_USER is required when DB_HOST is set")
		}
		if c.DB.Database == "" {
			return fmt.Errorf("DB_NAME is required when DB_HOST is set")
		}
	}

	if c.Storage.Enabled() {
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENDPOINT is set")
		}
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
