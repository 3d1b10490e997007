// Package config provides configuration management for the stream indexer.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Sync     SyncConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration.
// ClickHouse is optional: when Host is empty the event analytics mirror is
// disabled and aggregation falls back to Postgres.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds fullnode REST API configuration
type ChainConfig struct {
	NodeURL           string
	Network           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	// KnownDeployments seeds the deployments table at startup so syncing
	// does not depend on discovery for well-known protocol instances.
	KnownDeployments []string
}

// SyncConfig holds sync engine configuration
type SyncConfig struct {
	BatchSize int           // Transactions scanned per sync run (node caps pages at 100)
	Cooldown  time.Duration // Minimum wall-clock gap between runs for a caught-up deployment
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TokenTTL  time.Duration // Token metadata cache TTL
	WalletTTL time.Duration // Resolved wallet cache TTL
	StatusTTL time.Duration // Sync status read-API cache TTL
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "stream_indexer"),
				User:           getEnv("POSTGRES_USER", "indexer"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "stream_indexer"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Chain: ChainConfig{
			NodeURL:           getEnv("CHAIN_NODE_URL", "https://fullnode.mainnet.aptoslabs.com/v1"),
			Network:           getEnv("CHAIN_NETWORK", "mainnet"),
			RequestTimeout:    getEnvAsDuration("CHAIN_REQUEST_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getEnvAsFloat("CHAIN_REQUESTS_PER_SECOND", 10),
			KnownDeployments:  getEnvAsSlice("CHAIN_KNOWN_DEPLOYMENTS"),
		},
		Sync: SyncConfig{
			BatchSize: getEnvAsInt("SYNC_BATCH_SIZE", 100),
			Cooldown:  getEnvAsDuration("SYNC_COOLDOWN", 30*time.Second),
		},
		Cache: CacheConfig{
			TokenTTL:  getEnvAsDuration("CACHE_TOKEN_TTL", 24*time.Hour),
			WalletTTL: getEnvAsDuration("CACHE_WALLET_TTL", time.Hour),
			StatusTTL: getEnvAsDuration("CACHE_STATUS_TTL", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Chain.NodeURL == "" {
		return fmt.Errorf("CHAIN_NODE_URL is required")
	}
	if c.Chain.RequestsPerSecond <= 0 {
		return fmt.Errorf("CHAIN_REQUESTS_PER_SECOND must be positive, got %v", c.Chain.RequestsPerSecond)
	}
	if c.Sync.BatchSize <= 0 || c.Sync.BatchSize > 100 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be between 1 and 100, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Cooldown < 0 {
		return fmt.Errorf("SYNC_COOLDOWN must not be negative, got %v", c.Sync.Cooldown)
	}
	if c.Database.Postgres.MaxConnections <= 0 {
		return fmt.Errorf("POSTGRES_MAX_CONNECTIONS must be positive, got %d", c.Database.Postgres.MaxConnections)
	}
	return nil
}

// PostgresURL returns the database URL for migrations
func (c *PostgresConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice retrieves a comma-separated environment variable as a slice
func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
