// Package config provides configuration management for the deal scanner
// service. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	ClickHouse ClickHouseConfig
	Automation AutomationConfig
	Engine     EngineConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// StoreConfig selects and configures the durable store backend
type StoreConfig struct {
	// Backend is one of "redis", "postgres" or "memory"
	Backend  string
	Redis    RedisConfig
	Postgres PostgresConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
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

// URL returns the connection URL used by migrations
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds the optional scan archive configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// AutomationConfig holds the browser automation bridge configuration
type AutomationConfig struct {
	BridgeURL string
}

// EngineConfig holds scan engine tuning knobs
type EngineConfig struct {
	IdleThreshold      time.Duration // user considered idle after this much inactivity
	RecheckDelay       time.Duration // one-shot delay when deferring for an active user
	FirstFireDelay     time.Duration // near-immediate first fire after registering a cadence
	LoadTimeout        time.Duration // page load timeout
	ScanTimeout        time.Duration // scan command response timeout
	SettleDelay        time.Duration // wait before sending the scan command
	CloseGrace         time.Duration // delay before closing a finished tab
	MaxPendingJobs     int           // execution queue depth ceiling
	CandidateRetention int           // result store window size
	EventLogCap        int           // event log ring size
	HighValueThreshold float64       // scorer value that triggers a notification
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "redis"),
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "deal_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
			Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
			Port:     getEnv("CLICKHOUSE_PORT", "9000"),
			Database: getEnv("CLICKHOUSE_DB", "deal_scanner"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Automation: AutomationConfig{
			BridgeURL: getEnv("AUTOMATION_BRIDGE_URL", "http://localhost:9222"),
		},
		Engine: EngineConfig{
			IdleThreshold:      getEnvAsDuration("ENGINE_IDLE_THRESHOLD", 60*time.Second),
			RecheckDelay:       getEnvAsDuration("ENGINE_RECHECK_DELAY", 5*time.Minute),
			FirstFireDelay:     getEnvAsDuration("ENGINE_FIRST_FIRE_DELAY", 2*time.Second),
			LoadTimeout:        getEnvAsDuration("ENGINE_LOAD_TIMEOUT", 30*time.Second),
			ScanTimeout:        getEnvAsDuration("ENGINE_SCAN_TIMEOUT", 10*time.Second),
			SettleDelay:        getEnvAsDuration("ENGINE_SETTLE_DELAY", 2*time.Second),
			CloseGrace:         getEnvAsDuration("ENGINE_CLOSE_GRACE", 2*time.Second),
			MaxPendingJobs:     getEnvAsInt("ENGINE_MAX_PENDING_JOBS", 100),
			CandidateRetention: getEnvAsInt("ENGINE_CANDIDATE_RETENTION", 500),
			EventLogCap:        getEnvAsInt("ENGINE_EVENT_LOG_CAP", 200),
			HighValueThreshold: getEnvAsFloat("ENGINE_HIGH_VALUE_THRESHOLD", 100.0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
