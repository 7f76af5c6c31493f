package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Provider  ProviderConfig
	Scheduler SchedulerConfig
	Dispatch  DispatchConfig
	Audit     AuditConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// ProviderConfig holds payment provider API configuration
type ProviderConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// WebhookKey authenticates inbound webhook deliveries.
	WebhookKey string
}

// SchedulerConfig holds reconciliation sweep configuration
type SchedulerConfig struct {
	// CronSpec is the sweep schedule in standard cron syntax.
	CronSpec string
	// MaxReconcileAttempts bounds per-payment polls before the payment is
	// flagged for manual review.
	MaxReconcileAttempts int
	// Concurrency caps simultaneous provider polls per sweep.
	Concurrency int64
}

// DispatchConfig holds payment dispatch worker pool configuration
type DispatchConfig struct {
	Workers     int
	QueueSize   int
	MaxRetries  uint64
	BaseBackoff time.Duration
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// FernetKey encrypts bank detail fingerprints in audit records.
	FernetKey string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/settlement_engine.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Provider: ProviderConfig{
			BaseURL:    getEnv("PROVIDER_BASE_URL", "https://api.transfer-provider.test"),
			Token:      getEnv("PROVIDER_API_TOKEN", ""),
			Timeout:    getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
			WebhookKey: getEnv("PROVIDER_WEBHOOK_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			CronSpec:             getEnv("RECONCILE_CRON", "*/5 * * * *"),
			MaxReconcileAttempts: getEnvInt("RECONCILE_MAX_ATTEMPTS", 12),
			Concurrency:          int64(getEnvInt("RECONCILE_CONCURRENCY", 4)),
		},
		Dispatch: DispatchConfig{
			Workers:     getEnvInt("DISPATCH_WORKERS", 4),
			QueueSize:   getEnvInt("DISPATCH_QUEUE_SIZE", 256),
			MaxRetries:  uint64(getEnvInt("DISPATCH_MAX_RETRIES", 3)),
			BaseBackoff: getEnvDuration("DISPATCH_BASE_BACKOFF", 2*time.Second),
		},
		Audit: AuditConfig{
			FernetKey: getEnv("AUDIT_FERNET_KEY", ""),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
