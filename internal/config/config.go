package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"fleetfinance/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend    string
	SQLiteDBPath   string
	MemorySeedFile string

	// Fleet service
	FleetServiceURL       string
	FleetLookupTimeout    time.Duration
	FleetRateLimit        int
	RegistrationCacheSize int
	RegistrationCacheTTL  time.Duration

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	WorkerSnapshotInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

var validBackends = []string{"memory", "sqlite"}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3003"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		DataBackend:    getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/finance.db"),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", "./data/seed.json"),

		FleetServiceURL:       getEnv("FLEET_SERVICE_URL", "http://localhost:3002"),
		FleetLookupTimeout:    getEnvDuration("FLEET_LOOKUP_TIMEOUT", 3*time.Second),
		FleetRateLimit:        getEnvInt("FLEET_RATE_LIMIT", 20),
		RegistrationCacheSize: getEnvInt("REGISTRATION_CACHE_SIZE", 500),
		RegistrationCacheTTL:  getEnvDuration("REGISTRATION_CACHE_TTL", 10*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "finance_records"),

		WorkerSnapshotInterval: getEnvDuration("WORKER_SNAPSHOT_INTERVAL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", log.FormatText),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if parsed, err := url.Parse(c.FleetServiceURL); err != nil || c.FleetServiceURL == "" {
		errors = append(errors, fmt.Sprintf("invalid fleet service URL '%s'", c.FleetServiceURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid fleet service URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	if c.FleetLookupTimeout < 10*time.Millisecond || c.FleetLookupTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fleet lookup timeout %v: must be between 10ms and 1m", c.FleetLookupTimeout))
	}
	if c.FleetRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid fleet rate limit %d: must be at least 1", c.FleetRateLimit))
	}
	if c.RegistrationCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid registration cache size %d: must be at least 1", c.RegistrationCacheSize))
	}
	if c.RegistrationCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid registration cache TTL %v: must be at least 1 second", c.RegistrationCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WorkerSnapshotInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid worker snapshot interval %v: must be at least 1 second", c.WorkerSnapshotInterval))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != log.FormatText && c.LogFormat != log.FormatJSON {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Logger builds the application logger from the logging settings.
func (c *Config) Logger() *log.Logger {
	cfg := log.DefaultConfig()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.LogFormat
	return log.New(cfg)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
