package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port             string
	CORSAllowOrigins []string

	// Storage
	DataBackend    string
	SnapshotPath   string
	SQLiteDBPath   string
	RedisURL       string
	RedisPrefix    string
	DatabaseURL    string
	CacheSize      int
	CacheTTL       time.Duration
	CacheSweepTick time.Duration

	// AMQP request transport
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Access control
	PINSalt              string
	LockTimeout          time.Duration
	PINAttemptsPerMinute int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:             getEnv("PORT", "8081"),
		CORSAllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"chrome-extension://*"}),

		DataBackend:    getEnv("DATA_BACKEND", "memory"),
		SnapshotPath:   getEnv("MEMORY_SNAPSHOT_PATH", ""),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/costnest.db"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:    getEnv("REDIS_PREFIX", "costnest:"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CacheSize:      getEnvInt("CACHE_SIZE", 64),
		CacheTTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSweepTick: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "costnest"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "costnest_requests"),

		PINSalt:              getEnv("PIN_SALT", "costnest_salt"),
		LockTimeout:          getEnvDuration("LOCK_TIMEOUT", 5*time.Minute),
		PINAttemptsPerMinute: getEnvInt("PIN_ATTEMPTS_PER_MINUTE", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// SharedBackend reports whether another process writes the data backend. A
// configured broker means cmd/costnest-worker handles requests against the
// same store.
func (c *Config) SharedBackend() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "redis", "postgres"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "redis":
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL is required when using redis backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err == nil && u.Scheme != "" &&
			u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}

	// A worker writes the same backend, which a process-local map cannot offer
	if c.SharedBackend() && c.DataBackend == "memory" {
		errors = append(errors, "memory backend cannot be shared with the AMQP worker: use sqlite, redis or postgres")
	}

	// Validate AMQP exchange and queue names if AMQP is configured
	if c.AMQPURL != "" {
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate cache
	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be 0 (disabled) or more", c.CacheSize))
	} else if c.CacheSize > 0 && c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive when the cache is enabled", c.CacheTTL))
	}

	// Validate access control
	if c.PINSalt == "" {
		errors = append(errors, "PIN salt cannot be empty")
	}
	if c.LockTimeout < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be at least 10 seconds", c.LockTimeout))
	} else if c.LockTimeout > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be at most 24 hours", c.LockTimeout))
	}
	if c.PINAttemptsPerMinute < 1 || c.PINAttemptsPerMinute > 100 {
		errors = append(errors, fmt.Sprintf("invalid PIN attempts per minute %d: must be between 1 and 100", c.PINAttemptsPerMinute))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
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

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
