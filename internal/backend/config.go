package backend

import (
	"fmt"

	"costnest/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	// A private read cache would serve values another process has replaced.
	cacheSize := appConfig.CacheSize
	if appConfig.SharedBackend() {
		cacheSize = 0
	}

	return Config{
		Type: backendType,

		SnapshotPath: appConfig.SnapshotPath,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		RedisURL:     appConfig.RedisURL,
		RedisPrefix:  appConfig.RedisPrefix,
		DatabaseURL:  appConfig.DatabaseURL,

		CacheSize:      cacheSize,
		CacheTTL:       appConfig.CacheTTL,
		CacheSweepTick: appConfig.CacheSweepTick,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	case MemoryBackend:
		// An empty snapshot path keeps everything in process memory.
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when the cache is enabled")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, RedisBackend, PostgresBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
