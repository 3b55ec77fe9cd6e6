package backend

import (
	"context"
	"time"

	"costnest/internal/kv"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the function releasing it
type BackendResult struct {
	Store   kv.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a store instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory backend specific. Empty means no snapshot file.
	SnapshotPath string

	// SQLite specific
	SQLiteDBPath string

	// Redis specific
	RedisURL    string
	RedisPrefix string

	// Postgres specific
	DatabaseURL string

	// Read cache in front of the backend. Size 0 disables it.
	CacheSize      int
	CacheTTL       time.Duration
	CacheSweepTick time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	RedisBackend    BackendType = "redis"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
