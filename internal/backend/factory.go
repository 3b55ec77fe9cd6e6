package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"costnest/internal/cache"
	"costnest/internal/kv"
	"costnest/internal/kv/memory"
	"costnest/internal/log"
	"costnest/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger        *slog.Logger
	storageLogger *slog.Logger
	cacheLogger   *slog.Logger
}

// NewFactory creates a new backend factory. A nil logger logs through the
// slog default.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger:        logger.WithComponent(log.ComponentBackend).Logger,
		storageLogger: logger.WithComponent(log.ComponentStorage).Logger,
		cacheLogger:   logger.WithComponent(log.ComponentCache).Logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case RedisBackend:
		result, err = f.createRedisBackend(ctx, config)
	case PostgresBackend:
		result, err = f.createPostgresBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.CacheSize > 0 {
		result = f.withCache(result, config)
	}
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.SnapshotPath == "" {
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Store: memory.New(), Cleanup: func() error { return nil }}, nil
	}

	store, err := memory.NewFromFile(config.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory snapshot: %w", err)
	}
	f.logger.Info("Initialized memory backend", "snapshot", config.SnapshotPath)
	return &BackendResult{Store: store, Cleanup: func() error { return nil }}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath, storage.WithSQLiteLogger(f.storageLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			f.logger.Info("Closing SQLite store")
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewRedisStore(ctx, config.RedisURL, config.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
	}

	f.logger.Info("Initialized Redis backend", "prefix", config.RedisPrefix)
	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			f.logger.Info("Closing Redis store")
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewPostgresStore(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")
	return &BackendResult{
		Store: store,
		Cleanup: func() error {
			f.logger.Info("Closing Postgres store")
			return store.Close()
		},
	}, nil
}

// withCache puts a write-through LRU in front of the store and sweeps its
// expired entries in the background until cleanup.
func (f *DefaultFactory) withCache(result *BackendResult, config Config) *BackendResult {
	cached := kv.NewCached(result.Store, config.CacheSize, config.CacheTTL)

	manager := cache.NewManager(f.cacheLogger)
	manager.Register(cached.Cache())
	sweep := config.CacheSweepTick
	if sweep <= 0 {
		sweep = time.Minute
	}
	manager.StartCleanup(sweep)

	f.logger.Info("Enabled read cache", "size", config.CacheSize, "ttl", config.CacheTTL)

	inner := result.Cleanup
	return &BackendResult{
		Store: cached,
		Cleanup: func() error {
			manager.Stop()
			stats := cached.Cache().Stats()
			f.logger.Info("Read cache stopped", "hits", stats.Hits, "misses", stats.Misses, "entries", stats.Size)
			if inner == nil {
				return nil
			}
			return inner()
		},
	}
}

// Close runs every cleanup and joins their errors.
func Close(results ...*BackendResult) error {
	var errs []error
	for _, r := range results {
		if r == nil || r.Cleanup == nil {
			continue
		}
		if err := r.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
