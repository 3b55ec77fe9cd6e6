// Package storage holds the durable key-value backends: SQLite for a single
// local profile, Redis and PostgreSQL for a hosted companion service.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"costnest/internal/kv"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

type SQLiteOption func(*SQLiteStore)

func WithSQLiteLogger(logger *slog.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = logger }
}

var (
	_ kv.Store  = (*SQLiteStore)(nil)
	_ kv.Pinger = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent sets.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.StorageError("get", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return kv.StorageError("set", key, err)
	}
	s.logger.DebugContext(ctx, "Value saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return kv.StorageError("remove", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return kv.StorageError("clear", "", err)
	}
	s.logger.InfoContext(ctx, "SQLite key-value store cleared")
	return nil
}
