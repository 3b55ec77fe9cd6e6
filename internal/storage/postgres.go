package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"costnest/internal/kv"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS costnest_kv (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStore struct {
	pool *pgxpool.Pool
}

var (
	_ kv.Store  = (*PostgresStore)(nil)
	_ kv.Pinger = (*PostgresStore)(nil)
)

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, normalizePostgresURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// normalizePostgresURL rewrites postgresql:// to postgres:// and defaults sslmode to disable.
func normalizePostgresURL(u string) string {
	if strings.HasPrefix(u, "postgresql://") {
		u = "postgres://" + strings.TrimPrefix(u, "postgresql://")
	}
	if strings.HasPrefix(u, "postgres://") && !strings.Contains(u, "sslmode=") {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "sslmode=disable"
	}
	return u
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM costnest_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.StorageError("get", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO costnest_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return kv.StorageError("set", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM costnest_kv WHERE key = $1`, key); err != nil {
		return kv.StorageError("remove", key, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM costnest_kv`); err != nil {
		return kv.StorageError("clear", "", err)
	}
	return nil
}
