package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"costnest/internal/kv"
)

const defaultRedisPrefix = "costnest:"

// RedisStore keeps every key under a prefix so Clear never touches foreign data.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var (
	_ kv.Store  = (*RedisStore)(nil)
	_ kv.Pinger = (*RedisStore)(nil)
)

// NewRedisStore connects to url (redis://...) or, when it does not parse, to a bare host:port.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, kv.StorageError("get", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return kv.StorageError("set", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return kv.StorageError("remove", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return kv.StorageError("clear", "", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return kv.StorageError("clear", "", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
