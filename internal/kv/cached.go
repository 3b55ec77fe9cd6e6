package kv

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"costnest/internal/cache"
)

// Cached fronts a Store with an LRU read cache. It is write-through: the
// backend is written first and the cache only reflects values the backend
// accepted.
//
// Every write bumps the key's generation. A miss only fills the cache when
// the generation it started from is still current, so a read that raced a
// completed write can never put the older value back.
//
// The cache is private to the process. It must not front a backend that
// another process writes.
type Cached struct {
	next  Store
	cache *cache.LRUCache[[]byte]
	fills singleflight.Group

	// writeMu orders backend writes with their cache updates.
	writeMu sync.Mutex

	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

var (
	_ Store  = (*Cached)(nil)
	_ Pinger = (*Cached)(nil)
)

// NewCached wraps next with a cache holding up to size values for ttl.
func NewCached(next Store, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.NewLRUCache[[]byte](size, ttl),
		gens:  make(map[string]uint64),
	}
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (c *Cached) Cache() *cache.LRUCache[[]byte] {
	return c.cache
}

// generation identifies the state of key as seen by a read starting now.
func (c *Cached) generation(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generationLocked(key)
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return bytes.Clone(v), nil
	}

	gen := c.generation(key)
	// Concurrent misses on the same generation share one backend read.
	res, err, _ := c.fills.Do(gen, func() (any, error) {
		return c.next.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	v := res.([]byte)

	c.mu.Lock()
	if c.generationLocked(key) == gen {
		c.cache.Set(key, bytes.Clone(v))
	}
	c.mu.Unlock()
	return bytes.Clone(v), nil
}

func (c *Cached) generationLocked(key string) string {
	return key + "#" + strconv.FormatUint(c.epoch, 10) + "." + strconv.FormatUint(c.gens[key], 10)
}

// invalidate bumps key's generation and applies update to the cache in the
// same critical section.
func (c *Cached) invalidate(key string, update func()) {
	c.mu.Lock()
	c.gens[key]++
	update()
	c.mu.Unlock()
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.next.Set(ctx, key, value); err != nil {
		c.invalidate(key, func() { c.cache.Delete(key) })
		return err
	}
	c.invalidate(key, func() { c.cache.Set(key, bytes.Clone(value)) })
	return nil
}

func (c *Cached) Remove(ctx context.Context, key string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.next.Remove(ctx, key)
	c.invalidate(key, func() { c.cache.Delete(key) })
	return err
}

func (c *Cached) Clear(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.next.Clear(ctx)
	c.mu.Lock()
	c.epoch++
	c.cache.Purge()
	c.mu.Unlock()
	return err
}

// Ping checks the backend behind the cache.
func (c *Cached) Ping(ctx context.Context) error {
	return Ping(ctx, c.next)
}
