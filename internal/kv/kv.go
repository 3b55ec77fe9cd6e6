// Package kv defines the key-value store every other package persists through.
//
// A Store maps string keys to opaque byte values. Each call is all-or-nothing for
// the key it names; there is no multi-key atomicity. Backend failures are returned
// as errors wrapping core.ErrStorage, never raised as panics.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"costnest/internal/core"
)

// Persisted keys.
const (
	KeyPIN         = "costnest_pin"
	KeyExpenses    = "costnest_expenses"
	KeyBudget      = "costnest_budget"
	KeySettings    = "costnest_settings"
	KeyCategories  = "costnest_categories"
	KeyPriceAlerts = "costnest_price_alerts"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is the persistence contract. Implementations must be safe for
// concurrent use and must finish persisting before Set/Remove/Clear return.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Pinger is implemented by stores backed by a server or file that can be
// unreachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that s can serve requests. Stores without a Pinger are always
// reachable.
func Ping(ctx context.Context, s Store) error {
	p, ok := s.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return StorageError("ping", "", err)
	}
	return nil
}

// StorageError wraps a backend failure for one operation.
func StorageError(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
	}
	return fmt.Errorf("%w: %s %q: %w", core.ErrStorage, op, key, err)
}

// GetJSON loads and decodes the value under key. found is false when the key
// is absent; a stored value that fails to decode is reported as ErrFormat.
func GetJSON[T any](ctx context.Context, s Store, key string) (value T, found bool, err error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, true, fmt.Errorf("%w: decode %q: %w", core.ErrFormat, key, err)
	}
	return value, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %w", core.ErrFormat, key, err)
	}
	return s.Set(ctx, key, raw)
}
