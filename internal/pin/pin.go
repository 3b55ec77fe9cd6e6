// Package pin stores and checks the 4-digit access PIN.
//
// Only a salted SHA-256 digest is persisted. Having no digest stored means
// authentication is not required; that state is reported with ErrNoPIN and is
// never treated as a failed verification.
package pin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"costnest/internal/core"
	"costnest/internal/kv"
)

// DefaultSalt keeps digests written by earlier installs valid.
const DefaultSalt = "costnest_salt"

const pinLength = 4

// ErrNoPIN reports that no PIN has been configured.
var ErrNoPIN = errors.New("no PIN configured")

// Manager persists the PIN digest in a kv.Store.
type Manager struct {
	store  kv.Store
	salt   string
	logger *slog.Logger
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store kv.Store, salt string, opts ...Option) *Manager {
	if salt == "" {
		salt = DefaultSalt
	}
	m := &Manager{store: store, salt: salt, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidatePIN checks that candidate is exactly four ASCII digits.
func ValidatePIN(candidate string) error {
	if len(candidate) != pinLength {
		return core.ErrInvalidPIN
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return core.ErrInvalidPIN
		}
	}
	return nil
}

// Digest returns the lowercase hex SHA-256 of candidate followed by the salt.
func (m *Manager) Digest(candidate string) string {
	sum := sha256.Sum256([]byte(candidate + m.salt))
	return hex.EncodeToString(sum[:])
}

// Set validates candidate and replaces any stored digest with its digest.
func (m *Manager) Set(ctx context.Context, candidate string) error {
	if err := ValidatePIN(candidate); err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, m.store, kv.KeyPIN, m.Digest(candidate)); err != nil {
		return fmt.Errorf("save PIN: %w", err)
	}
	m.logger.InfoContext(ctx, "PIN updated")
	return nil
}

// Verify reports whether candidate matches the stored digest. It returns
// false and ErrNoPIN when no PIN is configured.
func (m *Manager) Verify(ctx context.Context, candidate string) (bool, error) {
	stored, err := m.stored(ctx)
	if err != nil {
		return false, err
	}
	got := m.Digest(candidate)
	return subtle.ConstantTimeCompare([]byte(got), []byte(stored)) == 1, nil
}

func (m *Manager) HasPIN(ctx context.Context) (bool, error) {
	_, err := m.stored(ctx)
	if errors.Is(err, ErrNoPIN) {
		return false, nil
	}
	return err == nil, err
}

// Disable removes the stored digest.
func (m *Manager) Disable(ctx context.Context) error {
	if err := m.store.Remove(ctx, kv.KeyPIN); err != nil {
		return fmt.Errorf("remove PIN: %w", err)
	}
	m.logger.InfoContext(ctx, "PIN disabled")
	return nil
}

func (m *Manager) stored(ctx context.Context) (string, error) {
	digest, found, err := kv.GetJSON[string](ctx, m.store, kv.KeyPIN)
	if err != nil {
		return "", fmt.Errorf("load PIN: %w", err)
	}
	if !found || digest == "" {
		return "", ErrNoPIN
	}
	return digest, nil
}
