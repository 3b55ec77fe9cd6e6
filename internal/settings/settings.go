// Package settings owns user preferences and the category table.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"costnest/internal/core"
	"costnest/internal/kv"
)

type Service struct {
	store  kv.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store kv.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap seeds defaults for whichever keys are absent. It never seeds a PIN.
func (s *Service) Bootstrap(ctx context.Context) error {
	seeds := []struct {
		key   string
		value any
	}{
		{kv.KeySettings, core.DefaultSettings()},
		{kv.KeyCategories, core.DefaultCategories()},
		{kv.KeyExpenses, []core.Expense{}},
	}

	for _, seed := range seeds {
		_, err := s.store.Get(ctx, seed.key)
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("check %s: %w", seed.key, err)
		}
		if err := kv.SetJSON(ctx, s.store, seed.key, seed.value); err != nil {
			return fmt.Errorf("seed %s: %w", seed.key, err)
		}
		s.logger.InfoContext(ctx, "Seeded default value", "key", seed.key)
	}
	return nil
}

// Settings returns the stored settings, or the defaults when none are stored.
func (s *Service) Settings(ctx context.Context) (core.Settings, error) {
	st, found, err := kv.GetJSON[core.Settings](ctx, s.store, kv.KeySettings)
	if err != nil {
		return core.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		return core.DefaultSettings(), nil
	}
	return st, nil
}

func (s *Service) SaveSettings(ctx context.Context, st core.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, s.store, kv.KeySettings, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Categories returns the stored category table, or the seed set when none is stored.
func (s *Service) Categories(ctx context.Context) ([]core.Category, error) {
	cats, found, err := kv.GetJSON[[]core.Category](ctx, s.store, kv.KeyCategories)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if !found || len(cats) == 0 {
		return core.DefaultCategories(), nil
	}
	return cats, nil
}

// CategoryNames maps category id to display name.
func (s *Service) CategoryNames(ctx context.Context) (map[string]string, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

// CategoryIndex maps category id to its full definition.
func (s *Service) CategoryIndex(ctx context.Context) (map[string]core.Category, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx, nil
}

// SaveCategories validates and replaces the whole category table.
func (s *Service) SaveCategories(ctx context.Context, cats []core.Category) error {
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate id %q", core.ErrInvalidCategoryDef, c.ID)
		}
		seen[c.ID] = true
	}
	if !seen[core.DefaultCategoryID] {
		return fmt.Errorf("%w: category %q is required", core.ErrInvalidCategoryDef, core.DefaultCategoryID)
	}
	if err := kv.SetJSON(ctx, s.store, kv.KeyCategories, cats); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	return nil
}
