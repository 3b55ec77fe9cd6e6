// Package pricealert keeps the list of products being watched for a price drop.
// Fetching prices is left to callers; RecordPrice only evaluates a price it is given.
package pricealert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"costnest/internal/core"
	"costnest/internal/kv"
)

type Service struct {
	mu     sync.Mutex
	store  kv.Store
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store kv.Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]core.PriceAlert, error) {
	alerts, _, err := kv.GetJSON[[]core.PriceAlert](ctx, s.store, kv.KeyPriceAlerts)
	if err != nil {
		return nil, fmt.Errorf("load price alerts: %w", err)
	}
	if alerts == nil {
		alerts = []core.PriceAlert{}
	}
	return alerts, nil
}

// Add stores a new active alert with a fresh id.
func (s *Service) Add(ctx context.Context, a core.PriceAlert) (core.PriceAlert, error) {
	a.ProductName = strings.TrimSpace(a.ProductName)
	if err := a.Validate(); err != nil {
		return core.PriceAlert{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.List(ctx)
	if err != nil {
		return core.PriceAlert{}, err
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now().UTC()
	a.IsActive = true

	if err := s.save(ctx, append(alerts, a)); err != nil {
		return core.PriceAlert{}, err
	}
	s.logger.InfoContext(ctx, "Price alert added", "id", a.ID, "product", a.ProductName)
	return a, nil
}

// Deactivate turns the alert off without removing it.
func (s *Service) Deactivate(ctx context.Context, id string) (core.PriceAlert, error) {
	return s.mutate(ctx, id, func(a *core.PriceAlert) {
		a.IsActive = false
	})
}

// RecordPrice stores an observed price. An active alert whose target is met
// is deactivated and reported as triggered.
func (s *Service) RecordPrice(ctx context.Context, id string, price core.Money) (core.PriceAlert, bool, error) {
	if err := price.Validate(); err != nil {
		return core.PriceAlert{}, false, err
	}
	var triggered bool
	a, err := s.mutate(ctx, id, func(a *core.PriceAlert) {
		a.CurrentPrice = &price
		if a.IsActive && price.Cents <= a.TargetPrice.Cents {
			a.IsActive = false
			triggered = true
		}
	})
	if err != nil {
		return core.PriceAlert{}, false, err
	}
	if triggered {
		s.logger.InfoContext(ctx, "Price alert triggered",
			"id", id, "price", price.String(), "target", a.TargetPrice.String())
	}
	return a, triggered, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*core.PriceAlert)) (core.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.List(ctx)
	if err != nil {
		return core.PriceAlert{}, err
	}
	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		fn(&alerts[i])
		if err := s.save(ctx, alerts); err != nil {
			return core.PriceAlert{}, err
		}
		return alerts[i], nil
	}
	return core.PriceAlert{}, fmt.Errorf("%w: %s", core.ErrPriceAlertNotFound, id)
}

func (s *Service) save(ctx context.Context, alerts []core.PriceAlert) error {
	if err := kv.SetJSON(ctx, s.store, kv.KeyPriceAlerts, alerts); err != nil {
		return fmt.Errorf("save price alerts: %w", err)
	}
	return nil
}
