// Package ledger keeps the expense collection.
//
// The whole collection lives under one key and every mutation rewrites it.
// Mutations through one Ledger are serialized, so concurrent callers sharing it
// cannot lose each other's updates. Separate processes writing the same backend
// are still last-writer-wins.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"costnest/internal/core"
	"costnest/internal/kv"
)

const duplicateWindow = 24 * time.Hour

// CategorySource supplies the known category ids.
type CategorySource interface {
	Categories(ctx context.Context) ([]core.Category, error)
}

// Filter narrows List. Zero values match everything; the date range is inclusive.
type Filter struct {
	Category  string
	StartDate *core.Date
	EndDate   *core.Date
}

// AddResult is the stored record plus the advisory duplicate report.
// Duplicates lists the earlier records that look like the same purchase.
type AddResult struct {
	Expense           core.Expense   `json:"expense"`
	PossibleDuplicate bool           `json:"possibleDuplicate"`
	Duplicates        []core.Expense `json:"duplicates,omitempty"`
}

type Ledger struct {
	mu         sync.Mutex
	store      kv.Store
	categories CategorySource
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New builds a Ledger. categories may be nil, in which case every non-blank
// category is accepted as is.
func New(store kv.Store, categories CategorySource, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		categories: categories,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add validates e, assigns its id and creation time and persists it.
func (l *Ledger) Add(ctx context.Context, e core.Expense) (AddResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	category, err := l.resolveCategory(ctx, e.Category)
	if err != nil {
		return AddResult{}, err
	}
	e.Category = category
	e.Description = strings.TrimSpace(e.Description)
	if err := e.Validate(); err != nil {
		return AddResult{}, err
	}

	expenses, err := l.load(ctx)
	if err != nil {
		return AddResult{}, err
	}

	dups := duplicatesOf(expenses, e)

	now := l.now()
	e.ID = newID(now, expenses)
	e.CreatedAt = now.UTC()
	e.UpdatedAt = nil

	expenses = append(expenses, e)
	if err := l.save(ctx, expenses); err != nil {
		return AddResult{}, err
	}

	l.logger.InfoContext(ctx, "Expense added",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.Date.String(),
		"possible_duplicate", len(dups) > 0)
	return AddResult{Expense: e, PossibleDuplicate: len(dups) > 0, Duplicates: dups}, nil
}

// Update merges patch into the record with id and persists it.
func (l *Ledger) Update(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expenses, err := l.load(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	i := indexOf(expenses, id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("%w: %s", core.ErrExpenseNotFound, id)
	}

	updated := patch.Apply(expenses[i])
	if patch.Category != nil {
		if updated.Category, err = l.resolveCategory(ctx, *patch.Category); err != nil {
			return core.Expense{}, err
		}
	}
	updated.Description = strings.TrimSpace(updated.Description)
	if err := updated.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := l.now().UTC()
	updated.UpdatedAt = &now

	expenses[i] = updated
	if err := l.save(ctx, expenses); err != nil {
		return core.Expense{}, err
	}
	l.logger.InfoContext(ctx, "Expense updated", "id", id)
	return updated, nil
}

// Delete removes the record with id. A missing id leaves the collection untouched.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	expenses, err := l.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(expenses, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", core.ErrExpenseNotFound, id)
	}

	expenses = append(expenses[:i], expenses[i+1:]...)
	if err := l.save(ctx, expenses); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (core.Expense, error) {
	expenses, err := l.load(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	i := indexOf(expenses, id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("%w: %s", core.ErrExpenseNotFound, id)
	}
	return expenses[i], nil
}

// Clear replaces the collection with an empty one.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.save(ctx, []core.Expense{}); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "All expenses cleared")
	return nil
}

// Replace overwrites the whole collection with expenses as given. It is the
// restore path and performs no validation.
func (l *Ledger) Replace(ctx context.Context, expenses []core.Expense) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expenses == nil {
		expenses = []core.Expense{}
	}
	if err := l.save(ctx, expenses); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Expenses replaced", "count", len(expenses))
	return nil
}

// All returns every record in insertion order.
func (l *Ledger) All(ctx context.Context) ([]core.Expense, error) {
	return l.load(ctx)
}

// List returns the records matching f, newest date first. Records sharing a
// date come most recently added first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]core.Expense, error) {
	expenses, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.Expense, 0, len(expenses))
	for i := len(expenses) - 1; i >= 0; i-- {
		if f.matches(expenses[i]) {
			out = append(out, expenses[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

// duplicatesOf returns the records in expenses that look like the same
// purchase as e.
func duplicatesOf(expenses []core.Expense, e core.Expense) []core.Expense {
	var dups []core.Expense
	for _, existing := range expenses {
		if existing.ID != e.ID && IsDuplicate(existing, e) {
			dups = append(dups, existing)
		}
	}
	return dups
}

// IsDuplicate reports whether a and b are dated within 24 hours of each other,
// have the same amount and the same description ignoring case and padding.
func IsDuplicate(a, b core.Expense) bool {
	diff := a.Date.Sub(b.Date.Time)
	if diff < 0 {
		diff = -diff
	}
	if diff >= duplicateWindow {
		return false
	}
	return a.Amount == b.Amount &&
		strings.EqualFold(strings.TrimSpace(a.Description), strings.TrimSpace(b.Description))
}

func (f Filter) matches(e core.Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.StartDate != nil && e.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && e.Date.After(f.EndDate.Time) {
		return false
	}
	return true
}

// resolveCategory maps a blank or unknown id to the default category.
func (l *Ledger) resolveCategory(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.DefaultCategoryID, nil
	}
	if l.categories == nil {
		return id, nil
	}
	cats, err := l.categories.Categories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if c.ID == id {
			return id, nil
		}
	}
	l.logger.DebugContext(ctx, "Unknown category, using default", "category", id)
	return core.DefaultCategoryID, nil
}

func (l *Ledger) load(ctx context.Context) ([]core.Expense, error) {
	expenses, _, err := kv.GetJSON[[]core.Expense](ctx, l.store, kv.KeyExpenses)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

func (l *Ledger) save(ctx context.Context, expenses []core.Expense) error {
	if err := kv.SetJSON(ctx, l.store, kv.KeyExpenses, expenses); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	return nil
}

func indexOf(expenses []core.Expense, id string) int {
	for i, e := range expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// newID is a base-36 millisecond timestamp followed by a random suffix.
func newID(now time.Time, existing []core.Expense) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 36)
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		id := prefix + suffix
		if indexOf(existing, id) < 0 {
			return id
		}
	}
}
