package ledger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"costnest/internal/core"
	"costnest/internal/kv"
	"costnest/internal/kv/memory"
	"costnest/internal/log"
	"costnest/internal/settings"
)

// countingStore counts writes to the backend.
type countingStore struct {
	kv.Store
	mu     sync.Mutex
	writes int
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Store.Set(ctx, key, value)
}

func newTestLedger(t *testing.T) (*Ledger, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	clock := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	l := New(store, settings.NewService(store), WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}))
	return l, store
}

func expense(amount int64, desc, category string, date core.Date) core.Expense {
	return core.Expense{Amount: core.Money{Cents: amount}, Description: desc, Category: category, Date: date}
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	res, err := l.Add(ctx, expense(1250, " Coffee ", "food", core.NewDate(2024, time.January, 15)))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	e := res.Expense
	if e.ID == "" || e.CreatedAt.IsZero() || e.UpdatedAt != nil {
		t.Fatalf("expected id and createdAt assigned: %+v", e)
	}
	if e.Description != "Coffee" {
		t.Fatalf("expected trimmed description, got %q", e.Description)
	}
	if res.PossibleDuplicate {
		t.Fatal("first record cannot be a duplicate")
	}

	list, err := l.List(ctx, Filter{})
	if err != nil || len(list) != 1 || list[0].ID != e.ID {
		t.Fatalf("expected exactly the added record, got %+v (%v)", list, err)
	}

	res2, err := l.Add(ctx, expense(1250, "Coffee", "food", core.NewDate(2024, time.January, 15)))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res2.Expense.ID == e.ID {
		t.Fatal("ids must be unique")
	}
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	d := core.NewDate(2024, time.January, 15)

	tests := []struct {
		name string
		e    core.Expense
		want error
	}{
		{"zero amount", expense(0, "x", "food", d), core.ErrInvalidAmount},
		{"negative amount", expense(-5, "x", "food", d), core.ErrInvalidAmount},
		{"blank description", expense(100, "   ", "food", d), core.ErrEmptyDescription},
		{"missing date", expense(100, "x", "food", core.Date{}), core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Add(ctx, tt.e)
			if !errors.Is(err, tt.want) || !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if store.writes != 0 {
		t.Fatalf("rejected records must not be written, saw %d writes", store.writes)
	}
}

func TestAddResolvesCategory(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	d := core.NewDate(2024, time.February, 1)

	for _, in := range []string{"", "  ", "nonexistent"} {
		res, err := l.Add(ctx, expense(100, "thing "+in, in, d))
		if err != nil {
			t.Fatalf("add %q: %v", in, err)
		}
		if res.Expense.Category != core.DefaultCategoryID {
			t.Errorf("category %q resolved to %q, want %q", in, res.Expense.Category, core.DefaultCategoryID)
		}
	}
	res, _ := l.Add(ctx, expense(100, "bus", "transport", d))
	if res.Expense.Category != "transport" {
		t.Fatalf("known category must be kept, got %q", res.Expense.Category)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	add := func(desc, cat string, day int) string {
		res, err := l.Add(ctx, expense(100, desc, cat, core.NewDate(2024, time.March, day)))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		return res.Expense.ID
	}
	a := add("a", "food", 1)
	b := add("b", "food", 10)
	c := add("c", "bills", 5)
	d := add("d", "food", 10)
	e := add("e", "food", 31)

	all, _ := l.List(ctx, Filter{})
	want := []string{e, d, b, c, a}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("position %d: got %s (%s), want %s", i, all[i].ID, all[i].Description, id)
		}
	}

	start := core.NewDate(2024, time.March, 1)
	end := core.NewDate(2024, time.March, 10)
	got, _ := l.List(ctx, Filter{Category: "food", StartDate: &start, EndDate: &end})
	if len(got) != 3 || got[0].ID != d || got[1].ID != b || got[2].ID != a {
		t.Fatalf("unexpected filtered list %+v", got)
	}

	none, _ := l.List(ctx, Filter{Category: "health"})
	if len(none) != 0 {
		t.Fatalf("expected no health records, got %d", len(none))
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	res, _ := l.Add(ctx, expense(500, "Lunch", "food", core.NewDate(2024, time.April, 2)))

	amount := core.Money{Cents: 750}
	desc := "Team lunch"
	updated, err := l.Update(ctx, res.Expense.ID, core.ExpensePatch{Amount: &amount, Description: &desc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 750 || updated.Description != "Team lunch" || updated.Category != "food" {
		t.Fatalf("unexpected merge %+v", updated)
	}
	if updated.UpdatedAt == nil || !updated.CreatedAt.Equal(res.Expense.CreatedAt) {
		t.Fatalf("expected updatedAt stamped and createdAt kept: %+v", updated)
	}

	bad := core.Money{Cents: 0}
	if _, err := l.Update(ctx, res.Expense.ID, core.ExpensePatch{Amount: &bad}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	stored, _ := l.Get(ctx, res.Expense.ID)
	if stored.Amount.Cents != 750 {
		t.Fatalf("failed update must not be applied, got %d", stored.Amount.Cents)
	}

	if _, err := l.Update(ctx, "missing", core.ExpensePatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	res, _ := l.Add(ctx, expense(100, "x", "food", core.NewDate(2024, time.May, 5)))
	_, _ = l.Add(ctx, expense(200, "y", "food", core.NewDate(2024, time.May, 6)))

	writes := store.writes
	if err := l.Delete(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if store.writes != writes {
		t.Fatal("deleting a missing id must not rewrite the collection")
	}
	if list, _ := l.List(ctx, Filter{}); len(list) != 2 {
		t.Fatalf("length must be unchanged, got %d", len(list))
	}

	if err := l.Delete(ctx, res.Expense.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := l.List(ctx, Filter{})
	for _, e := range list {
		if e.ID == res.Expense.ID {
			t.Fatal("deleted record still listed")
		}
	}
	if _, err := l.Get(ctx, res.Expense.ID); !errors.Is(err, core.ErrExpenseNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_, _ = l.Add(ctx, expense(100, "x", "food", core.NewDate(2024, time.May, 5)))
	if err := l.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if list, _ := l.List(ctx, Filter{}); len(list) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(list))
	}
}

func TestDuplicateDetection(t *testing.T) {
	ctx := context.Background()
	d := core.NewDate(2024, time.June, 10)

	tests := []struct {
		name string
		e    core.Expense
		dup  bool
	}{
		{"same day case-insensitive", expense(999, "  groceries", "food", d), true},
		{"next day", expense(999, "Groceries", "food", core.NewDate(2024, time.June, 11)), false},
		{"different amount", expense(998, "Groceries", "food", d), false},
		{"different description", expense(999, "Grocery run", "food", d), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newTestLedger(t)
			first, err := l.Add(ctx, expense(999, "Groceries", "food", d))
			if err != nil || first.PossibleDuplicate || len(first.Duplicates) != 0 {
				t.Fatalf("first record cannot be a duplicate: %+v %v", first, err)
			}

			res, err := l.Add(ctx, tt.e)
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if res.PossibleDuplicate != tt.dup {
				t.Fatalf("expected duplicate=%v, got %+v", tt.dup, res)
			}
			if tt.dup && (len(res.Duplicates) != 1 || res.Duplicates[0].ID != first.Expense.ID) {
				t.Fatalf("expected the first record reported, got %+v", res.Duplicates)
			}
			if list, _ := l.List(ctx, Filter{}); len(list) != 2 {
				t.Fatal("duplicates are advisory and must still be stored")
			}
		})
	}
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := New(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Add(ctx, expense(int64(100+i), "item", "food", core.NewDate(2024, time.July, 1)))
			if err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := l.List(ctx, Filter{})
	if len(list) != 25 {
		t.Fatalf("expected 25 records, got %d", len(list))
	}
}

func TestInjectedLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf}).WithComponent(log.ComponentLedger)
	l := New(memory.New(), nil, WithLogger(logger.Logger))

	if _, err := l.Add(context.Background(), expense(450, "Bread", "food", core.NewDate(2024, time.January, 5))); err != nil {
		t.Fatalf("add: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "Expense added") {
		t.Fatalf("add was not logged: %q", line)
	}
	if n := strings.Count(line, "component="); n != 1 {
		t.Errorf("component logged %d times: %q", n, line)
	}
}
