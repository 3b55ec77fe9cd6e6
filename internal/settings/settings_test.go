package settings

import (
	"context"
	"errors"
	"testing"

	"costnest/internal/core"
	"costnest/internal/kv"
	"costnest/internal/kv/memory"
)

func TestBootstrapSeedsMissingKeysOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	custom := core.DefaultSettings()
	custom.Currency = "EUR"
	custom.CurrencySymbol = "€"
	if err := kv.SetJSON(ctx, store, kv.KeySettings, custom); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewService(store)
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	st, err := svc.Settings(ctx)
	if err != nil || st.Currency != "EUR" {
		t.Fatalf("existing settings must survive bootstrap: %+v %v", st, err)
	}
	cats, err := svc.Categories(ctx)
	if err != nil || len(cats) != 7 {
		t.Fatalf("expected 7 seed categories, got %d (%v)", len(cats), err)
	}
	raw, err := store.Get(ctx, kv.KeyExpenses)
	if err != nil || string(raw) != "[]" {
		t.Fatalf("expected empty expense array, got %s (%v)", raw, err)
	}
	if _, err := store.Get(ctx, kv.KeyPIN); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("bootstrap must never seed a PIN, got %v", err)
	}
}

func TestSettingsDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	st, err := svc.Settings(ctx)
	if err != nil || st != core.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v %v", st, err)
	}

	st.Currency = "eur"
	if err := svc.SaveSettings(ctx, st); !errors.Is(err, core.ErrInvalidCurrency) {
		t.Fatalf("expected invalid currency, got %v", err)
	}
	st.Currency = "GBP"
	st.Theme = "dark"
	if err := svc.SaveSettings(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := svc.Settings(ctx)
	if got.Currency != "GBP" || got.Theme != "dark" {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestCategoryNamesAndSave(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	names, err := svc.CategoryNames(ctx)
	if err != nil || names["food"] != "Food & Dining" {
		t.Fatalf("unexpected names %v %v", names, err)
	}

	err = svc.SaveCategories(ctx, []core.Category{{ID: "rent", Name: "Rent", Color: "#112233"}})
	if !errors.Is(err, core.ErrInvalidCategoryDef) {
		t.Fatalf("table without %q must be rejected, got %v", core.DefaultCategoryID, err)
	}

	table := []core.Category{
		{ID: "rent", Name: "Rent", Color: "#112233"},
		{ID: "other", Name: "Other", Color: "#A8A8A8"},
	}
	if err := svc.SaveCategories(ctx, table); err != nil {
		t.Fatalf("save: %v", err)
	}
	idx, _ := svc.CategoryIndex(ctx)
	if len(idx) != 2 || idx["rent"].Color != "#112233" {
		t.Fatalf("unexpected index %v", idx)
	}
}
