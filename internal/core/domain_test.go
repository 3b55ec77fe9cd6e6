package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-01-15", NewDate(2024, time.January, 15), true},
		{"2024-01-15T23:30:00+02:00", NewDate(2024, time.January, 15), true},
		{" 2024-02-29 ", NewDate(2024, time.February, 29), true},
		{"2023-02-29", Date{}, false},
		{"15/01/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, time.March, 5))
	if err != nil || string(b) != `"2024-03-05"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-05"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.InMonth(2024, time.March) || d.InMonth(2024, time.April) {
		t.Fatalf("InMonth mismatch for %v", d)
	}
	if err := json.Unmarshal([]byte(`20240305`), &d); err == nil {
		t.Fatalf("expected error for numeric date")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Amount:      Money{Cents: 1250},
		Description: "Coffee",
		Category:    "food",
		Date:        NewDate(2024, time.January, 15),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]Expense{
		"zero amount":      {Amount: Money{}, Description: "a", Category: "c", Date: good.Date},
		"negative amount":  {Amount: Money{Cents: -1}, Description: "a", Category: "c", Date: good.Date},
		"blank desc":       {Amount: good.Amount, Description: "   ", Category: "c", Date: good.Date},
		"long desc":        {Amount: good.Amount, Description: strings.Repeat("x", 501), Category: "c", Date: good.Date},
		"zero date":        {Amount: good.Amount, Description: "a", Category: "c"},
		"missing category": {Amount: good.Amount, Description: "a", Date: good.Date},
	}
	for name, e := range bads {
		err := e.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestExpensePatchApply(t *testing.T) {
	base := Expense{ID: "x", Amount: Money{Cents: 100}, Description: "a", Category: "food", Date: NewDate(2024, 1, 1)}
	desc := "b"
	amount := Money{Cents: 200}
	got := ExpensePatch{Description: &desc, Amount: &amount}.Apply(base)
	if got.Description != "b" || got.Amount.Cents != 200 || got.Category != "food" || got.ID != "x" {
		t.Fatalf("unexpected merge result: %+v", got)
	}
	if base.Description != "a" {
		t.Fatalf("Apply mutated its input")
	}
}

func TestSettingsAndBudgetValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	s := DefaultSettings()
	s.Currency = "usd"
	if !errors.Is(s.Validate(), ErrInvalidCurrency) {
		t.Errorf("expected currency error")
	}
	s = DefaultSettings()
	s.Theme = "neon"
	if !errors.Is(s.Validate(), ErrInvalidTheme) {
		t.Errorf("expected theme error")
	}
	if DefaultSettings().LockTimeout() != 5*time.Minute {
		t.Errorf("unexpected default lock timeout %v", DefaultSettings().LockTimeout())
	}

	if err := (Budget{Amount: Money{Cents: 1}, Period: Monthly}).Validate(); err != nil {
		t.Errorf("expected ok budget, got %v", err)
	}
	if !errors.Is((Budget{Amount: Money{Cents: 1}, Period: "weekly"}).Validate(), ErrInvalidPeriod) {
		t.Errorf("expected period error")
	}
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()
	if len(cats) != 7 {
		t.Fatalf("expected 7 seed categories, got %d", len(cats))
	}
	seen := map[string]bool{}
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			t.Errorf("seed category %q invalid: %v", c.ID, err)
		}
		if seen[c.ID] {
			t.Errorf("duplicate category id %q", c.ID)
		}
		seen[c.ID] = true
	}
	if !seen[DefaultCategoryID] {
		t.Errorf("seed set lacks %q", DefaultCategoryID)
	}
}
