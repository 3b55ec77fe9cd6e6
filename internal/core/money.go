// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Conversion to and from decimal text goes
// through shopspring/decimal so no float rounding ever touches a stored amount.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a user-entered decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Signs, exponents and zero are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return 0, ErrInvalidAmount
		}
	}
	if s == "." {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents, err := decimalToCents(d)
	if err != nil || cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	// Prevent overflow when shifting by two places
	if d.Abs().GreaterThan(decimal.New(1<<62, -2)) {
		return 0, ErrInvalidAmount
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the shortest exact decimal form, e.g. "12.5".
func (m Money) String() string {
	return m.Decimal().String()
}

// Fixed renders the amount with exactly two decimals, e.g. "12.50".
func (m Money) Fixed() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as a float64 for spreadsheet cells and display.
// Use cents for arithmetic.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted amount as typed by a user,
// which may use a comma as the decimal separator.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		cents, err := ParseDecimalToCents(string(data[1 : len(data)-1]))
		if err != nil {
			return fmt.Errorf("%w: %s", err, data)
		}
		m.Cents = cents
		return nil
	}
	raw := string(data)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, raw)
	}
	cents, err := decimalToCents(d)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}
