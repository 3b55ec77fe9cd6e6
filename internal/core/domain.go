package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Monthly BudgetPeriod = "monthly"

	// DefaultCategoryID is where expenses land when their category cannot be resolved.
	DefaultCategoryID = "other"

	// FormatVersion tags exported backup documents.
	FormatVersion = "1.0.0"

	dateLayout        = "2006-01-02"
	maxDescriptionLen = 500
)

type (
	BudgetPeriod string

	// Date is a calendar date with no time component, stored at UTC midnight.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string     `json:"id"`
		Amount      Money      `json:"amount"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
		Date        Date       `json:"date"`
		Currency    string     `json:"currency,omitempty"`
		URL         string     `json:"url,omitempty"` // page the expense was captured from
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	}

	// ExpensePatch carries the fields of a partial update; nil fields are left untouched.
	ExpensePatch struct {
		Amount      *Money  `json:"amount,omitempty"`
		Description *string `json:"description,omitempty"`
		Category    *string `json:"category,omitempty"`
		Date        *Date   `json:"date,omitempty"`
	}

	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}

	Budget struct {
		Amount    Money        `json:"amount"`
		Period    BudgetPeriod `json:"period"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	Settings struct {
		Currency       string `json:"currency"`
		CurrencySymbol string `json:"currencySymbol,omitempty"`
		Notifications  bool   `json:"notifications"`
		PriceAlerts    bool   `json:"priceAlerts"`
		Theme          string `json:"theme"`
		AutoLock       bool   `json:"autoLock"`
		LockTimeoutMs  int64  `json:"lockTimeout,omitempty"`
	}

	PriceAlert struct {
		ID           string    `json:"id"`
		ProductName  string    `json:"productName"`
		ProductURL   string    `json:"productUrl,omitempty"`
		TargetPrice  Money     `json:"targetPrice"`
		CurrentPrice *Money    `json:"currentPrice,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		IsActive     bool      `json:"isActive"`
	}
)

// Error categories. Every specific error below wraps exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrFormat     = errors.New("format error")
	ErrStorage    = errors.New("storage error")
)

var (
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyDescription   = fmt.Errorf("%w: empty description", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLen)
	ErrEmptyCategory      = fmt.Errorf("%w: empty category", ErrValidation)
	ErrInvalidPeriod      = fmt.Errorf("%w: invalid budget period", ErrValidation)
	ErrInvalidCurrency    = fmt.Errorf("%w: invalid currency code", ErrValidation)
	ErrInvalidTheme       = fmt.Errorf("%w: invalid theme", ErrValidation)
	ErrInvalidPIN         = fmt.Errorf("%w: PIN must be exactly 4 digits", ErrValidation)
	ErrEmptyProductName   = fmt.Errorf("%w: empty product name", ErrValidation)
	ErrInvalidCategoryDef = fmt.Errorf("%w: invalid category definition", ErrValidation)
	ErrExpenseNotFound    = fmt.Errorf("expense %w", ErrNotFound)
	ErrPriceAlertNotFound = fmt.Errorf("price alert %w", ErrNotFound)
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	themes          = map[string]bool{"default": true, "light": true, "dark": true}
)

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp, keeping only the calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// InMonth reports whether the date falls in the given calendar month.
func (d Date) InMonth(year int, month time.Month) bool {
	y, m, _ := d.Date()
	return y == year && m == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidDate)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Apply returns a copy of e with the non-nil patch fields merged in.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return ErrInvalidCategoryDef
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		return fmt.Errorf("%w: color %q", ErrInvalidCategoryDef, c.Color)
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Period != Monthly {
		return ErrInvalidPeriod
	}
	return nil
}

func (s Settings) Validate() error {
	if !currencyPattern.MatchString(s.Currency) {
		return ErrInvalidCurrency
	}
	if !themes[s.Theme] {
		return ErrInvalidTheme
	}
	if s.LockTimeoutMs < 0 {
		return fmt.Errorf("%w: negative lock timeout", ErrValidation)
	}
	return nil
}

// LockTimeout returns the configured auto-lock delay, or zero when unset.
func (s Settings) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMs) * time.Millisecond
}

func (a PriceAlert) Validate() error {
	if strings.TrimSpace(a.ProductName) == "" {
		return ErrEmptyProductName
	}
	return a.TargetPrice.Validate()
}

// DefaultSettings mirrors what a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		Currency:       "USD",
		CurrencySymbol: "$",
		Notifications:  true,
		PriceAlerts:    true,
		Theme:          "default",
		AutoLock:       true,
		LockTimeoutMs:  (5 * time.Minute).Milliseconds(),
	}
}

// DefaultCategories returns the seed category table.
func DefaultCategories() []Category {
	return []Category{
		{ID: "food", Name: "Food & Dining", Icon: "restaurant", Color: "#FF6B6B"},
		{ID: "shopping", Name: "Shopping", Icon: "shopping_bag", Color: "#4ECDC4"},
		{ID: "entertainment", Name: "Entertainment", Icon: "movie", Color: "#45B7D1"},
		{ID: "transport", Name: "Transportation", Icon: "directions_car", Color: "#96CEB4"},
		{ID: "bills", Name: "Bills & Utilities", Icon: "receipt", Color: "#FFEAA7"},
		{ID: "health", Name: "Health & Fitness", Icon: "fitness_center", Color: "#DDA0DD"},
		{ID: DefaultCategoryID, Name: "Other", Icon: "category", Color: "#A8A8A8"},
	}
}
