// Package budget aggregates expenses by calendar month and evaluates the
// monthly budget against what has been spent.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"costnest/internal/core"
	"costnest/internal/kv"
)

// Level is how close the current month's spending is to the budget.
type Level string

const (
	LevelNone     Level = "none"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelExceeded Level = "exceeded"
)

// insightWindow is the trailing period used for the average daily spend.
const insightWindow = 30

// ExpenseSource yields every stored expense.
type ExpenseSource interface {
	All(ctx context.Context) ([]core.Expense, error)
}

// CategorySource yields the category definitions used to name aggregates,
// keyed by id.
type CategorySource interface {
	CategoryIndex(ctx context.Context) (map[string]core.Category, error)
}

// Status is the budget evaluation for one month.
type Status struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	HasBudget bool       `json:"hasBudget"`
	Level     Level      `json:"level"`
	Spent     core.Money `json:"spent"`
	Budget    core.Money `json:"budget"`
	Remaining core.Money `json:"remaining"`
	Percent   float64    `json:"percent"`
}

// Insights summarizes recent spending.
type Insights struct {
	TopCategory   *core.CategoryAmount `json:"topCategory"`
	AverageDaily  core.Money           `json:"averageDaily"`
	TotalExpenses int                  `json:"totalExpenses"`
	MonthlyTotal  core.Money           `json:"monthlyTotal"`
}

type Engine struct {
	store      kv.Store
	expenses   ExpenseSource
	categories CategorySource
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(store kv.Store, expenses ExpenseSource, categories CategorySource, opts ...Option) *Engine {
	e := &Engine{store: store, expenses: expenses, categories: categories, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validMonth(month time.Month) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d out of range", core.ErrValidation, month)
	}
	return nil
}

func (e *Engine) inMonth(ctx context.Context, year int, month time.Month) ([]core.Expense, error) {
	if err := validMonth(month); err != nil {
		return nil, err
	}
	all, err := e.expenses.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(all))
	for _, x := range all {
		if x.Date.InMonth(year, month) {
			out = append(out, x)
		}
	}
	return out, nil
}

// MonthlyTotal sums every expense dated in the given calendar month.
func (e *Engine) MonthlyTotal(ctx context.Context, year int, month time.Month) (core.Money, error) {
	expenses, err := e.inMonth(ctx, year, month)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, x := range expenses {
		total = total.Add(x.Amount)
	}
	return total, nil
}

// CategoryTotals sums the month's expenses per category id.
func (e *Engine) CategoryTotals(ctx context.Context, year int, month time.Month) (map[string]core.Money, error) {
	expenses, err := e.inMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]core.Money)
	for _, x := range expenses {
		totals[x.Category] = totals[x.Category].Add(x.Amount)
	}
	return totals, nil
}

// Overview returns the month's total and per-category amounts, largest first.
func (e *Engine) Overview(ctx context.Context, year int, month time.Month) (core.MonthOverview, error) {
	expenses, err := e.inMonth(ctx, year, month)
	if err != nil {
		return core.MonthOverview{}, err
	}
	index, err := e.categoryIndex(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}

	ov := core.MonthOverview{Year: year, Month: month, Count: len(expenses), ByCategory: []core.CategoryAmount{}}
	totals := make(map[string]core.Money)
	for _, x := range expenses {
		ov.Total = ov.Total.Add(x.Amount)
		totals[x.Category] = totals[x.Category].Add(x.Amount)
	}
	for id, amount := range totals {
		ov.ByCategory = append(ov.ByCategory, categoryAmount(index, id, amount))
	}
	sortByAmount(ov.ByCategory)
	return ov, nil
}

// SetBudget replaces the singleton budget. An empty period means monthly.
func (e *Engine) SetBudget(ctx context.Context, amount core.Money, period core.BudgetPeriod) (core.Budget, error) {
	if period == "" {
		period = core.Monthly
	}
	b := core.Budget{Amount: amount, Period: period, CreatedAt: e.now().UTC()}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if err := kv.SetJSON(ctx, e.store, kv.KeyBudget, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	e.logger.InfoContext(ctx, "Budget set", "amount_cents", amount.Cents, "period", period)
	return b, nil
}

// Budget returns the configured budget; ok is false when none is set.
func (e *Engine) Budget(ctx context.Context) (b core.Budget, ok bool, err error) {
	b, ok, err = kv.GetJSON[core.Budget](ctx, e.store, kv.KeyBudget)
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("load budget: %w", err)
	}
	return b, ok, nil
}

func (e *Engine) ClearBudget(ctx context.Context) error {
	if err := e.store.Remove(ctx, kv.KeyBudget); err != nil {
		return fmt.Errorf("clear budget: %w", err)
	}
	return nil
}

// Status evaluates the budget against the calendar month containing now.
func (e *Engine) Status(ctx context.Context, now time.Time) (Status, error) {
	year, month := now.Year(), now.Month()
	spent, err := e.MonthlyTotal(ctx, year, month)
	if err != nil {
		return Status{}, err
	}
	st := Status{Year: year, Month: month, Level: LevelNone, Spent: spent}

	b, ok, err := e.Budget(ctx)
	if err != nil {
		return Status{}, err
	}
	if !ok || b.Amount.Cents <= 0 {
		return st, nil
	}

	st.HasBudget = true
	st.Budget = b.Amount
	st.Remaining = core.Money{Cents: b.Amount.Cents - spent.Cents}
	st.Level = LevelFor(spent, b.Amount)
	st.Percent = spent.Decimal().Div(b.Amount.Decimal()).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	return st, nil
}

// LevelFor classifies spent against budget: info from 50%, warning from 80%,
// exceeded from 100%.
func LevelFor(spent, budget core.Money) Level {
	if budget.Cents <= 0 {
		return LevelNone
	}
	s, b := spent.Cents*100, budget.Cents
	switch {
	case s >= 100*b:
		return LevelExceeded
	case s >= 80*b:
		return LevelWarning
	case s >= 50*b:
		return LevelInfo
	default:
		return LevelNone
	}
}

// Insights reports the current month's top category and total, the average
// daily spend over the trailing 30 days and the overall record count.
func (e *Engine) Insights(ctx context.Context, now time.Time) (Insights, error) {
	all, err := e.expenses.All(ctx)
	if err != nil {
		return Insights{}, err
	}
	ov, err := e.Overview(ctx, now.Year(), now.Month())
	if err != nil {
		return Insights{}, err
	}

	in := Insights{TotalExpenses: len(all), MonthlyTotal: ov.Total}
	if len(ov.ByCategory) > 0 {
		top := ov.ByCategory[0]
		in.TopCategory = &top
	}

	since := core.DateOf(now).AddDate(0, 0, -insightWindow)
	var recent int64
	for _, x := range all {
		if !x.Date.Before(since) {
			recent += x.Amount.Cents
		}
	}
	in.AverageDaily = core.Money{Cents: decimal.NewFromInt(recent).Div(decimal.NewFromInt(insightWindow)).Round(0).IntPart()}
	return in, nil
}

func (e *Engine) categoryIndex(ctx context.Context) (map[string]core.Category, error) {
	if e.categories == nil {
		return map[string]core.Category{}, nil
	}
	return e.categories.CategoryIndex(ctx)
}

func categoryAmount(index map[string]core.Category, id string, amount core.Money) core.CategoryAmount {
	ca := core.CategoryAmount{CategoryID: id, Name: id, Amount: amount}
	if c, ok := index[id]; ok {
		ca.Name = c.Name
		ca.Color = c.Color
	}
	return ca
}

func sortByAmount(items []core.CategoryAmount) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Amount.Cents != items[j].Amount.Cents {
			return items[i].Amount.Cents > items[j].Amount.Cents
		}
		return items[i].CategoryID < items[j].CategoryID
	})
}
