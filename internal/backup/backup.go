// Package backup exports the whole store as a JSON document, restores it, and
// renders the expense list as CSV or XLSX.
//
// Restore is not atomic. Keys are replaced one at a time and a failure partway
// leaves the keys already written in place; see PartialImportError.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"costnest/internal/core"
	"costnest/internal/kv"
	"costnest/internal/ledger"
)

// Expenses is the part of the ledger backup needs.
type Expenses interface {
	All(ctx context.Context) ([]core.Expense, error)
	List(ctx context.Context, f ledger.Filter) ([]core.Expense, error)
	Replace(ctx context.Context, expenses []core.Expense) error
}

// CategoryNamer resolves category ids to display names.
type CategoryNamer interface {
	CategoryNames(ctx context.Context) (map[string]string, error)
}

// Document is the backup file format.
type Document struct {
	Expenses   []core.Expense  `json:"expenses"`
	Budget     *core.Budget    `json:"budget"`
	Settings   *core.Settings  `json:"settings"`
	Categories []core.Category `json:"categories"`
	ExportDate time.Time       `json:"exportDate"`
	Version    string          `json:"version"`
}

// ImportSummary describes what a successful import replaced.
type ImportSummary struct {
	Version  string   `json:"version"`
	Expenses int      `json:"expenses"`
	Keys     []string `json:"keys"`
}

// PartialImportError reports an import that stopped after writing some keys.
type PartialImportError struct {
	Written []string
	Failed  string
	Err     error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import partially applied: wrote %v, failed on %s: %v", e.Written, e.Failed, e.Err)
}

func (e *PartialImportError) Unwrap() error {
	return e.Err
}

type Service struct {
	store    kv.Store
	expenses Expenses
	names    CategoryNamer
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store kv.Store, expenses Expenses, names CategoryNamer, opts ...Option) *Service {
	s := &Service{store: store, expenses: expenses, names: names, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportAll snapshots every exportable key.
func (s *Service) ExportAll(ctx context.Context) (Document, error) {
	expenses, err := s.expenses.All(ctx)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		Expenses:   expenses,
		ExportDate: s.now().UTC(),
		Version:    core.FormatVersion,
	}

	if b, found, err := kv.GetJSON[core.Budget](ctx, s.store, kv.KeyBudget); err != nil {
		return Document{}, fmt.Errorf("export budget: %w", err)
	} else if found {
		doc.Budget = &b
	}
	if st, found, err := kv.GetJSON[core.Settings](ctx, s.store, kv.KeySettings); err != nil {
		return Document{}, fmt.Errorf("export settings: %w", err)
	} else if found {
		doc.Settings = &st
	}
	if cats, found, err := kv.GetJSON[[]core.Category](ctx, s.store, kv.KeyCategories); err != nil {
		return Document{}, fmt.Errorf("export categories: %w", err)
	} else if found {
		doc.Categories = cats
	}
	return doc, nil
}

// ParseDocument checks raw against the backup format without writing anything.
// The document must be a JSON object with an array-typed expenses field and a
// non-empty string version; optional fields must decode when present.
func ParseDocument(raw []byte) (Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Document{}, fmt.Errorf("%w: backup must be a JSON object", core.ErrFormat)
	}

	var doc Document
	expensesRaw, ok := fields["expenses"]
	if !ok || !strings.HasPrefix(strings.TrimSpace(string(expensesRaw)), "[") {
		return Document{}, fmt.Errorf("%w: expenses must be an array", core.ErrFormat)
	}
	if err := json.Unmarshal(expensesRaw, &doc.Expenses); err != nil {
		return Document{}, fmt.Errorf("%w: expenses: %w", core.ErrFormat, err)
	}
	seen := make(map[string]bool, len(doc.Expenses))
	for i, e := range doc.Expenses {
		if strings.TrimSpace(e.ID) == "" {
			return Document{}, fmt.Errorf("%w: expense %d has no id", core.ErrFormat, i)
		}
		if seen[e.ID] {
			return Document{}, fmt.Errorf("%w: duplicate expense id %q", core.ErrFormat, e.ID)
		}
		seen[e.ID] = true
	}

	versionRaw, ok := fields["version"]
	if !ok {
		return Document{}, fmt.Errorf("%w: missing version", core.ErrFormat)
	}
	if err := json.Unmarshal(versionRaw, &doc.Version); err != nil || doc.Version == "" {
		return Document{}, fmt.Errorf("%w: version must be a non-empty string", core.ErrFormat)
	}

	if err := decodeOptional(fields, "budget", &doc.Budget); err != nil {
		return Document{}, err
	}
	if err := decodeOptional(fields, "settings", &doc.Settings); err != nil {
		return Document{}, err
	}
	if err := decodeOptional(fields, "categories", &doc.Categories); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decodeOptional(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrFormat, name, err)
	}
	return nil
}

// ImportAll validates raw and then replaces expenses, budget, settings and
// categories, in that order, for each field present. Nothing is written when
// validation fails.
func (s *Service) ImportAll(ctx context.Context, raw []byte) (ImportSummary, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return ImportSummary{}, err
	}
	if doc.Version != core.FormatVersion {
		s.logger.WarnContext(ctx, "Importing backup with a different format version",
			"version", doc.Version, "expected", core.FormatVersion)
	}

	type step struct {
		key   string
		write func() error
	}
	steps := []step{{kv.KeyExpenses, func() error { return s.expenses.Replace(ctx, doc.Expenses) }}}
	if doc.Budget != nil {
		steps = append(steps, step{kv.KeyBudget, func() error { return kv.SetJSON(ctx, s.store, kv.KeyBudget, doc.Budget) }})
	}
	if doc.Settings != nil {
		steps = append(steps, step{kv.KeySettings, func() error { return kv.SetJSON(ctx, s.store, kv.KeySettings, doc.Settings) }})
	}
	if doc.Categories != nil {
		steps = append(steps, step{kv.KeyCategories, func() error { return kv.SetJSON(ctx, s.store, kv.KeyCategories, doc.Categories) }})
	}

	summary := ImportSummary{Version: doc.Version, Expenses: len(doc.Expenses)}
	for _, st := range steps {
		if err := st.write(); err != nil {
			s.logger.ErrorContext(ctx, "Import stopped partway",
				"written", summary.Keys, "failed", st.key, "error", err)
			if !errors.Is(err, core.ErrStorage) {
				err = fmt.Errorf("%w: %w", core.ErrStorage, err)
			}
			return summary, &PartialImportError{Written: summary.Keys, Failed: st.key, Err: err}
		}
		summary.Keys = append(summary.Keys, st.key)
	}

	s.logger.InfoContext(ctx, "Backup imported", "expenses", summary.Expenses, "keys", summary.Keys)
	return summary, nil
}
