package backup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"costnest/internal/core"
	"costnest/internal/ledger"
)

const xlsxSheet = "Expenses"

var exportHeader = []string{"Date", "Description", "Category", "Amount"}

var xlsxColumnWidths = []struct {
	col   string
	width float64
}{{"A", 12}, {"B", 40}, {"C", 20}, {"D", 12}}

// rows returns the expenses in list order with category ids resolved to names.
func (s *Service) rows(ctx context.Context) ([]core.Expense, map[string]string, error) {
	expenses, err := s.expenses.List(ctx, ledger.Filter{})
	if err != nil {
		return nil, nil, err
	}
	names := map[string]string{}
	if s.names != nil {
		if names, err = s.names.CategoryNames(ctx); err != nil {
			return nil, nil, err
		}
	}
	return expenses, names, nil
}

func categoryName(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

// WriteCSV writes the header and one row per expense. Every field is quoted
// and embedded quotes are doubled.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer) error {
	expenses, names, err := s.rows(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	writeCSVRow(bw, exportHeader)
	for _, e := range expenses {
		writeCSVRow(bw, []string{
			e.Date.String(),
			e.Description,
			categoryName(names, e.Category),
			e.Amount.String(),
		})
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeCSVRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// WriteXLSX writes the same rows as WriteCSV to an Expenses sheet, with
// amounts as numeric cells.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer) error {
	expenses, names, err := s.rows(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := fillSheet(f, xlsxSheet, expenses, names); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, sheet string, expenses []core.Expense, names map[string]string) error {
	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for idx, e := range expenses {
		row := []any{e.Date.String(), e.Description, categoryName(names, e.Category), e.Amount.Float()}
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return fmt.Errorf("write xlsx row %d: %w", idx+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", idx+2, err)
		}
	}
	for _, c := range xlsxColumnWidths {
		if err := f.SetColWidth(sheet, c.col, c.col, c.width); err != nil {
			return fmt.Errorf("set width of column %s: %w", c.col, err)
		}
	}
	return nil
}
