// Package messages defines the request/response contract used by the
// extension's content script and popup, independent of the transport that
// carries it.
package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"costnest/internal/core"
	"costnest/internal/ledger"
)

type Type string

const (
	TypeAddExpense     Type = "ADD_EXPENSE"
	TypeGetPriceAlerts Type = "GET_PRICE_ALERTS"
	TypeSetPriceAlert  Type = "SET_PRICE_ALERT"
	TypeCaptureReceipt Type = "CAPTURE_RECEIPT"
	TypeBackupData     Type = "BACKUP_DATA"
	TypeListExpenses   Type = "LIST_EXPENSES"
	TypeMonthSummary   Type = "MONTH_SUMMARY"
	TypeBudgetStatus   Type = "BUDGET_STATUS"
)

// ErrUnknownType is returned by Decode for an unrecognized message type.
var ErrUnknownType = fmt.Errorf("%w: unknown message type", core.ErrFormat)

// Request is one of the request variants below. The set is closed.
type Request interface {
	Type() Type
	isRequest()
}

type (
	AddExpense struct {
		Amount      core.Money `json:"amount"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
		Date        core.Date  `json:"date"`
		Currency    string     `json:"currency,omitempty"`
		URL         string     `json:"url,omitempty"`
	}

	GetPriceAlerts struct{}

	SetPriceAlert struct {
		ProductName  string      `json:"productName"`
		ProductURL   string      `json:"productUrl,omitempty"`
		TargetPrice  core.Money  `json:"targetPrice"`
		CurrentPrice *core.Money `json:"currentPrice,omitempty"`
	}

	// CaptureReceipt carries an opaque receipt image reference.
	CaptureReceipt struct {
		Image string `json:"image,omitempty"`
	}

	BackupData struct{}

	ListExpenses struct {
		Category  string     `json:"category,omitempty"`
		StartDate *core.Date `json:"startDate,omitempty"`
		EndDate   *core.Date `json:"endDate,omitempty"`
	}

	// MonthSummary asks for one calendar month; zero fields mean the current one.
	MonthSummary struct {
		Year  int        `json:"year,omitempty"`
		Month time.Month `json:"month,omitempty"`
	}

	BudgetStatus struct{}
)

func (AddExpense) Type() Type     { return TypeAddExpense }
func (GetPriceAlerts) Type() Type { return TypeGetPriceAlerts }
func (SetPriceAlert) Type() Type  { return TypeSetPriceAlert }
func (CaptureReceipt) Type() Type { return TypeCaptureReceipt }
func (BackupData) Type() Type     { return TypeBackupData }
func (ListExpenses) Type() Type   { return TypeListExpenses }
func (MonthSummary) Type() Type   { return TypeMonthSummary }
func (BudgetStatus) Type() Type   { return TypeBudgetStatus }

func (AddExpense) isRequest()     {}
func (GetPriceAlerts) isRequest() {}
func (SetPriceAlert) isRequest()  {}
func (CaptureReceipt) isRequest() {}
func (BackupData) isRequest()     {}
func (ListExpenses) isRequest()   {}
func (MonthSummary) isRequest()   {}
func (BudgetStatus) isRequest()   {}

// Expense converts the request into a ledger record.
func (r AddExpense) Expense() core.Expense {
	return core.Expense{
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
		Date:        r.Date,
		Currency:    r.Currency,
		URL:         r.URL,
	}
}

// PriceAlert converts the request into an alert definition.
func (r SetPriceAlert) PriceAlert() core.PriceAlert {
	return core.PriceAlert{
		ProductName:  r.ProductName,
		ProductURL:   r.ProductURL,
		TargetPrice:  r.TargetPrice,
		CurrentPrice: r.CurrentPrice,
	}
}

// Filter converts the request into a ledger filter.
func (r ListExpenses) Filter() ledger.Filter {
	return ledger.Filter{Category: r.Category, StartDate: r.StartDate, EndDate: r.EndDate}
}

// Envelope is the wire form: {"type": "...", "data": {...}}.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses an envelope into its request variant.
func Decode(raw []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: message envelope: %w", core.ErrFormat, err)
	}

	var req Request
	switch env.Type {
	case TypeAddExpense:
		req = &AddExpense{}
	case TypeGetPriceAlerts:
		req = &GetPriceAlerts{}
	case TypeSetPriceAlert:
		req = &SetPriceAlert{}
	case TypeCaptureReceipt:
		req = &CaptureReceipt{}
	case TypeBackupData:
		req = &BackupData{}
	case TypeListExpenses:
		req = &ListExpenses{}
	case TypeMonthSummary:
		req = &MonthSummary{}
	case TypeBudgetStatus:
		req = &BudgetStatus{}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("%w: %s data: %w", core.ErrFormat, env.Type, err)
		}
	}
	return deref(req), nil
}

// deref turns the pointer used for decoding back into the value variant.
func deref(req Request) Request {
	switch r := req.(type) {
	case *AddExpense:
		return *r
	case *GetPriceAlerts:
		return *r
	case *SetPriceAlert:
		return *r
	case *CaptureReceipt:
		return *r
	case *BackupData:
		return *r
	case *ListExpenses:
		return *r
	case *MonthSummary:
		return *r
	case *BudgetStatus:
		return *r
	}
	return req
}
