package messages

import (
	"context"
	"fmt"
	"time"

	"costnest/internal/backup"
	"costnest/internal/budget"
	"costnest/internal/core"
	"costnest/internal/ledger"
	"costnest/internal/log"
	"costnest/internal/pricealert"
)

// Receipt is the placeholder returned for CAPTURE_RECEIPT until receipt
// parsing exists.
type Receipt struct {
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Date        core.Date  `json:"date"`
	Items       []string   `json:"items"`
}

// Response carries either a payload with success set or an error string.
type Response struct {
	Success           bool                `json:"success,omitempty"`
	Error             string              `json:"error,omitempty"`
	Expense           *core.Expense       `json:"expense,omitempty"`
	PossibleDuplicate bool                `json:"possibleDuplicate,omitempty"`
	Duplicates        []core.Expense      `json:"duplicates,omitempty"`
	Alert             *core.PriceAlert    `json:"alert,omitempty"`
	Alerts            []core.PriceAlert   `json:"alerts,omitempty"`
	ReceiptData       *Receipt            `json:"receiptData,omitempty"`
	BackupData        *backup.Document    `json:"backupData,omitempty"`
	Expenses          []core.Expense      `json:"expenses,omitempty"`
	Summary           *core.MonthOverview `json:"summary,omitempty"`
	BudgetStatus      *budget.Status      `json:"budgetStatus,omitempty"`
}

// ErrorResponse renders err for the caller.
func ErrorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// Services are the domain components requests are routed to.
type Services struct {
	Ledger      *ledger.Ledger
	Budget      *budget.Engine
	PriceAlerts *pricealert.Service
	Backup      *backup.Service
}

type Dispatcher struct {
	svc Services
	now func() time.Time
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(svc Services, opts ...Option) *Dispatcher {
	d := &Dispatcher{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleRaw decodes an envelope and handles it. Decode failures come back
// as an error response too.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) (Response, error) {
	req, err := Decode(raw)
	if err != nil {
		return ErrorResponse(err), err
	}
	return d.Handle(ctx, req)
}

// Handle routes req to its component. On failure the returned Response has
// Error set and err is the underlying error for transports that map it.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, error) {
	resp, err := d.handle(ctx, req)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Message failed",
			log.FieldOperation, log.OpDispatch, log.FieldMessageType, req.Type(), log.FieldError, err.Error())
		return ErrorResponse(err), err
	}
	log.FromContext(ctx).DebugContext(ctx, "Message handled", log.FieldOperation, log.OpDispatch, log.FieldMessageType, req.Type())
	return resp, nil
}

func (d *Dispatcher) handle(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case AddExpense:
		res, err := d.svc.Ledger.Add(ctx, r.Expense())
		if err != nil {
			return Response{}, err
		}
		resp := Response{
			Success:           true,
			Expense:           &res.Expense,
			PossibleDuplicate: res.PossibleDuplicate,
			Duplicates:        res.Duplicates,
		}
		// The record is stored either way; a failed evaluation only omits the alert.
		if st, err := d.svc.Budget.Status(ctx, d.now()); err == nil {
			resp.BudgetStatus = &st
		} else {
			log.FromContext(ctx).WarnContext(ctx, "Budget status unavailable", log.FieldError, err.Error())
		}
		return resp, nil

	case GetPriceAlerts:
		alerts, err := d.svc.PriceAlerts.List(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, Alerts: alerts}, nil

	case SetPriceAlert:
		alert, err := d.svc.PriceAlerts.Add(ctx, r.PriceAlert())
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, Alert: &alert}, nil

	case CaptureReceipt:
		return Response{Success: true, ReceiptData: &Receipt{
			Description: "Receipt processed",
			Category:    core.DefaultCategoryID,
			Date:        core.DateOf(d.now()),
			Items:       []string{},
		}}, nil

	case BackupData:
		doc, err := d.svc.Backup.ExportAll(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, BackupData: &doc}, nil

	case ListExpenses:
		expenses, err := d.svc.Ledger.List(ctx, r.Filter())
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, Expenses: expenses}, nil

	case MonthSummary:
		year, month := r.Year, r.Month
		if year == 0 || month == 0 {
			now := d.now()
			year, month = now.Year(), now.Month()
		}
		ov, err := d.svc.Budget.Overview(ctx, year, month)
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, Summary: &ov}, nil

	case BudgetStatus:
		st, err := d.svc.Budget.Status(ctx, d.now())
		if err != nil {
			return Response{}, err
		}
		return Response{Success: true, BudgetStatus: &st}, nil

	default:
		return Response{}, fmt.Errorf("%w %q", ErrUnknownType, req.Type())
	}
}
