package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"costnest/internal/core"
	"costnest/internal/log"
	"costnest/internal/messages"
)

func (s *Server) handleListExpenses(c *gin.Context) {
	filter, err := ParseFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	expenses, err := s.svc.Ledger.List(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	log.FromContext(ctx).DebugContext(ctx, "Expenses listed", log.FieldOperation, log.OpList, "count", len(expenses))
	respondOK(c, gin.H{"expenses": expenses, "count": len(expenses)})
}

// handleCreateExpense adds a record and reports the budget level it leaves
// the month at, so the popup can alert right away.
func (s *Server) handleCreateExpense(c *gin.Context) {
	ctx := c.Request.Context()

	var req messages.AddExpense
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	req.Description = sanitizeInput(req.Description)

	res, err := s.svc.Ledger.Add(ctx, req.Expense())
	if err != nil {
		respondError(c, err)
		return
	}

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(res.Expense.ID, res.Expense.Amount.Cents, res.Expense.Category)
	log.FromContext(ctx).InfoContext(ctx, "Expense created", fields.ToSlice()...)

	body := gin.H{
		"success":           true,
		"expense":           res.Expense,
		"possibleDuplicate": res.PossibleDuplicate,
	}
	if len(res.Duplicates) > 0 {
		body["duplicates"] = res.Duplicates
	}
	s.attachBudgetStatus(c, body)
	c.JSON(http.StatusCreated, body)
}

// attachBudgetStatus adds the alert level the last mutation left the month
// at. The mutation already succeeded, so a failure here is only logged.
func (s *Server) attachBudgetStatus(c *gin.Context, body gin.H) {
	ctx := c.Request.Context()
	st, err := s.svc.Budget.Status(ctx, s.now())
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Budget status unavailable", log.FieldError, err.Error())
		return
	}
	body["budgetStatus"] = st
}

func (s *Server) handleGetExpense(c *gin.Context) {
	e, err := s.svc.Ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"expense": e})
}

func (s *Server) handleUpdateExpense(c *gin.Context) {
	var patch core.ExpensePatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}
	if patch.Description != nil {
		d := sanitizeInput(*patch.Description)
		patch.Description = &d
	}
	ctx := c.Request.Context()
	e, err := s.svc.Ledger.Update(ctx, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	fields := log.NewFields().
		WithOperation(log.OpUpdate).
		WithExpense(e.ID, e.Amount.Cents, e.Category)
	log.FromContext(ctx).InfoContext(ctx, "Expense updated", fields.ToSlice()...)

	body := gin.H{"success": true, "expense": e}
	s.attachBudgetStatus(c, body)
	respondOK(c, body)
}

func (s *Server) handleDeleteExpense(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.svc.Ledger.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	c.Status(http.StatusNoContent)
}

// handleClearExpenses empties the ledger. The caller must confirm with
// ?confirm=true.
func (s *Server) handleClearExpenses(c *gin.Context) {
	if c.Query("confirm") != "true" {
		respondError(c, errConfirmRequired)
		return
	}
	if err := s.svc.Ledger.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
