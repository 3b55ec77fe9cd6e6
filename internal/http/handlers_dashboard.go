package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"costnest/internal/core"
)

// handleSummary returns the month overview for ?year=&month=, defaulting to
// the current month.
func (s *Server) handleSummary(c *gin.Context) {
	params, err := ParseMonthParams(c.Request.URL.Query(), s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	ov, err := s.svc.Budget.Overview(c.Request.Context(), params.Year, params.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"summary": ov})
}

func (s *Server) handleGetBudget(c *gin.Context) {
	b, ok, err := s.svc.Budget.Budget(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"budget": nil})
		return
	}
	respondOK(c, gin.H{"budget": b})
}

func (s *Server) handleSetBudget(c *gin.Context) {
	var req struct {
		Amount core.Money        `json:"amount"`
		Period core.BudgetPeriod `json:"period"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	b, err := s.svc.Budget.SetBudget(c.Request.Context(), req.Amount, req.Period)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"success": true, "budget": b})
}

func (s *Server) handleClearBudget(c *gin.Context) {
	if err := s.svc.Budget.ClearBudget(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(c *gin.Context) {
	st, err := s.svc.Budget.Status(c.Request.Context(), s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"budgetStatus": st})
}

func (s *Server) handleInsights(c *gin.Context) {
	in, err := s.svc.Budget.Insights(c.Request.Context(), s.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"insights": in})
}
