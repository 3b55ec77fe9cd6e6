package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"costnest/internal/log"
	"costnest/internal/pin"
)

type pinRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handlePINStatus(c *gin.Context) {
	ctx := c.Request.Context()
	has, err := s.svc.PIN.HasPIN(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	locked, err := s.svc.Session.Locked(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"hasPin":             has,
		"locked":             locked,
		"setupPending":       s.svc.Setup.Pending(),
		"lockTimeoutSeconds": int(s.svc.Session.Timeout().Seconds()),
	})
}

// handlePINSetup takes one entry of the enter-then-confirm flow. Replacing
// an existing PIN needs an unlocked session.
func (s *Server) handlePINSetup(c *gin.Context) {
	ctx := c.Request.Context()

	locked, err := s.svc.Session.Locked(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if locked {
		respondError(c, errPINExists)
		return
	}

	var req pinRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	step, err := s.svc.Setup.Enter(ctx, req.PIN)
	if err != nil {
		respondError(c, err)
		return
	}
	if step == pin.StepDone {
		// Setting a PIN should not lock out the person who just chose it.
		if _, err := s.svc.Session.Unlock(ctx, req.PIN); err != nil {
			respondError(c, err)
			return
		}
		log.FromContext(ctx).InfoContext(ctx, "PIN configured", log.FieldOperation, log.OpUpdate)
	}
	respondOK(c, gin.H{"success": step == pin.StepDone, "step": step.String()})
}

func (s *Server) handlePINUnlock(c *gin.Context) {
	ctx := c.Request.Context()

	var req pinRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ok, err := s.svc.Session.Unlock(ctx, req.PIN)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		log.FromContext(ctx).WarnContext(ctx, "Wrong PIN entered",
			log.FieldOperation, log.OpUnlock, log.FieldClientIP, c.ClientIP())
		respondError(c, errWrongPIN)
		return
	}
	s.limiter.Reset(c.ClientIP())
	respondOK(c, gin.H{"success": true})
}

func (s *Server) handlePINLock(c *gin.Context) {
	s.svc.Session.Lock()
	respondOK(c, gin.H{"success": true})
}

func (s *Server) handlePINDisable(c *gin.Context) {
	if err := s.svc.PIN.Disable(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	s.svc.Setup.Reset()
	c.Status(http.StatusNoContent)
}
