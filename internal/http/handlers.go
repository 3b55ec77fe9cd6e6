package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"costnest/internal/core"
	"costnest/internal/kv"
	"costnest/internal/log"
	"costnest/internal/messages"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady reports ready once the store answers.
func (s *Server) handleReady(c *gin.Context) {
	if err := kv.Ping(c.Request.Context(), s.svc.Store); err != nil {
		log.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "Store unreachable", log.FieldError, err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleGetCategories(c *gin.Context) {
	cats, err := s.svc.Settings.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"categories": cats})
}

func (s *Server) handleSaveCategories(c *gin.Context) {
	var req struct {
		Categories []core.Category `json:"categories"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if err := s.svc.Settings.SaveCategories(c.Request.Context(), req.Categories); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"success": true, "categories": req.Categories})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	st, err := s.svc.Settings.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"settings": st})
}

// handleSaveSettings stores the settings and applies the lock timeout to the
// running session.
func (s *Server) handleSaveSettings(c *gin.Context) {
	var st core.Settings
	if err := bindJSON(c, &st); err != nil {
		respondError(c, err)
		return
	}
	if err := s.svc.Settings.SaveSettings(c.Request.Context(), st); err != nil {
		respondError(c, err)
		return
	}
	if st.LockTimeoutMs > 0 {
		s.svc.Session.SetTimeout(time.Duration(st.LockTimeoutMs) * time.Millisecond)
	}
	respondOK(c, gin.H{"success": true, "settings": st})
}

func (s *Server) handleListPriceAlerts(c *gin.Context) {
	alerts, err := s.svc.PriceAlerts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"alerts": alerts})
}

func (s *Server) handleAddPriceAlert(c *gin.Context) {
	var req messages.SetPriceAlert
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	alert, err := s.svc.PriceAlerts.Add(c.Request.Context(), req.PriceAlert())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "alert": alert})
}

func (s *Server) handleDeactivatePriceAlert(c *gin.Context) {
	alert, err := s.svc.PriceAlerts.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"success": true, "alert": alert})
}

func (s *Server) handleRecordPrice(c *gin.Context) {
	var req struct {
		Price core.Money `json:"price"`
	}
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	alert, triggered, err := s.svc.PriceAlerts.RecordPrice(c.Request.Context(), c.Param("id"), req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"success": true, "alert": alert, "triggered": triggered})
}

// handleMessage accepts the same envelopes as the AMQP transport.
func (s *Server) handleMessage(c *gin.Context) {
	raw, err := readBody(c, maxBodyBytes)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := s.svc.Dispatcher.HandleRaw(c.Request.Context(), raw)
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), resp)
		return
	}
	respondOK(c, resp)
}
