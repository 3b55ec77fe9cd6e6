package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"costnest/internal/backup"
	"costnest/internal/core"
	"costnest/internal/log"
	"costnest/internal/messages"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errLocked, http.StatusUnauthorized},
		{errWrongPIN, http.StatusUnauthorized},
		{errPINExists, http.StatusUnauthorized},
		{core.ErrEmptyDescription, http.StatusUnprocessableEntity},
		{errConfirmRequired, http.StatusUnprocessableEntity},
		{core.ErrExpenseNotFound, http.StatusNotFound},
		{core.ErrPriceAlertNotFound, http.StatusNotFound},
		{messages.ErrUnknownType, http.StatusBadRequest},
		{fmt.Errorf("decode: %w", core.ErrFormat), http.StatusBadRequest},
		{fmt.Errorf("write: %w", core.ErrStorage), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func runRespond(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
	c.Request = req.WithContext(log.IntoContext(req.Context(), log.New(log.Config{Output: io.Discard})))
	respondError(c, err)
	return rr
}

func TestRespondErrorBody(t *testing.T) {
	rr := runRespond(core.ErrEmptyDescription)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != false || body["error"] != core.ErrEmptyDescription.Error() {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["written"]; ok {
		t.Error("written is only reported for partial imports")
	}
}

func TestRespondErrorPartialImport(t *testing.T) {
	err := &backup.PartialImportError{
		Written: []string{"expenses", "budget"},
		Failed:  "settings",
		Err:     fmt.Errorf("%w: disk full", core.ErrStorage),
	}
	rr := runRespond(err)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Success bool     `json:"success"`
		Written []string `json:"written"`
		Failed  string   `json:"failed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || len(body.Written) != 2 || body.Failed != "settings" {
		t.Errorf("unexpected body %+v", body)
	}
}
