package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"costnest/internal/backup"
	"costnest/internal/core"
	"costnest/internal/log"
)

var (
	errLocked    = errors.New("locked: PIN required")
	errWrongPIN  = errors.New("incorrect PIN")
	errPINExists = errors.New("a PIN is already set; unlock first")

	errConfirmRequired = fmt.Errorf("%w: pass confirm=true to delete every expense", core.ErrValidation)
)

// statusFor maps an error category onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errLocked), errors.Is(err, errWrongPIN), errors.Is(err, errPINExists):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	return gin.H{"success": false, "error": err.Error()}
}

// respondError writes the error JSON for err. Server errors are logged with
// the request logger and attached to the gin context.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(c.Request.Context()).Log(c.Request.Context(), slog.LevelError, "Request failed",
			log.FieldError, err.Error(), log.FieldPath, c.FullPath())
	}

	body := errorBody(err)
	var partial *backup.PartialImportError
	if errors.As(err, &partial) {
		body["written"] = partial.Written
		body["failed"] = partial.Failed
	}
	c.JSON(status, body)
}

// respondOK writes payload with a 200.
func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
