package log

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

// Middleware attaches a request-scoped logger to the request context and logs
// every request once it completes. A caller supplied X-Request-ID is reused
// when it is short enough to be an id.
func Middleware(logger *Logger) gin.HandlerFunc {
	httpLogger := logger.WithComponent(ComponentHTTP)

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(FieldRequestID, requestID)

		reqLogger := httpLogger.With(FieldRequestID, requestID)
		c.Request = c.Request.WithContext(IntoContext(c.Request.Context(), reqLogger))

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 400 && status < 500 {
			level = slog.LevelWarn
		} else if status >= 500 {
			level = slog.LevelError
		}

		fields := NewFields().
			WithHTTPRequest(c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery, c.Request.UserAgent()).
			WithHTTPResponse(status, time.Since(start).Milliseconds()).
			WithClientIP(c.ClientIP())
		if err := c.Errors.Last(); err != nil {
			fields.WithError(err.Err)
		}

		reqLogger.Log(c.Request.Context(), level, "HTTP request completed", fields.ToSlice()...)
	}
}
