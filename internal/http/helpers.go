package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// exportFilename names a download after the export day.
func exportFilename(now time.Time, ext string) string {
	return fmt.Sprintf("costnest-export-%s.%s", now.Format("2006-01-02"), ext)
}

// attachment marks the response as a file download.
func attachment(c *gin.Context, filename, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", contentType)
}
