// Package security sets response headers suited to a JSON API that is only
// ever called by the extension.
package security

import (
	"github.com/gin-gonic/gin"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	// CacheControl applies to API responses, which carry ledger data.
	CacheControl string
}

// DefaultHeadersConfig returns secure defaults
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		CrossOriginResource: "same-site",
		CacheControl:        "no-store",
	}
}

// Headers returns middleware applying cfg to every response. Empty values
// are skipped.
func Headers(cfg HeadersConfig) gin.HandlerFunc {
	headers := [][2]string{
		{"X-Frame-Options", cfg.XFrameOptions},
		{"X-Content-Type-Options", cfg.XContentTypeOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Cross-Origin-Resource-Policy", cfg.CrossOriginResource},
		{"Cache-Control", cfg.CacheControl},
	}
	return func(c *gin.Context) {
		for _, h := range headers {
			if h[1] != "" {
				c.Header(h[0], h[1])
			}
		}
		c.Next()
	}
}
