package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"costnest/internal/core"
	"costnest/internal/ledger"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 16 << 20
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams extracts year and month from query parameters, using
// now's month for whichever is missing. Present but invalid values fail.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: now.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: invalid year %q", core.ErrValidation, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("%w: invalid month %q", core.ErrValidation, v)
		}
		params.Month = time.Month(m)
	}
	return params, nil
}

// ParseFilter reads category, startDate and endDate from the query string.
func ParseFilter(query url.Values) (ledger.Filter, error) {
	f := ledger.Filter{Category: sanitizeInput(query.Get("category"))}

	for name, dst := range map[string]**core.Date{"startDate": &f.StartDate, "endDate": &f.EndDate} {
		v := strings.TrimSpace(query.Get(name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return ledger.Filter{}, fmt.Errorf("%s: %w", name, err)
		}
		*dst = &d
	}
	return f, nil
}

// bindJSON decodes the request body into dst. Unknown fields are ignored
// so newer clients keep working.
func bindJSON(c *gin.Context, dst any) error {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", core.ErrFormat)
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body too large", core.ErrFormat)
		}
		// Field-level errors from custom decoders keep their own category.
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrFormat, err)
	}
	return nil
}

// readBody returns the raw request body, up to limit bytes.
func readBody(c *gin.Context, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrFormat, err)
	}
	return raw, nil
}
