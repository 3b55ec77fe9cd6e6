package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"costnest/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"defaults to now", "", MonthParams{2024, time.June}, false},
		{"explicit", "year=2023&month=11", MonthParams{2023, time.November}, false},
		{"month only", "month=2", MonthParams{2024, time.February}, false},
		{"padded", "year=%202022%20", MonthParams{2022, time.June}, false},
		{"month zero", "month=0", MonthParams{}, true},
		{"month too big", "month=13", MonthParams{}, true},
		{"year not a number", "year=abc", MonthParams{}, true},
		{"negative year", "year=-5", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ParseMonthParams(q, now)
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	q := url.Values{"category": {" food "}, "startDate": {"2024-01-01"}, "endDate": {"2024-01-31"}}
	f, err := ParseFilter(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Category != "food" {
		t.Errorf("category = %q", f.Category)
	}
	if f.StartDate == nil || *f.StartDate != core.NewDate(2024, time.January, 1) {
		t.Errorf("start = %v", f.StartDate)
	}
	if f.EndDate == nil || *f.EndDate != core.NewDate(2024, time.January, 31) {
		t.Errorf("end = %v", f.EndDate)
	}

	f, err = ParseFilter(url.Values{})
	if err != nil || f.StartDate != nil || f.EndDate != nil || f.Category != "" {
		t.Errorf("empty query should give an empty filter: %+v %v", f, err)
	}

	if _, err := ParseFilter(url.Values{"endDate": {"31/01/2024"}}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func newBodyContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return c
}

func TestBindJSON(t *testing.T) {
	type payload struct {
		Amount core.Money `json:"amount"`
		Name   string     `json:"name"`
	}

	var p payload
	if err := bindJSON(newBodyContext(`{"amount": "4.20", "name": "tea", "extra": 1}`), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Amount.Cents != 420 || p.Name != "tea" {
		t.Errorf("decoded %+v", p)
	}

	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", core.ErrFormat},
		{"syntax", "{", core.ErrFormat},
		{"wrong type", `{"name": 5}`, core.ErrFormat},
		{"bad amount", `{"amount": "x"}`, core.ErrValidation},
		{"too large", `{"name": "` + strings.Repeat("a", maxBodyBytes) + `"}`, core.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			if err := bindJSON(newBodyContext(tt.body), &p); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadBodyLimit(t *testing.T) {
	raw, err := readBody(newBodyContext("hello"), 16)
	if err != nil || string(raw) != "hello" {
		t.Fatalf("got %q, %v", raw, err)
	}
	if _, err := readBody(newBodyContext(strings.Repeat("x", 32)), 16); !errors.Is(err, core.ErrFormat) {
		t.Errorf("expected format error, got %v", err)
	}
}
