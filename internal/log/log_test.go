package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: "ledger", JSON: true, Output: &buf})

	logger.Info("hello", "k", "v")
	logger.WithComponent("pin").Debug("switched")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0][FieldComponent] != "ledger" || lines[0]["k"] != "v" {
		t.Errorf("unexpected first line %v", lines[0])
	}
	if lines[1][FieldComponent] != "pin" {
		t.Errorf("expected component pin, got %v", lines[1])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})

	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", logger)
	}

	custom := New(Config{Component: "amqp", Output: &bytes.Buffer{}})
	if got := FromContext(IntoContext(context.Background(), custom)); got != custom {
		t.Fatal("expected the stored logger back")
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithRequestID("").
		WithOperation(OpCreate).
		WithExpense("abc", 1250, "food").
		WithError(errors.New("boom")).
		WithError(nil)

	if _, ok := f[FieldRequestID]; ok {
		t.Error("empty request id must be omitted")
	}
	if f[FieldAmountCents] != int64(1250) || f[FieldError] != "boom" || f[FieldOperation] != OpCreate {
		t.Errorf("unexpected fields %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Error("ToSlice must flatten key/value pairs")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})

	r := gin.New()
	r.Use(Middleware(logger))
	r.GET("/missing", func(c *gin.Context) {
		if FromContext(c.Request.Context()).Component() != ComponentHTTP {
			t.Error("handler must see the request logger")
		}
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing?x=1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id not echoed: %q", w.Header().Get(RequestIDHeader))
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(lines))
	}
	line := lines[0]
	if line["level"] != "WARN" || line[FieldStatusCode] != float64(404) || line[FieldRequestID] != "req-42" {
		t.Errorf("unexpected log line %v", line)
	}
	if line[FieldQuery] != "x=1" || line[FieldSuccess] != false {
		t.Errorf("unexpected request fields %v", line)
	}
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New(Config{Output: &bytes.Buffer{}})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected a generated uuid, got %q", w.Header().Get(RequestIDHeader))
	}
}
