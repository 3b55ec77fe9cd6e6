package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 3, Now: clock.Now})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("a") {
		t.Fatal("fourth request should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys have their own window")
	}

	clock.Advance(20 * time.Second)
	if got := rl.RetryAfter("a"); got != 40*time.Second {
		t.Fatalf("RetryAfter = %v, want 40s", got)
	}
	if rl.Allow("a") {
		t.Fatal("attempts inside the window must not extend it into success")
	}

	clock.Advance(40 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window should reopen after a minute")
	}
	if m := rl.GetMetrics(); m.Rejected != 2 || m.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestLimiterResetAndCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 1, Now: clock.Now})
	defer rl.Stop()

	rl.Allow("a")
	if rl.Allow("a") {
		t.Fatal("expected rejection")
	}
	rl.Reset("a")
	if !rl.Allow("a") {
		t.Fatal("reset should clear the window")
	}

	clock.Advance(11 * time.Minute)
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 0 {
		t.Fatalf("stale entries should be removed, have %d", rl.ActiveClients())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()

	r := gin.New()
	r.POST("/unlock", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/unlock", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("429 must carry Retry-After")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
}
