package pin

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultLockTimeout is how long an unlocked session survives without activity.
const DefaultLockTimeout = 5 * time.Minute

// Session tracks the lock state of the running process. When no PIN is
// configured the session is always open.
type Session struct {
	mu         sync.Mutex
	manager    *Manager
	timeout    time.Duration
	now        func() time.Time
	unlocked   bool
	lastActive time.Time
}

type SessionOption func(*Session)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func NewSession(m *Manager, timeout time.Duration, opts ...SessionOption) *Session {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	s := &Session{manager: m, timeout: timeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns the inactivity window.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// SetTimeout changes the inactivity window; non-positive values restore the default.
func (s *Session) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultLockTimeout
	}
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Unlock verifies candidate and opens the session on a match.
func (s *Session) Unlock(ctx context.Context, candidate string) (bool, error) {
	ok, err := s.manager.Verify(ctx, candidate)
	if errors.Is(err, ErrNoPIN) {
		return true, nil
	}
	if err != nil || !ok {
		return false, err
	}

	s.mu.Lock()
	s.unlocked = true
	s.lastActive = s.now()
	s.mu.Unlock()
	return true, nil
}

// Lock closes the session immediately.
func (s *Session) Lock() {
	s.mu.Lock()
	s.unlocked = false
	s.mu.Unlock()
}

// Touch records activity, extending an open session.
func (s *Session) Touch() {
	s.mu.Lock()
	if s.unlocked {
		s.lastActive = s.now()
	}
	s.mu.Unlock()
}

// Locked reports whether access currently requires the PIN. An unlocked
// session that has been idle for the timeout is locked as a side effect.
func (s *Session) Locked(ctx context.Context) (bool, error) {
	has, err := s.manager.HasPIN(ctx)
	if err != nil {
		return true, err
	}
	if !has {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlocked && s.now().Sub(s.lastActive) >= s.timeout {
		s.unlocked = false
	}
	return !s.unlocked, nil
}
