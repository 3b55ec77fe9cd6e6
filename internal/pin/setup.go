package pin

import (
	"context"
	"sync"
)

// Step is the outcome of one entry in the first-run setup flow.
type Step int

const (
	// StepConfirm means the candidate was accepted and must be entered again.
	StepConfirm Step = iota
	// StepMismatch means the confirmation differed; setup starts over.
	StepMismatch
	// StepDone means the PIN was committed.
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepConfirm:
		return "confirm"
	case StepMismatch:
		return "mismatch"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// Setup drives the enter-then-confirm protocol. Nothing is persisted until
// both entries match.
type Setup struct {
	mu      sync.Mutex
	manager *Manager
	pending string
}

func NewSetup(m *Manager) *Setup {
	return &Setup{manager: m}
}

// Enter feeds the next candidate into the flow.
func (s *Setup) Enter(ctx context.Context, candidate string) (Step, error) {
	if err := ValidatePIN(candidate); err != nil {
		return StepConfirm, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == "" {
		s.pending = candidate
		return StepConfirm, nil
	}

	first := s.pending
	s.pending = ""
	if first != candidate {
		return StepMismatch, nil
	}
	if err := s.manager.Set(ctx, candidate); err != nil {
		return StepMismatch, err
	}
	return StepDone, nil
}

// Reset drops any pending first entry.
func (s *Setup) Reset() {
	s.mu.Lock()
	s.pending = ""
	s.mu.Unlock()
}

// Pending reports whether a first entry is waiting for confirmation.
func (s *Setup) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != ""
}
