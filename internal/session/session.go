// File: internal/session/session.go

// Package session owns the lifecycle of browser sessions: acquire an adapter
// and a persona, run the decide/act/observe loop or a declarative scenario,
// and guarantee the adapter is released exactly once on every exit path. A
// bounded semaphore caps how many sessions hold a browser at the same time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// Session is one live browser session. It is created by the Manager and
// driven by exactly one goroutine; the accessors are safe to call from
// others.
type Session struct {
	ID        string
	TargetURL string
	Profile   schemas.HumanProfile

	mu        sync.Mutex
	state     schemas.SessionState
	startedAt time.Time
	endedAt   time.Time

	adapter  schemas.BrowserAdapter
	history  []schemas.UserAction
	steps    []schemas.StepResult
	analyses []*schemas.PageAnalysis

	// abortDetail is set when the broken-page heuristic ended the session.
	abortDetail string

	releaseOnce sync.Once
	releaseErr  error
	releaseSem  func()

	report *schemas.TestReport
}

// State returns the session's current lifecycle state.
func (s *Session) State() schemas.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state schemas.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// History returns a copy of the action history recorded so far.
func (s *Session) History() []schemas.UserAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.UserAction, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

func (s *Session) appendAction(a schemas.UserAction) {
	s.mu.Lock()
	s.history = append(s.history, a)
	s.mu.Unlock()
}

func (s *Session) appendAnalysis(an *schemas.PageAnalysis) {
	s.mu.Lock()
	s.analyses = append(s.analyses, an)
	s.mu.Unlock()
}

// Report returns the final report, or nil while the session is still running.
func (s *Session) Report() *schemas.TestReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// release gives the adapter back exactly once, no matter how many exit paths
// race to call it. The semaphore slot is returned in the same breath.
func (s *Session) release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.adapter.Release(ctx)
		if s.releaseSem != nil {
			s.releaseSem()
		}
	})
	return s.releaseErr
}
