// File: internal/session/manager.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
	"github.com/xkilldash9x/uxprobe/internal/decision"
	"github.com/xkilldash9x/uxprobe/internal/observability"
	"github.com/xkilldash9x/uxprobe/internal/profile"
	"github.com/xkilldash9x/uxprobe/internal/report"
	"github.com/xkilldash9x/uxprobe/internal/scenario"
)

// AdapterFactory opens one browser adapter configured for the given persona.
type AdapterFactory func(ctx context.Context, profile schemas.HumanProfile) (schemas.BrowserAdapter, error)

// ActionExecutor is the slice of the executor the manager drives.
type ActionExecutor interface {
	Execute(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction, profile schemas.HumanProfile) *schemas.UserAction
}

// PageAnalyzer produces a structured snapshot of the current page.
type PageAnalyzer interface {
	Analyze(ctx context.Context, adapter schemas.BrowserAdapter) *schemas.PageAnalysis
}

// Deps bundles the collaborators a Manager needs.
type Deps struct {
	Factory  AdapterFactory
	Source   schemas.InstructionSource
	Analyzer PageAnalyzer
	Executor ActionExecutor
	Sink     schemas.ReportSink
	Logger   *zap.Logger
	Metrics  *observability.Metrics

	// Environment is recorded verbatim into every report.
	Environment map[string]string
}

// Manager creates and drives sessions. Sessions are independent actors: each
// one executes strictly sequentially, while the manager's semaphore bounds
// how many run in parallel.
type Manager struct {
	cfg    config.SessionConfig
	deps   Deps
	logger *zap.Logger
	sem    *semaphore.Weighted
	runner *scenario.Runner
}

// NewManager creates a session manager.
func NewManager(cfg config.SessionConfig, deps Deps) *Manager {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := deps.Logger.Named("session")
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		runner: scenario.NewRunner(deps.Executor, logger),
	}
}

// Start acquires a pool slot and a browser, navigates to the target URL and
// returns the running session. A nil persona means "generate one". On any
// failure everything acquired so far is given back before returning.
func (m *Manager) Start(ctx context.Context, targetURL string, persona *schemas.HumanProfile) (*Session, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for session slot: %w", err)
	}

	prof := profile.Generate()
	if persona != nil {
		prof = *persona
	}

	adapter, err := m.deps.Factory(ctx, prof)
	if err != nil {
		m.sem.Release(1)
		return nil, fmt.Errorf("opening browser for session: %w", err)
	}

	s := &Session{
		ID:         uuid.New().String(),
		TargetURL:  targetURL,
		Profile:    prof,
		adapter:    adapter,
		state:      schemas.SessionCreated,
		startedAt:  time.Now(),
		releaseSem: func() { m.sem.Release(1) },
	}

	if err := adapter.Navigate(ctx, targetURL); err != nil {
		_ = s.release(ctx)
		return nil, fmt.Errorf("navigating to %s: %w", targetURL, err)
	}

	s.setState(schemas.SessionRunning)
	m.deps.Metrics.SessionStarted()
	m.logger.Info("Session started",
		zap.String("session_id", s.ID),
		zap.String("url", targetURL),
		zap.String("persona", prof.Name),
	)
	return s, nil
}

// RunInteractive drives the decide/act/observe loop until the instruction
// source stops, the action cap or session deadline is reached, or the page
// looks broken. It always ends the session and returns its report.
func (m *Manager) RunInteractive(ctx context.Context, s *Session, maxActions int) (*schemas.TestReport, error) {
	if s.State() != schemas.SessionRunning {
		return nil, fmt.Errorf("session %s is %s, not running", s.ID, s.State())
	}
	if maxActions <= 0 {
		maxActions = m.cfg.MaxActions
	}

	runCtx, cancel := m.sessionContext(ctx)
	defer cancel()

	engine := decision.New(m.deps.Source, m.logger, m.deps.Metrics)
	finalState := schemas.SessionCompleted

	for s.historyLen() < maxActions {
		if runCtx.Err() != nil {
			break
		}

		analysis := m.deps.Analyzer.Analyze(runCtx, s.adapter)
		s.appendAnalysis(analysis)
		m.pushAnalysis(s.ID, analysis)

		if detail := m.pageBroken(runCtx, s.adapter, analysis); detail != "" {
			m.logger.Warn("Page looks broken, aborting session",
				zap.String("session_id", s.ID), zap.String("detail", detail))
			s.abortDetail = detail
			finalState = schemas.SessionFailed
			break
		}

		action, stop := engine.NextAction(runCtx, s.ID, s.Profile, analysis, s.History())
		if stop {
			break
		}

		done := m.deps.Executor.Execute(runCtx, s.adapter, action, s.Profile)
		s.appendAction(*done)
	}

	// A hit session deadline or a cancelled caller ends the session as
	// stopped; a broken-page abort keeps its failed state.
	if finalState == schemas.SessionCompleted && runCtx.Err() != nil {
		finalState = schemas.SessionStopped
	}
	return m.finish(s, finalState), nil
}

// RunScenario executes a validated scenario on the session and ends it. Step
// failures are evidence, not errors: the session completes either way.
func (m *Manager) RunScenario(ctx context.Context, s *Session, sc *schemas.TestScenario) (*schemas.TestReport, error) {
	if s.State() != schemas.SessionRunning {
		return nil, fmt.Errorf("session %s is %s, not running", s.ID, s.State())
	}

	runCtx, cancel := m.sessionContext(ctx)
	defer cancel()

	s.steps = m.runner.Run(runCtx, s.adapter, sc, s.Profile)

	finalState := schemas.SessionCompleted
	if runCtx.Err() != nil {
		finalState = schemas.SessionStopped
	}
	return m.finish(s, finalState), nil
}

// sessionContext bounds a session run by the configured wall-clock deadline.
// A zero deadline disables the bound.
func (m *Manager) sessionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Deadline <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.Deadline)
}

// Stop ends a session externally. Safe to call at any point and more than
// once; the adapter is still released exactly once.
func (m *Manager) Stop(ctx context.Context, s *Session) error {
	if s.State() == schemas.SessionRunning || s.State() == schemas.SessionCreated {
		s.setState(schemas.SessionStopped)
	}
	if err := s.release(ctx); err != nil {
		return fmt.Errorf("releasing session %s: %w", s.ID, err)
	}
	return nil
}

// finish releases the browser, builds the report, and delivers it. Delivery
// gets its own context so a cancelled session still files its evidence.
func (m *Manager) finish(s *Session, state schemas.SessionState) *schemas.TestReport {
	s.mu.Lock()
	s.endedAt = time.Now()
	s.mu.Unlock()
	s.setState(state)

	releaseCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	abortDetail := s.abortDetail
	if err := s.release(releaseCtx); err != nil {
		m.logger.Error("Browser release failed",
			zap.String("session_id", s.ID),
			zap.String("reason", string(schemas.ReasonResourceReleaseError)),
			zap.Error(err),
		)
	}

	rep := report.BuildReport(report.SessionEvidence{
		SessionID:   s.ID,
		Profile:     s.Profile,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
		Actions:     s.history,
		Steps:       s.steps,
		Analyses:    s.analyses,
		AbortDetail: abortDetail,
		Environment: m.environment(s),
	})

	s.mu.Lock()
	s.report = rep
	s.mu.Unlock()

	if err := m.deps.Sink.DeliverReport(releaseCtx, rep); err != nil {
		m.logger.Error("Report delivery failed",
			zap.String("session_id", s.ID), zap.Error(err))
	}

	m.deps.Metrics.SessionFinished(string(state))
	for _, issue := range rep.Issues {
		m.deps.Metrics.IssueFound(string(issue.Category))
	}

	m.logger.Info("Session finished",
		zap.String("session_id", s.ID),
		zap.String("state", string(state)),
		zap.Int("total", rep.Total),
		zap.Int("failed", rep.Failed),
		zap.Int("issues", len(rep.Issues)),
	)
	return rep
}

// pushAnalysis forwards an intermediate snapshot to the sink when enabled.
// Delivery failures are logged and swallowed: snapshots are nice-to-have,
// the session is not.
func (m *Manager) pushAnalysis(sessionID string, analysis *schemas.PageAnalysis) {
	if !m.cfg.PushAnalyses {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.deps.Sink.DeliverAnalysis(ctx, sessionID, analysis); err != nil {
		m.logger.Warn("Analysis delivery failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// pageBroken is the cheap broken-page heuristic: an HTTP-error-looking title,
// a visible error banner, or browser-reported script errors. A non-empty
// return value describes what tripped.
func (m *Manager) pageBroken(ctx context.Context, adapter schemas.BrowserAdapter, analysis *schemas.PageAnalysis) string {
	title := strings.ToLower(analysis.Title)
	for _, pattern := range m.cfg.BrokenTitlePatterns {
		if pattern != "" && strings.Contains(title, strings.ToLower(pattern)) {
			return fmt.Sprintf("page title looks like an error: %q", analysis.Title)
		}
	}

	for _, selector := range m.cfg.ErrorBannerSelectors {
		banners, err := adapter.FindElements(ctx, selector)
		if err != nil {
			continue
		}
		for _, b := range banners {
			if b.Visible {
				return fmt.Sprintf("visible error banner matching %q", selector)
			}
		}
	}

	if errs := adapter.ScriptErrors(ctx); len(errs) > 0 {
		return fmt.Sprintf("page reported %d script error(s): %s", len(errs), errs[0])
	}
	return ""
}

// environment merges the static environment with the session's fingerprint.
func (m *Manager) environment(s *Session) map[string]string {
	env := make(map[string]string, len(m.deps.Environment)+3)
	for k, v := range m.deps.Environment {
		env[k] = v
	}
	env["user_agent"] = s.Profile.UserAgent
	env["viewport"] = fmt.Sprintf("%dx%d", s.Profile.ViewportWidth, s.Profile.ViewportHeight)
	env["persona"] = s.Profile.Archetype
	return env
}
