// File: internal/executor/executor.go

// Package executor carries out one abstract action at a time against a
// browser adapter. Each action runs through a small state machine (pending,
// running, then succeeded or failed), gets persona-driven pacing so the
// interaction pattern stays humanly plausible, and is bounded by its own
// timeout independent of any session deadline. Failures are classified, never
// thrown: the completed action record is the only output.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
	"github.com/xkilldash9x/uxprobe/internal/observability"
)

// PageAnalyzer is the slice of the analyzer the executor needs for the
// extract/analyze action kinds.
type PageAnalyzer interface {
	Analyze(ctx context.Context, adapter schemas.BrowserAdapter) *schemas.PageAnalysis
}

// Executor executes abstract actions for one session.
type Executor struct {
	cfg      config.SessionConfig
	browser  config.BrowserConfig
	analyzer PageAnalyzer
	logger   *zap.Logger
	metrics  *observability.Metrics
	rng      *rand.Rand

	// sleep is swappable so tests do not pay for persona pacing.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor. The rng seeds persona jitter; pass a fixed seed
// for reproducible runs.
func New(cfg config.SessionConfig, browser config.BrowserConfig, analyzer PageAnalyzer, logger *zap.Logger, metrics *observability.Metrics, seed int64) *Executor {
	return &Executor{
		cfg:      cfg,
		browser:  browser,
		analyzer: analyzer,
		logger:   logger.Named("executor"),
		metrics:  metrics,
		rng:      rand.New(rand.NewSource(seed)),
		sleep:    sleepCtx,
	}
}

// Execute completes the given action against the adapter and returns it.
// The input action is the pending record created by the decision or scenario
// engine; Execute mutates it exactly once - timestamps, duration, outcome -
// and never returns an error: every failure mode becomes a failed record.
func (e *Executor) Execute(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction, profile schemas.HumanProfile) *schemas.UserAction {
	// Persona pacing before the action; an impatient expert barely pauses, a
	// patient novice visibly thinks.
	if err := e.personaDelay(ctx, profile); err != nil {
		return e.complete(adapter, action, time.Now(), err)
	}

	action.Timestamp = time.Now()

	actionCtx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	err := e.dispatch(actionCtx, adapter, action, profile)
	return e.complete(adapter, action, action.Timestamp, err)
}

// dispatch routes the action by kind.
func (e *Executor) dispatch(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction, profile schemas.HumanProfile) error {
	switch action.Kind {
	case schemas.ActionClick:
		selector, _, err := resolveTarget(ctx, adapter, action.Target)
		if err != nil {
			return err
		}
		action.SetMeta("resolved_selector", selector)
		return adapter.Click(ctx, selector)

	case schemas.ActionHover:
		selector, _, err := resolveTarget(ctx, adapter, action.Target)
		if err != nil {
			return err
		}
		action.SetMeta("resolved_selector", selector)
		return adapter.Hover(ctx, selector)

	case schemas.ActionScroll:
		direction := action.Target
		if direction == "" {
			direction = action.Value
		}
		switch direction {
		case "up", "down", "top", "bottom":
		default:
			direction = "down"
		}
		return adapter.Scroll(ctx, direction)

	case schemas.ActionType:
		return e.doType(ctx, adapter, action, profile)

	case schemas.ActionWait:
		return e.doWait(ctx, action, profile)

	case schemas.ActionNavigate:
		return e.doNavigate(ctx, adapter, action)

	case schemas.ActionExtract, schemas.ActionAnalyze:
		return e.doAnalyze(ctx, adapter, action)

	case schemas.ActionScript:
		result, err := adapter.EvaluateScript(ctx, action.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", errScriptFailed, err)
		}
		action.SetMeta("script_result", string(result))
		return nil

	default:
		// The decision engine and scenario loader validate kinds before
		// execution; reaching here means a programming error upstream.
		return fmt.Errorf("unsupported action kind: %s", action.Kind)
	}
}

func (e *Executor) doType(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction, profile schemas.HumanProfile) error {
	selector, handle, err := resolveTarget(ctx, adapter, action.Target)
	if err != nil {
		return err
	}
	if !handle.Enabled {
		return fmt.Errorf("%w: %q is disabled", ErrElementNotFound, action.Target)
	}
	action.SetMeta("resolved_selector", selector)

	if err := adapter.Type(ctx, selector, action.Value); err != nil {
		return err
	}

	// Typing cadence: the adapter inserts the text, the executor pays the
	// human cost of it. 30-90ms per character, scaled by browsing speed.
	perChar := time.Duration(30+e.rng.Intn(60)) * time.Millisecond
	cadence := time.Duration(float64(len(action.Value)) * float64(perChar) / speedOf(profile))
	return e.sleep(ctx, cadence)
}

func (e *Executor) doWait(ctx context.Context, action *schemas.UserAction, profile schemas.HumanProfile) error {
	var duration time.Duration
	if ms, err := strconv.Atoi(action.Value); err == nil && ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	} else {
		// No duration given: a small randomized pause, longer for patient
		// personas.
		base := 500 + e.rng.Intn(1500)
		duration = time.Duration(float64(base)*patienceFactor(profile)) * time.Millisecond
	}
	return e.sleep(ctx, duration)
}

func (e *Executor) doNavigate(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction) error {
	target := action.Target
	if target == "" {
		target = action.Value
	}

	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return adapter.Navigate(ctx, target)
	}

	// Not an absolute URL: treat it as an in-page link lookup and click it.
	selector, _, err := resolveTarget(ctx, adapter, target)
	if err != nil {
		return err
	}
	action.SetMeta("resolved_selector", selector)
	return adapter.Click(ctx, selector)
}

// doAnalyze stores the snapshot in the action metadata; a partial analysis is
// noted but never fails the action - the session must tolerate it.
func (e *Executor) doAnalyze(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction) error {
	analysis := e.analyzer.Analyze(ctx, adapter)
	action.SetMeta("analysis", analysis)
	if analysis.Partial {
		action.SetMeta("failure_reason", string(schemas.ReasonAnalysisPartial))
		action.SetMeta("analysis_error", analysis.Error)
	}
	return nil
}

// complete finalizes the record: duration, outcome, failure classification,
// and - for interaction failures - a best-effort evidence screenshot.
func (e *Executor) complete(adapter schemas.BrowserAdapter, action *schemas.UserAction, started time.Time, err error) *schemas.UserAction {
	if action.Timestamp.IsZero() {
		action.Timestamp = started
	}
	action.Duration = time.Since(action.Timestamp)

	if err == nil {
		action.Success = true
		e.metrics.ActionExecuted(string(action.Kind), true)
		return action
	}

	action.Success = false
	action.Error = err.Error()
	action.Reason = classify(err)
	e.metrics.ActionExecuted(string(action.Kind), false)

	e.logger.Debug("Action failed",
		zap.String("action_id", action.ID),
		zap.String("kind", string(action.Kind)),
		zap.String("reason", string(action.Reason)),
		zap.Error(err),
	)

	if wantsEvidence(action.Kind) {
		e.captureEvidence(adapter, action)
	}
	return action
}

// captureEvidence screenshots the page after an interaction failure. It runs
// on a fresh short context because the action's own context is often already
// expired by the time we get here.
func (e *Executor) captureEvidence(adapter schemas.BrowserAdapter, action *schemas.UserAction) {
	if e.browser.ScreenshotDir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := filepath.Join(e.browser.ScreenshotDir, fmt.Sprintf("failure-%s.png", action.ID))
	written, err := adapter.Screenshot(ctx, path)
	if err != nil {
		e.logger.Debug("Evidence screenshot failed", zap.Error(err))
		return
	}
	action.SetMeta("screenshot", written)
}

func wantsEvidence(kind schemas.ActionKind) bool {
	switch kind {
	case schemas.ActionClick, schemas.ActionType, schemas.ActionNavigate:
		return true
	}
	return false
}

// errScriptFailed marks failures of the script action kind so classification
// does not depend on adapter error text.
var errScriptFailed = errors.New("script failed")

// classify maps an execution error onto the failure taxonomy. Reasons form a
// closed set; adapter failures outside the known sentinels read as the element
// refusing the interaction.
func classify(err error) schemas.FailureReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return schemas.ReasonTimeout
	case errors.Is(err, ErrElementNotFound):
		return schemas.ReasonElementNotFound
	case errors.Is(err, errScriptFailed):
		return schemas.ReasonScriptError
	case errors.Is(err, context.Canceled):
		return schemas.ReasonSessionAborted
	default:
		return schemas.ReasonElementNotFound
	}
}

// personaDelay injects the think-time jitter between actions: 200-900ms
// scaled down by browsing speed and capped by the persona's patience.
func (e *Executor) personaDelay(ctx context.Context, profile schemas.HumanProfile) error {
	base := time.Duration(200+e.rng.Intn(700)) * time.Millisecond
	delay := time.Duration(float64(base) / speedOf(profile))

	if cap := time.Duration(profile.Patience * float64(time.Second)); cap > 0 && delay > cap {
		delay = cap
	}
	return e.sleep(ctx, delay)
}

// SetSleepForTest replaces the pacing sleep; tests use it to run instantly.
func (e *Executor) SetSleepForTest(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

func speedOf(p schemas.HumanProfile) float64 {
	if p.BrowsingSpeed <= 0 {
		return 1.0
	}
	return p.BrowsingSpeed
}

func patienceFactor(p schemas.HumanProfile) float64 {
	if p.Patience <= 0 {
		return 1.0
	}
	// Normalize around the 8s midpoint of the catalogue.
	return p.Patience / 8.0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
