// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// retryBackoffBase is the pause before a step's first retry; later retries
// back off linearly.
const retryBackoffBase = 250 * time.Millisecond

// ActionExecutor is the slice of the executor the runner needs.
type ActionExecutor interface {
	Execute(ctx context.Context, adapter schemas.BrowserAdapter, action *schemas.UserAction, profile schemas.HumanProfile) *schemas.UserAction
}

// Runner executes a validated scenario against one browser adapter. Steps run
// sequentially in declared order; a step starts only once all its dependency
// steps have completed, successfully or not. Dependencies that were skipped
// never completed, so their dependents skip too.
type Runner struct {
	exec   ActionExecutor
	logger *zap.Logger

	// sleep paces retry backoff; swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a scenario runner around an action executor.
func NewRunner(exec ActionExecutor, logger *zap.Logger) *Runner {
	return &Runner{
		exec:   exec,
		logger: logger.Named("scenario"),
		sleep:  sleepCtx,
	}
}

// Run executes every step of the scenario and returns one StepResult per
// step, in declared order. The scenario must already have passed Validate;
// Run does not re-check structural errors.
func (r *Runner) Run(ctx context.Context, adapter schemas.BrowserAdapter, sc *schemas.TestScenario, profile schemas.HumanProfile) []schemas.StepResult {
	results := make([]schemas.StepResult, 0, len(sc.Steps))
	completed := make(map[string]schemas.StepStatus, len(sc.Steps))
	aborted := false

	for _, step := range sc.Steps {
		var result schemas.StepResult
		switch {
		case aborted:
			result = r.skip(step, "earlier step failed with stop_on_failure set")
		case ctx.Err() != nil:
			result = r.skip(step, "session context cancelled")
		case !dependenciesCompleted(step, completed):
			result = r.skip(step, "dependency did not complete")
		default:
			result = r.runStep(ctx, adapter, sc, step, profile)
		}

		completed[step.ID] = result.Status
		results = append(results, result)

		if result.Status == schemas.StepFailed && sc.StopOnFailure {
			aborted = true
		}
	}
	return results
}

// runStep executes one step with its retry budget. retry_count is the number
// of retries on top of the first attempt, so retry_count=2 means up to three
// attempts; every attempt's completed action record is kept as evidence.
func (r *Runner) runStep(ctx context.Context, adapter schemas.BrowserAdapter, sc *schemas.TestScenario, step schemas.TestStep, profile schemas.HumanProfile) schemas.StepResult {
	expanded := ExpandStep(step, sc.Variables)
	kind, _ := schemas.NormalizeActionKind(expanded.Action.Type)

	result := schemas.StepResult{
		StepID:    step.ID,
		Name:      step.Name,
		StartedAt: time.Now(),
	}

	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, time.Duration(attempt)*retryBackoffBase); err != nil {
				break
			}
		}

		action := &schemas.UserAction{
			ID:     uuid.New().String(),
			Kind:   kind,
			Target: expanded.Action.Target,
			Value:  expanded.Action.Value,
		}
		action.SetMeta("step_id", step.ID)
		action.SetMeta("attempt", attempt+1)
		if expanded.ExpectedResult != "" {
			action.SetMeta("expected_result", expanded.ExpectedResult)
		}

		stepCtx := ctx
		var cancel context.CancelFunc
		if step.TimeoutMs > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutMs)*time.Millisecond)
		}
		done := r.exec.Execute(stepCtx, adapter, action, profile)
		if cancel != nil {
			cancel()
		}

		if done.Success && expanded.ExpectedResult != "" {
			if err := r.checkExpectedResult(ctx, adapter, expanded.ExpectedResult); err != nil {
				done.Success = false
				done.Error = err.Error()
				done.Reason = schemas.ReasonElementNotFound
			}
		}

		result.Attempts = append(result.Attempts, *done)

		if done.Success {
			result.Status = schemas.StepSucceeded
			result.EndedAt = time.Now()
			return result
		}

		r.logger.Debug("Scenario step attempt failed",
			zap.String("scenario_id", sc.ID),
			zap.String("step_id", step.ID),
			zap.Int("attempt", attempt+1),
			zap.String("error", done.Error),
		)
	}

	result.Status = schemas.StepFailed
	result.EndedAt = time.Now()
	if n := len(result.Attempts); n > 0 {
		last := result.Attempts[n-1]
		result.Error = last.Error
		result.Reason = last.Reason
	} else {
		result.Error = "step never attempted: " + ctx.Err().Error()
		result.Reason = schemas.ReasonSessionAborted
	}
	return result
}

// checkExpectedResult verifies the post-action page against the step's
// expected_result string. The check is deterministic and cheap: the string
// must appear in the page title, the current URL, or the DOM.
func (r *Runner) checkExpectedResult(ctx context.Context, adapter schemas.BrowserAdapter, expected string) error {
	if title, err := adapter.Title(ctx); err == nil && strings.Contains(title, expected) {
		return nil
	}
	if url, err := adapter.CurrentURL(ctx); err == nil && strings.Contains(url, expected) {
		return nil
	}
	if dom, err := adapter.DOM(ctx); err == nil && strings.Contains(dom, expected) {
		return nil
	}
	return fmt.Errorf("expected result %q not found on page", expected)
}

// SetSleepForTest replaces the retry backoff sleep; tests use it to run
// instantly.
func (r *Runner) SetSleepForTest(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

func (r *Runner) skip(step schemas.TestStep, reason string) schemas.StepResult {
	now := time.Now()
	return schemas.StepResult{
		StepID:    step.ID,
		Name:      step.Name,
		Status:    schemas.StepSkipped,
		Error:     reason,
		StartedAt: now,
		EndedAt:   now,
	}
}

// dependenciesCompleted reports whether every dependency of the step ran to
// completion. Succeeded and failed both count as completed; skipped does not.
func dependenciesCompleted(step schemas.TestStep, completed map[string]schemas.StepStatus) bool {
	for _, dep := range step.Dependencies {
		status, ok := completed[dep]
		if !ok || status == schemas.StepSkipped {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
