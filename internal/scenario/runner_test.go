// File: internal/scenario/runner_test.go
package scenario_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/agenttest"
	"github.com/xkilldash9x/uxprobe/internal/scenario"
)

// fakeExec succeeds or fails scripted per target, recording every action.
type fakeExec struct {
	failTargets map[string]int // target -> number of failures before success
	executed    []schemas.UserAction
}

func newFakeExec() *fakeExec {
	return &fakeExec{failTargets: make(map[string]int)}
}

func (f *fakeExec) failFirst(target string, times int) {
	f.failTargets[target] = times
}

func (f *fakeExec) Execute(_ context.Context, _ schemas.BrowserAdapter, action *schemas.UserAction, _ schemas.HumanProfile) *schemas.UserAction {
	action.Timestamp = time.Now()
	if remaining, ok := f.failTargets[action.Target]; ok && remaining > 0 {
		f.failTargets[action.Target] = remaining - 1
		action.Success = false
		action.Error = "element not found"
		action.Reason = schemas.ReasonElementNotFound
	} else {
		action.Success = true
	}
	f.executed = append(f.executed, *action)
	return action
}

func newRunner(exec scenario.ActionExecutor) *scenario.Runner {
	r := scenario.NewRunner(exec, zap.NewNop())
	r.SetSleepForTest(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	return r
}

func step(id, actionType, target string, deps ...string) schemas.TestStep {
	return schemas.TestStep{
		ID:           id,
		Name:         id,
		Action:       schemas.ActionTemplate{Type: actionType, Target: target},
		Dependencies: deps,
	}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	exec := newFakeExec()
	runner := newRunner(exec)
	sc := &schemas.TestScenario{
		ID: "s",
		Steps: []schemas.TestStep{
			step("a", "navigate", "https://x/"),
			step("b", "click", "#go", "a"),
		},
	}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 2)
	assert.Equal(t, schemas.StepSucceeded, results[0].Status)
	assert.Equal(t, schemas.StepSucceeded, results[1].Status)
	assert.Len(t, exec.executed, 2)
}

// TestRun_RetryBudget checks the off-by-one contract: retry_count=2 allows
// three attempts in total, and every attempt is kept as evidence.
func TestRun_RetryBudget(t *testing.T) {
	exec := newFakeExec()
	exec.failFirst("#flaky", 5)
	runner := newRunner(exec)

	flaky := step("flaky", "click", "#flaky")
	flaky.RetryCount = 2
	sc := &schemas.TestScenario{ID: "s", Steps: []schemas.TestStep{flaky}}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 1)
	assert.Equal(t, schemas.StepFailed, results[0].Status)
	assert.Len(t, results[0].Attempts, 3)
	assert.Equal(t, schemas.ReasonElementNotFound, results[0].Reason)
}

func TestRun_RetrySucceedsMidBudget(t *testing.T) {
	exec := newFakeExec()
	exec.failFirst("#flaky", 1)
	runner := newRunner(exec)

	flaky := step("flaky", "click", "#flaky")
	flaky.RetryCount = 2
	sc := &schemas.TestScenario{ID: "s", Steps: []schemas.TestStep{flaky}}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 1)
	assert.Equal(t, schemas.StepSucceeded, results[0].Status)
	assert.Len(t, results[0].Attempts, 2, "success stops the retry loop")
}

// TestRun_DependencyGateIsCompletedNotSucceeded: a failed dependency still
// counts as completed, so the dependent step runs and collects evidence.
func TestRun_DependencyGateIsCompletedNotSucceeded(t *testing.T) {
	exec := newFakeExec()
	exec.failFirst("#broken", 1)
	runner := newRunner(exec)

	sc := &schemas.TestScenario{
		ID: "s",
		Steps: []schemas.TestStep{
			step("broken", "click", "#broken"),
			step("after", "click", "#after", "broken"),
		},
	}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 2)
	assert.Equal(t, schemas.StepFailed, results[0].Status)
	assert.Equal(t, schemas.StepSucceeded, results[1].Status,
		"failed dependency completed, dependent must still run")
}

func TestRun_SkippedDependencySkipsDependent(t *testing.T) {
	exec := newFakeExec()
	exec.failFirst("#first", 1)
	runner := newRunner(exec)

	sc := &schemas.TestScenario{
		ID:            "s",
		StopOnFailure: true,
		Steps: []schemas.TestStep{
			step("first", "click", "#first"),
			step("second", "click", "#second"),
			step("third", "click", "#third", "second"),
		},
	}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 3)
	assert.Equal(t, schemas.StepFailed, results[0].Status)
	assert.Equal(t, schemas.StepSkipped, results[1].Status)
	assert.Equal(t, schemas.StepSkipped, results[2].Status)
	assert.Empty(t, results[1].Attempts, "skipped steps are never attempted")
}

func TestRun_ContinuesWithoutStopOnFailure(t *testing.T) {
	exec := newFakeExec()
	exec.failFirst("#broken", 1)
	runner := newRunner(exec)

	sc := &schemas.TestScenario{
		ID: "s",
		Steps: []schemas.TestStep{
			step("broken", "click", "#broken"),
			step("next", "click", "#next"),
		},
	}

	results := runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	assert.Equal(t, schemas.StepFailed, results[0].Status)
	assert.Equal(t, schemas.StepSucceeded, results[1].Status)
}

func TestRun_VariableSubstitutionAtInstantiation(t *testing.T) {
	exec := newFakeExec()
	runner := newRunner(exec)

	typing := schemas.TestStep{
		ID:     "user",
		Name:   "Enter user",
		Action: schemas.ActionTemplate{Type: "type", Target: "#user", Value: "{{username}}"},
	}
	sc := &schemas.TestScenario{
		ID:        "s",
		Steps:     []schemas.TestStep{typing},
		Variables: map[string]string{"username": "bob"},
	}

	runner.Run(context.Background(), agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, exec.executed, 1)
	assert.Equal(t, "bob", exec.executed[0].Value)

	// The template is never mutated.
	assert.Equal(t, "{{username}}", sc.Steps[0].Action.Value)
}

func TestRun_ExpectedResultChecked(t *testing.T) {
	exec := newFakeExec()
	runner := newRunner(exec)

	adapter := agenttest.NewFakeAdapter()
	adapter.PageTitle = "Dashboard"

	ok := step("ok", "click", "#go")
	ok.ExpectedResult = "Dashboard"
	missing := step("missing", "click", "#go2")
	missing.ExpectedResult = "Welcome bob"
	sc := &schemas.TestScenario{ID: "s", Steps: []schemas.TestStep{ok, missing}}

	results := runner.Run(context.Background(), adapter, sc, schemas.HumanProfile{})
	assert.Equal(t, schemas.StepSucceeded, results[0].Status)
	assert.Equal(t, schemas.StepFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "expected result")
}

func TestRun_CancelledContextSkipsRemaining(t *testing.T) {
	exec := newFakeExec()
	runner := newRunner(exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := &schemas.TestScenario{ID: "s", Steps: []schemas.TestStep{step("a", "wait", "")}}
	results := runner.Run(ctx, agenttest.NewFakeAdapter(), sc, schemas.HumanProfile{})
	require.Len(t, results, 1)
	assert.Equal(t, schemas.StepSkipped, results[0].Status)
}
