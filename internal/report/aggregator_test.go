// File: internal/report/aggregator_test.go
package report_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/report"
)

func failedAction(kind schemas.ActionKind, target string, reason schemas.FailureReason) schemas.UserAction {
	return schemas.UserAction{
		ID: "a", Kind: kind, Target: target,
		Success: false, Error: "boom", Reason: reason,
		Timestamp: time.Now(),
	}
}

func okAction(kind schemas.ActionKind) schemas.UserAction {
	return schemas.UserAction{ID: "a", Kind: kind, Success: true, Timestamp: time.Now()}
}

func TestBuildReport_CountingInvariant(t *testing.T) {
	ev := report.SessionEvidence{
		SessionID: "s-1",
		StartedAt: time.Now().Add(-time.Minute),
		EndedAt:   time.Now(),
		Steps: []schemas.StepResult{
			{StepID: "a", Status: schemas.StepSucceeded},
			{StepID: "b", Status: schemas.StepSucceeded},
			{StepID: "c", Status: schemas.StepFailed, Error: "element not found"},
			{StepID: "d", Status: schemas.StepSkipped},
		},
	}

	rep := report.BuildReport(ev)
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 2, rep.Successful)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, rep.Total, rep.Successful+rep.Failed+rep.Skipped)
	assert.InDelta(t, 2.0/3.0, rep.SuccessRate(), 1e-9)
}

// TestBuildReport_LoginScenarioShape mirrors the canonical three-step login
// flow: navigate, type, then a click whose target does not exist.
func TestBuildReport_LoginScenarioShape(t *testing.T) {
	notFound := failedAction(schemas.ActionClick, "#submit", schemas.ReasonElementNotFound)
	ev := report.SessionEvidence{
		SessionID: "s-login",
		Steps: []schemas.StepResult{
			{StepID: "nav", Name: "nav", Status: schemas.StepSucceeded},
			{StepID: "user", Name: "user", Status: schemas.StepSucceeded},
			{StepID: "submit", Name: "submit", Status: schemas.StepFailed,
				Error: "element not found", Reason: schemas.ReasonElementNotFound,
				Attempts: []schemas.UserAction{notFound}},
		},
	}

	rep := report.BuildReport(ev)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Successful)
	assert.Equal(t, 1, rep.Failed)

	require.Len(t, rep.Issues, 1)
	assert.Equal(t, schemas.IssueFunctionality, rep.Issues[0].Category)
	assert.Equal(t, "#submit", rep.Issues[0].Location)
}

func TestBuildReport_MidFlowSeverity(t *testing.T) {
	mk := func(id string, status schemas.StepStatus) schemas.StepResult {
		r := schemas.StepResult{StepID: id, Name: id, Status: status}
		if status == schemas.StepFailed {
			r.Error = "element not found"
			r.Attempts = []schemas.UserAction{failedAction(schemas.ActionClick, "#x", schemas.ReasonElementNotFound)}
		}
		return r
	}

	// Mid-flow failure without expected_result rates high.
	rep := report.BuildReport(report.SessionEvidence{Steps: []schemas.StepResult{
		mk("a", schemas.StepSucceeded),
		mk("b", schemas.StepFailed),
		mk("c", schemas.StepSucceeded),
	}})
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, schemas.SeverityHigh, rep.Issues[0].Severity)

	// The same failure at the end of the flow rates medium.
	rep = report.BuildReport(report.SessionEvidence{Steps: []schemas.StepResult{
		mk("a", schemas.StepSucceeded),
		mk("b", schemas.StepFailed),
	}})
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, schemas.SeverityMedium, rep.Issues[0].Severity)
}

func TestBuildReport_InteractiveCountsActions(t *testing.T) {
	ev := report.SessionEvidence{
		Actions: []schemas.UserAction{
			okAction(schemas.ActionNavigate),
			okAction(schemas.ActionClick),
			failedAction(schemas.ActionClick, "#gone", schemas.ReasonElementNotFound),
		},
	}

	rep := report.BuildReport(ev)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Successful)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 0, rep.Skipped)
}

// TestBuildReport_FallbackWaitsAreNotIssues: substituted waits record the
// oracle's confusion, not a page defect.
func TestBuildReport_FallbackWaitsAreNotIssues(t *testing.T) {
	wait := schemas.UserAction{
		ID: "w", Kind: schemas.ActionWait, Success: true,
		Reason: schemas.ReasonInstructionInvalid,
	}
	failedWait := wait
	failedWait.Success = false

	rep := report.BuildReport(report.SessionEvidence{
		Actions: []schemas.UserAction{okAction(schemas.ActionClick), wait, failedWait},
	})
	assert.Empty(t, rep.Issues)
}

func TestBuildReport_RepeatedElementNotFoundCollapses(t *testing.T) {
	ev := report.SessionEvidence{
		Actions: []schemas.UserAction{
			failedAction(schemas.ActionClick, "#submit", schemas.ReasonElementNotFound),
			okAction(schemas.ActionScroll),
			failedAction(schemas.ActionClick, "#submit", schemas.ReasonElementNotFound),
			failedAction(schemas.ActionClick, "#other", schemas.ReasonElementNotFound),
		},
	}

	rep := report.BuildReport(ev)
	require.Len(t, rep.Recommendations, 1, "two failures on one target collapse into one recommendation")
	assert.Equal(t, 2, rep.Recommendations[0].Occurrences)
	assert.Contains(t, rep.Recommendations[0].Description, "#submit")
}

func TestBuildReport_AnalysisFindingsDeduplicated(t *testing.T) {
	snapshot := func(url string) *schemas.PageAnalysis {
		return &schemas.PageAnalysis{
			URL:                  url,
			Timestamp:            time.Now(),
			AccessibilityIssues:  []string{"2 image(s) missing alt text"},
			ResponsivenessIssues: []string{"page has no viewport meta tag"},
		}
	}

	rep := report.BuildReport(report.SessionEvidence{
		Analyses: []*schemas.PageAnalysis{snapshot("https://x/a"), snapshot("https://x/a")},
	})

	require.Len(t, rep.Issues, 2, "identical findings across snapshots collapse")
	categories := []schemas.IssueCategory{rep.Issues[0].Category, rep.Issues[1].Category}
	assert.Contains(t, categories, schemas.IssueAccessibility)
	assert.Contains(t, categories, schemas.IssueResponsiveness)
}

func TestBuildReport_SlowPagePerformanceIssue(t *testing.T) {
	rep := report.BuildReport(report.SessionEvidence{
		Analyses: []*schemas.PageAnalysis{
			{URL: "https://x/", Performance: schemas.PagePerformance{LoadTimeMs: 5200}},
		},
	})

	require.Len(t, rep.Issues, 1)
	assert.Equal(t, schemas.IssuePerformance, rep.Issues[0].Category)
}

func TestBuildReport_AbortedSessionIssue(t *testing.T) {
	rep := report.BuildReport(report.SessionEvidence{
		AbortDetail: "page title looks like an error: 500 Internal Server Error",
	})

	require.Len(t, rep.Issues, 1)
	assert.Equal(t, schemas.SeverityCritical, rep.Issues[0].Severity)
	assert.Contains(t, rep.Issues[0].Description, "session aborted early")
}

func TestBuildReport_Idempotent(t *testing.T) {
	ev := report.SessionEvidence{
		SessionID: "s",
		Actions: []schemas.UserAction{
			okAction(schemas.ActionNavigate),
			failedAction(schemas.ActionClick, "#x", schemas.ReasonTimeout),
			failedAction(schemas.ActionClick, "#x", schemas.ReasonTimeout),
		},
	}

	first := report.BuildReport(ev)
	second := report.BuildReport(ev)

	// Everything except the generated identifiers must be byte-for-byte stable.
	diff := cmp.Diff(first, second,
		cmpopts.IgnoreFields(schemas.TestReport{}, "ID"),
		cmpopts.IgnoreFields(schemas.Issue{}, "ID"),
	)
	assert.Empty(t, diff)
}
