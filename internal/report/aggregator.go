// File: internal/report/aggregator.go

// Package report turns a finished session's evidence into its final
// TestReport and delivers it. Aggregation is a pure function of the session
// history: given the same actions, step results and page snapshots it always
// produces the same counts, issues and recommendations.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// slowPageMs is the load time above which a page earns a performance issue.
const slowPageMs = 3000

// SessionEvidence is everything the aggregator consumes. The session manager
// assembles it once, at termination; BuildReport never reaches back into live
// session state.
type SessionEvidence struct {
	SessionID string
	Profile   schemas.HumanProfile
	StartedAt time.Time
	EndedAt   time.Time

	// Actions is the interactive history; Steps the scenario results. A
	// session has one or the other, never both.
	Actions []schemas.UserAction
	Steps   []schemas.StepResult

	// Analyses are the page snapshots collected during the session.
	Analyses []*schemas.PageAnalysis

	// AbortDetail is non-empty when the broken-page heuristic ended the
	// session early.
	AbortDetail string

	Environment map[string]string
}

// BuildReport computes the session's report. It runs exactly once per session
// and upholds the counting invariant Total == Successful + Failed + Skipped.
func BuildReport(ev SessionEvidence) *schemas.TestReport {
	rep := &schemas.TestReport{
		ID:          uuid.New().String(),
		SessionID:   ev.SessionID,
		StartedAt:   ev.StartedAt,
		EndedAt:     ev.EndedAt,
		Duration:    ev.EndedAt.Sub(ev.StartedAt),
		Profile:     ev.Profile,
		Environment: ev.Environment,
	}

	if len(ev.Steps) > 0 {
		countSteps(rep, ev.Steps)
		rep.Issues = append(rep.Issues, stepIssues(ev.Steps)...)
	} else {
		countActions(rep, ev.Actions)
		rep.Issues = append(rep.Issues, actionIssues(ev.Actions)...)
	}

	rep.Issues = append(rep.Issues, analysisIssues(ev.Analyses)...)

	if ev.AbortDetail != "" {
		rep.Issues = append(rep.Issues, schemas.Issue{
			ID:          uuid.New().String(),
			Category:    schemas.IssueFunctionality,
			Severity:    schemas.SeverityCritical,
			Description: "session aborted early: " + ev.AbortDetail,
			DetectedAt:  ev.EndedAt,
		})
	}

	rep.Recommendations = deriveRecommendations(ev)
	return rep
}

func countSteps(rep *schemas.TestReport, steps []schemas.StepResult) {
	rep.Total = len(steps)
	for _, s := range steps {
		switch s.Status {
		case schemas.StepSucceeded:
			rep.Successful++
		case schemas.StepSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
	}
}

func countActions(rep *schemas.TestReport, actions []schemas.UserAction) {
	rep.Total = len(actions)
	for _, a := range actions {
		if a.Success {
			rep.Successful++
		} else {
			rep.Failed++
		}
	}
}

// stepIssues derives one functionality issue per failed step. A mid-flow
// failure on a step without an expected_result check rates high; anything
// else rates medium.
func stepIssues(steps []schemas.StepResult) []schemas.Issue {
	var issues []schemas.Issue
	for i, s := range steps {
		if s.Status != schemas.StepFailed {
			continue
		}

		severity := schemas.SeverityMedium
		midFlow := i > 0 && i < len(steps)-1
		if midFlow && lastExpected(s) == "" {
			severity = schemas.SeverityHigh
		}

		issue := schemas.Issue{
			ID:          uuid.New().String(),
			Category:    schemas.IssueFunctionality,
			Severity:    severity,
			Description: fmt.Sprintf("step %q failed: %s", s.Name, s.Error),
			DetectedAt:  s.EndedAt,
		}
		if n := len(s.Attempts); n > 0 {
			last := s.Attempts[n-1]
			issue.Location = last.Target
			issue.Screenshot = metaString(last, "screenshot")
		}
		issues = append(issues, issue)
	}
	return issues
}

// lastExpected reads the expected-result marker off the step's final attempt.
// Steps that checked an expected result fail with that phrase in the error.
func lastExpected(s schemas.StepResult) string {
	if n := len(s.Attempts); n > 0 {
		if v := metaString(s.Attempts[n-1], "expected_result"); v != "" {
			return v
		}
	}
	return ""
}

// actionIssues derives functionality issues from failed interactive actions.
// Fallback waits substituted for invalid instructions are the oracle's
// confusion, not the page's defect, and produce no issue.
func actionIssues(actions []schemas.UserAction) []schemas.Issue {
	var issues []schemas.Issue
	for i, a := range actions {
		if a.Success || a.Reason == schemas.ReasonInstructionInvalid {
			continue
		}

		severity := schemas.SeverityMedium
		if i > 0 && i < len(actions)-1 {
			severity = schemas.SeverityHigh
		}

		issues = append(issues, schemas.Issue{
			ID:          uuid.New().String(),
			Category:    schemas.IssueFunctionality,
			Severity:    severity,
			Description: fmt.Sprintf("%s on %q failed: %s", a.Kind, a.Target, a.Error),
			Location:    a.Target,
			Screenshot:  metaString(a, "screenshot"),
			DetectedAt:  a.Timestamp,
		})
	}
	return issues
}

// analysisIssues lifts the analyzer's audit findings into report issues,
// deduplicated by description across snapshots of the same session.
func analysisIssues(analyses []*schemas.PageAnalysis) []schemas.Issue {
	seen := make(map[string]struct{})
	var issues []schemas.Issue

	add := func(category schemas.IssueCategory, severity schemas.IssueSeverity, description, location string, at time.Time) {
		key := string(category) + "|" + description
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		issues = append(issues, schemas.Issue{
			ID:          uuid.New().String(),
			Category:    category,
			Severity:    severity,
			Description: description,
			Location:    location,
			DetectedAt:  at,
		})
	}

	for _, an := range analyses {
		if an == nil {
			continue
		}
		for _, desc := range an.AccessibilityIssues {
			add(schemas.IssueAccessibility, schemas.SeverityMedium, desc, an.URL, an.Timestamp)
		}
		for _, desc := range an.ResponsivenessIssues {
			add(schemas.IssueResponsiveness, schemas.SeverityLow, desc, an.URL, an.Timestamp)
		}
		if an.Performance.LoadTimeMs > slowPageMs {
			add(schemas.IssuePerformance, schemas.SeverityMedium,
				fmt.Sprintf("page loaded in %.0fms", an.Performance.LoadTimeMs),
				an.URL, an.Timestamp)
		}
	}
	return issues
}

// deriveRecommendations collapses repeated failure patterns into single
// remediation entries: two failures of the same kind on the same target are
// one recommendation, not two.
func deriveRecommendations(ev SessionEvidence) []schemas.Recommendation {
	type patternKey struct {
		reason schemas.FailureReason
		target string
	}
	counts := make(map[patternKey]int)

	note := func(a schemas.UserAction) {
		if a.Success {
			return
		}
		switch a.Reason {
		case schemas.ReasonElementNotFound, schemas.ReasonTimeout:
			counts[patternKey{a.Reason, a.Target}]++
		}
	}

	for _, a := range ev.Actions {
		note(a)
	}
	for _, s := range ev.Steps {
		for _, a := range s.Attempts {
			note(a)
		}
	}

	var recs []schemas.Recommendation
	for key, n := range counts {
		if n < 2 {
			continue
		}
		var desc string
		switch key.reason {
		case schemas.ReasonElementNotFound:
			desc = fmt.Sprintf("element %q was not found %d times; verify it exists or update the selector", key.target, n)
		case schemas.ReasonTimeout:
			desc = fmt.Sprintf("interactions with %q timed out %d times; the page or element may be too slow", key.target, n)
		}
		recs = append(recs, schemas.Recommendation{
			Category:    schemas.IssueFunctionality,
			Description: desc,
			Occurrences: n,
		})
	}

	// Map iteration order is random; reports must be deterministic.
	sort.Slice(recs, func(i, j int) bool { return recs[i].Description < recs[j].Description })
	return recs
}

func metaString(a schemas.UserAction, key string) string {
	if v, ok := a.Metadata[key].(string); ok {
		return v
	}
	return ""
}
