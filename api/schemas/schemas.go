// File: api/schemas/schemas.go
package schemas

import (
	"time"
)

// -- Action Vocabulary --

// ActionKind identifies one atomic browser interaction. The vocabulary is
// closed: anything an instruction source or scenario file asks for must map
// onto one of these kinds before it reaches the executor.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionType     ActionKind = "type"
	ActionScroll   ActionKind = "scroll"
	ActionHover    ActionKind = "hover"
	ActionWait     ActionKind = "wait"
	ActionNavigate ActionKind = "navigate"
	ActionExtract  ActionKind = "extract"
	ActionAnalyze  ActionKind = "analyze"
	ActionScript   ActionKind = "script"
)

// ActionVocabulary lists every valid ActionKind. Used by the decision engine
// and the scenario loader to validate externally supplied action types.
var ActionVocabulary = map[ActionKind]bool{
	ActionClick:    true,
	ActionType:     true,
	ActionScroll:   true,
	ActionHover:    true,
	ActionWait:     true,
	ActionNavigate: true,
	ActionExtract:  true,
	ActionAnalyze:  true,
	ActionScript:   true,
}

// NormalizeActionKind maps externally supplied action type strings onto the
// closed vocabulary. It tolerates the "custom_script"/"custom-script" spelling
// some instruction sources use for ActionScript. The second return value is
// false when the input is not part of the vocabulary.
func NormalizeActionKind(raw string) (ActionKind, bool) {
	switch raw {
	case "custom_script", "custom-script":
		return ActionScript, true
	}
	kind := ActionKind(raw)
	if ActionVocabulary[kind] {
		return kind, true
	}
	return "", false
}

// -- Failure Reasons --

// FailureReason classifies why an action, step, or session failed. Reasons are
// stable strings so reports remain comparable across agent versions.
type FailureReason string

const (
	ReasonElementNotFound      FailureReason = "ELEMENT_NOT_FOUND"
	ReasonTimeout              FailureReason = "TIMEOUT"
	ReasonScriptError          FailureReason = "SCRIPT_ERROR"
	ReasonInstructionInvalid   FailureReason = "INSTRUCTION_INVALID"
	ReasonAnalysisPartial      FailureReason = "ANALYSIS_PARTIAL"
	ReasonSessionAborted       FailureReason = "SESSION_ABORTED"
	ReasonResourceReleaseError FailureReason = "RESOURCE_RELEASE_ERROR"
)

// -- User Action --

// UserAction is one interaction performed (or attempted) during a session. It
// is created by the decision engine or the scenario engine, completed exactly
// once by the executor, and then appended to the session history as permanent
// evidence. Completed actions are never mutated again.
type UserAction struct {
	ID        string                 `json:"id"`
	Kind      ActionKind             `json:"kind"`
	Target    string                 `json:"target,omitempty"`
	Value     string                 `json:"value,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Reason    FailureReason          `json:"reason,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SetMeta stores a metadata value, allocating the map on first use.
func (a *UserAction) SetMeta(key string, value interface{}) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]interface{})
	}
	a.Metadata[key] = value
}

// -- Human Profile --

// ExplorationStyle describes how a persona moves through an unfamiliar page.
type ExplorationStyle string

const (
	ExplorationSystematic ExplorationStyle = "systematic"
	ExplorationCurious    ExplorationStyle = "curious"
	ExplorationGoalDriven ExplorationStyle = "goal_driven"
)

// TechLevel is a coarse bucket for how comfortable the persona is with web UIs.
type TechLevel string

const (
	TechNovice   TechLevel = "novice"
	TechAverage  TechLevel = "average"
	TechExpert   TechLevel = "expert"
)

// HumanProfile is the behavioral parameterization of one session: a persona.
// It is immutable once generated and exclusively owned by a single session.
// Profiles affect timing, fingerprint, and action-selection bias; they never
// affect correctness judgments.
type HumanProfile struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Archetype string           `json:"archetype"`
	Age       int              `json:"age"`
	TechLevel TechLevel        `json:"tech_level"`
	Style     ExplorationStyle `json:"exploration_style"`

	// BrowsingSpeed scales persona delays: 1.0 is average, higher is faster.
	BrowsingSpeed float64 `json:"browsing_speed"`
	// Patience bounds how long the persona tolerates waits, in seconds.
	Patience float64 `json:"patience"`

	// Fingerprint.
	UserAgent      string `json:"user_agent"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	Locale         string `json:"locale"`
	Timezone       string `json:"timezone"`
}

// -- Session --

// SessionState tracks the lifecycle of a session.
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionStopped   SessionState = "stopped"
)

// -- Issues & Report --

// IssueCategory buckets an Issue by the aspect of the UI it concerns.
type IssueCategory string

const (
	IssueAccessibility  IssueCategory = "accessibility"
	IssueResponsiveness IssueCategory = "responsiveness"
	IssueFunctionality  IssueCategory = "functionality"
	IssuePerformance    IssueCategory = "performance"
)

// IssueSeverity orders issues by how urgently they should be looked at.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityHigh     IssueSeverity = "high"
	SeverityMedium   IssueSeverity = "medium"
	SeverityLow      IssueSeverity = "low"
	SeverityInfo     IssueSeverity = "info"
)

// Issue is a derived, severity-tagged observation about a defect found during
// a session. Issues are produced by the report aggregator, never created
// directly by a user.
type Issue struct {
	ID             string        `json:"id"`
	Category       IssueCategory `json:"category"`
	Severity       IssueSeverity `json:"severity"`
	Description    string        `json:"description"`
	Location       string        `json:"location,omitempty"`
	Screenshot     string        `json:"screenshot,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	DetectedAt     time.Time     `json:"detected_at"`
}

// Recommendation is a deduplicated remediation suggestion derived from
// repeated failure patterns in one session.
type Recommendation struct {
	Category    IssueCategory `json:"category"`
	Description string        `json:"description"`
	Occurrences int           `json:"occurrences"`
}

// TestReport is the final, immutable summary artifact of one session. It is
// computed exactly once, at session termination, from the full action history.
// Invariant: Successful + Failed + Skipped == Total.
type TestReport struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`

	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`

	Issues          []Issue           `json:"issues"`
	Recommendations []Recommendation  `json:"recommendations"`
	Profile         HumanProfile      `json:"profile"`
	Environment     map[string]string `json:"environment,omitempty"`
}

// SuccessRate returns the fraction of executed actions that succeeded.
// Skipped actions are excluded from the denominator.
func (r *TestReport) SuccessRate() float64 {
	executed := r.Successful + r.Failed
	if executed == 0 {
		return 0
	}
	return float64(r.Successful) / float64(executed)
}
