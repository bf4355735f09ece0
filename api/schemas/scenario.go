// File: api/schemas/scenario.go
package schemas

import "time"

// -- Scenario Schemas --

// ActionTemplate is the action payload of a scenario step before variable
// substitution. Type must normalize into the closed ActionKind vocabulary.
type ActionTemplate struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	Value  string `json:"value,omitempty"`
}

// TestStep is one declarative step of a scenario. Steps are read-only
// templates; the runner instantiates them per session.
type TestStep struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Action         ActionTemplate `json:"action"`
	ExpectedResult string         `json:"expected_result,omitempty"`
	TimeoutMs      int            `json:"timeout"`
	RetryCount     int            `json:"retry_count"`
	Dependencies   []string       `json:"dependencies,omitempty"`
}

// TestScenario is a human-authored, deterministic multi-step test. The
// scenario itself is immutable; sessions instantiate it but never mutate it.
type TestScenario struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Steps         []TestStep        `json:"steps"`
	Variables     map[string]string `json:"variables,omitempty"`
	StopOnFailure bool              `json:"stop_on_failure"`
}

// StepStatus is the terminal state of one executed (or skipped) step.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records the outcome of one scenario step, including every
// attempt's completed action record. Attempts has length 1 + retries used;
// a skipped step has no attempts.
type StepResult struct {
	StepID    string        `json:"step_id"`
	Name      string        `json:"name"`
	Status    StepStatus    `json:"status"`
	Attempts  []UserAction  `json:"attempts,omitempty"`
	Error     string        `json:"error,omitempty"`
	Reason    FailureReason `json:"reason,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}
