// File: api/schemas/interfaces.go
package schemas

import (
	"context"
	"encoding/json"
)

// -- Browser Capability Adapter --

// ElementHandle is the adapter's view of a single resolved DOM element. It
// carries just enough state for the executor to decide whether the element is
// actionable.
type ElementHandle struct {
	Selector   string            `json:"selector"`
	Tag        string            `json:"tag"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Visible    bool              `json:"visible"`
	Enabled    bool              `json:"enabled"`
}

// BrowserAdapter is the capability-level interface the agent requires from a
// browser engine. It is deliberately protocol-agnostic: a CDP-backed
// implementation lives in internal/browser, and tests substitute fakes.
//
// Every method takes a context; implementations must honor cancellation at
// their I/O boundaries. FindElement returns (nil, nil) when no element
// matches - absence is data, not an error.
type BrowserAdapter interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// DOM returns the serialized HTML of the current document.
	DOM(ctx context.Context) (string, error)

	// FindElement resolves a selector to at most one element.
	FindElement(ctx context.Context, selector string) (*ElementHandle, error)
	// FindElements resolves a selector to all matching elements.
	FindElements(ctx context.Context, selector string) ([]ElementHandle, error)

	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Hover(ctx context.Context, selector string) error
	// Scroll moves the viewport in the given direction ("up", "down", "top",
	// "bottom") by roughly one viewport height per call.
	Scroll(ctx context.Context, direction string) error

	// Screenshot captures the viewport to path and returns the written path.
	Screenshot(ctx context.Context, path string) (string, error)
	// EvaluateScript runs a JavaScript expression in the page and returns its
	// JSON-serialized result.
	EvaluateScript(ctx context.Context, script string) (json.RawMessage, error)

	// ScriptErrors drains the page errors (uncaught exceptions, console
	// errors) observed since the last call.
	ScriptErrors(ctx context.Context) []string

	// Release tears down the browser resources backing this adapter. It must
	// be safe to call exactly once per adapter; the session manager guarantees
	// it is called on every exit path.
	Release(ctx context.Context) error
}

// -- Instruction Source --

// Instruction is the structured decision returned by an external instruction
// source. The engine treats it as advisory input, never as trusted commands:
// Action is validated against the closed vocabulary before execution.
type Instruction struct {
	Action     string  `json:"action"`
	Target     string  `json:"target,omitempty"`
	Value      string  `json:"value,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// InstructionRequest is the bounded context payload handed to the instruction
// source on each decision. RecentActions is capped (last five) so the payload
// stays within the source's context budget.
type InstructionRequest struct {
	SessionID     string        `json:"session_id"`
	Profile       HumanProfile  `json:"profile"`
	Page          *PageAnalysis `json:"page"`
	RecentActions []UserAction  `json:"recent_actions,omitempty"`
}

// InstructionSource is the external decision oracle consulted in interactive
// mode, typically an LLM. Implementations may be slow or return malformed
// output; callers must fail soft on both.
type InstructionSource interface {
	// NextInstruction produces the next suggested action for the session.
	NextInstruction(ctx context.Context, req InstructionRequest) (*Instruction, error)
	// Close releases any resources held by the source.
	Close() error
}

// -- Report Sink --

// ReportSink receives the artifacts a session produces. Delivery of the final
// TestReport is exactly-once per completed session, best-effort retried on
// transient failure; intermediate analyses are optional and fire-and-forget.
type ReportSink interface {
	// DeliverReport hands off the final report of a session.
	DeliverReport(ctx context.Context, report *TestReport) error
	// DeliverAnalysis hands off an intermediate page snapshot.
	DeliverAnalysis(ctx context.Context, sessionID string, analysis *PageAnalysis) error
}
