// File: internal/decision/engine.go

// Package decision turns advisory instructions from an external source into
// validated actions. The engine never fails hard on a bad instruction: an
// unrecognized action degrades to a short wait, and only a run of consecutive
// failures ends the session - as completed, not failed, since a confused
// oracle is not evidence of a broken page.
package decision

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/observability"
)

const (
	// maxRecentActions bounds the history slice sent to the source.
	maxRecentActions = 5
	// maxConsecutiveInvalid ends the session once this many instructions in a
	// row were unusable.
	maxConsecutiveInvalid = 3
	// fallbackWaitMs is the wait duration substituted for an invalid action.
	fallbackWaitMs = 2000
)

// Engine obtains and validates the next action for an interactive session.
// One Engine instance serves exactly one session; the invalid-instruction
// counter is per-session state.
type Engine struct {
	source  schemas.InstructionSource
	logger  *zap.Logger
	metrics *observability.Metrics

	consecutiveInvalid int
}

// New creates a decision engine bound to an instruction source.
func New(source schemas.InstructionSource, logger *zap.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		source:  source,
		logger:  logger.Named("decision"),
		metrics: metrics,
	}
}

// NextAction consults the instruction source and returns the next validated
// action. The boolean result is true when the session should stop: either the
// source said so explicitly, or too many consecutive instructions were
// unusable. A stop is a normal completion, never an error.
func (e *Engine) NextAction(
	ctx context.Context,
	sessionID string,
	profile schemas.HumanProfile,
	page *schemas.PageAnalysis,
	history []schemas.UserAction,
) (*schemas.UserAction, bool) {
	req := schemas.InstructionRequest{
		SessionID:     sessionID,
		Profile:       profile,
		Page:          page,
		RecentActions: tail(history, maxRecentActions),
	}

	inst, err := e.source.NextInstruction(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is the session's business, not an invalid
			// instruction; stop without recording a fallback action.
			return nil, true
		}
		e.logger.Warn("Instruction source call failed, substituting wait",
			zap.String("session_id", sessionID), zap.Error(err))
		e.metrics.InstructionCall("error")
		return e.invalidFallback("instruction source error: " + err.Error())
	}

	if isStop(inst.Action) {
		e.logger.Info("Instruction source requested stop",
			zap.String("session_id", sessionID), zap.String("reason", inst.Reason))
		e.metrics.InstructionCall("stop")
		return nil, true
	}

	kind, ok := schemas.NormalizeActionKind(inst.Action)
	if !ok {
		e.logger.Warn("Instruction action outside vocabulary, substituting wait",
			zap.String("session_id", sessionID), zap.String("action", inst.Action))
		e.metrics.InstructionCall("invalid")
		return e.invalidFallback("unrecognized action: " + inst.Action)
	}

	e.consecutiveInvalid = 0
	e.metrics.InstructionCall("ok")

	action := &schemas.UserAction{
		ID:     uuid.New().String(),
		Kind:   kind,
		Target: inst.Target,
		Value:  inst.Value,
	}
	// Confidence and reasoning are advisory: logged for later analysis, never
	// a gate on execution.
	if inst.Reason != "" {
		action.SetMeta("reason", inst.Reason)
	}
	if inst.Confidence > 0 {
		action.SetMeta("confidence", inst.Confidence)
	}
	return action, false
}

// invalidFallback produces the substitute wait action and decides whether the
// invalid-instruction run has exhausted the session.
func (e *Engine) invalidFallback(detail string) (*schemas.UserAction, bool) {
	e.consecutiveInvalid++
	if e.consecutiveInvalid >= maxConsecutiveInvalid {
		e.logger.Info("Too many consecutive invalid instructions, ending session",
			zap.Int("count", e.consecutiveInvalid))
		return nil, true
	}

	action := &schemas.UserAction{
		ID:    uuid.New().String(),
		Kind:  schemas.ActionWait,
		Value: strconv.Itoa(fallbackWaitMs),
	}
	action.SetMeta("fallback", true)
	action.SetMeta("reason", detail)
	action.SetMeta("failure_reason", string(schemas.ReasonInstructionInvalid))
	return action, false
}

func isStop(action string) bool {
	switch action {
	case "stop", "STOP", "complete", "done":
		return true
	}
	return false
}

func tail(actions []schemas.UserAction, n int) []schemas.UserAction {
	if len(actions) <= n {
		return actions
	}
	return actions[len(actions)-n:]
}
