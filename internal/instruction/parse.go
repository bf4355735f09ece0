// File: internal/instruction/parse.go

// Package instruction implements the external decision oracle boundary: the
// wire contract helpers shared by every instruction source, and the
// Gemini-backed source used in production. Sources are advisory by contract;
// validation of what they return happens in the decision engine.
package instruction

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parse decodes a model response into a structured Instruction. LLMs wrap
// JSON in markdown fences, add prose, or emit slightly broken JSON; Parse
// strips the wrapping and runs jsonrepair before giving up.
func Parse(raw string) (*schemas.Instruction, error) {
	candidate := extractJSONBlock(raw)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found in instruction response")
	}

	var inst schemas.Instruction
	if err := json.UnmarshalFromString(candidate, &inst); err == nil {
		return &inst, nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, fmt.Errorf("instruction JSON unrepairable: %w", err)
	}
	if err := json.UnmarshalFromString(repaired, &inst); err != nil {
		return nil, fmt.Errorf("repaired instruction JSON still invalid: %w", err)
	}
	return &inst, nil
}

// extractJSONBlock locates the first top-level JSON object in the response,
// tolerating ```json fences and surrounding prose.
func extractJSONBlock(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		// Truncated object; hand the open fragment to the repairer.
		return s[start:]
	}
	return s[start : end+1]
}
