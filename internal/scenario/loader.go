// File: internal/scenario/loader.go

// Package scenario loads, validates and runs declarative multi-step tests.
// A scenario file is a read-only template: validation happens entirely at
// load time, before any browser is touched, and running a scenario never
// mutates it.
package scenario

import (
	"fmt"
	"os"
	"regexp"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// placeholderPattern matches {{name}} occurrences in step payloads.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Load reads and validates a scenario file. A scenario that fails validation
// is rejected here, before any session or browser resources exist.
func Load(path string) (*schemas.TestScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var sc schemas.TestScenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}

	if err := Validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario definition for structural errors: missing or
// duplicate step ids, dependencies that do not resolve within the scenario,
// and action types outside the closed vocabulary. Steps run in declared
// order, so a dependency must name an earlier step. Validation is side-effect
// free and idempotent.
func Validate(sc *schemas.TestScenario) error {
	if sc.ID == "" {
		return fmt.Errorf("scenario has no id")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.ID)
	}

	seen := make(map[string]struct{}, len(sc.Steps))
	for i, step := range sc.Steps {
		if step.ID == "" {
			return fmt.Errorf("scenario %q: step %d has no id", sc.ID, i)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("scenario %q: duplicate step id %q", sc.ID, step.ID)
		}
		seen[step.ID] = struct{}{}

		if _, ok := schemas.NormalizeActionKind(step.Action.Type); !ok {
			return fmt.Errorf("scenario %q: step %q has unknown action type %q",
				sc.ID, step.ID, step.Action.Type)
		}
		if step.RetryCount < 0 {
			return fmt.Errorf("scenario %q: step %q has negative retry_count", sc.ID, step.ID)
		}
	}

	earlier := make(map[string]struct{}, len(sc.Steps))
	for _, step := range sc.Steps {
		for _, dep := range step.Dependencies {
			if dep == step.ID {
				return fmt.Errorf("scenario %q: step %q depends on itself", sc.ID, step.ID)
			}
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("scenario %q: step %q has dangling dependency %q",
					sc.ID, step.ID, dep)
			}
			if _, ok := earlier[dep]; !ok {
				return fmt.Errorf("scenario %q: step %q depends on later step %q",
					sc.ID, step.ID, dep)
			}
		}
		earlier[step.ID] = struct{}{}
	}
	return nil
}

// ExpandStep returns a copy of the step with every {{name}} placeholder in
// its action payload replaced from the variables map. Unresolved placeholders
// are left in place and the step proceeds; expansion is idempotent.
func ExpandStep(step schemas.TestStep, variables map[string]string) schemas.TestStep {
	step.Action.Target = substitute(step.Action.Target, variables)
	step.Action.Value = substitute(step.Action.Value, variables)
	step.ExpectedResult = substitute(step.ExpectedResult, variables)
	return step
}

func substitute(s string, variables map[string]string) string {
	if s == "" || len(variables) == 0 {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}
