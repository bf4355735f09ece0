// File: internal/executor/selector.go
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// ErrElementNotFound marks a target no resolution strategy could match.
var ErrElementNotFound = fmt.Errorf("element not found")

// bareWordPattern matches targets that look like a naked id/class name
// rather than a full selector ("submit" as opposed to "#submit" or "a.nav").
var bareWordPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// resolutionStrategy produces candidate selectors for a target. Strategies
// run in a fixed order and resolution stops at the first match; the chain is
// pure - it derives candidates from the target string only.
type resolutionStrategy struct {
	name       string
	candidates func(target string) []string
}

// resolutionChain is the ordered strategy list: exact selector first, then
// id/class shorthand, then an XPath text lookup as the fuzzy fallback.
var resolutionChain = []resolutionStrategy{
	{
		name: "exact",
		candidates: func(target string) []string {
			return []string{target}
		},
	},
	{
		name: "shorthand",
		candidates: func(target string) []string {
			if !bareWordPattern.MatchString(target) {
				return nil
			}
			return []string{"#" + target, "." + target, fmt.Sprintf(`[name="%s"]`, target)}
		},
	},
	{
		name: "fuzzy-text",
		candidates: func(target string) []string {
			text := strings.ReplaceAll(target, `"`, "")
			if text == "" {
				return nil
			}
			// XPath text containment over clickable elements; the adapter
			// treats selectors starting with "//" as XPath.
			return []string{fmt.Sprintf(
				`//*[self::a or self::button or self::input][contains(normalize-space(.), "%s")]`, text)}
		},
	},
}

// resolveTarget walks the resolution chain and returns the first selector
// that matches an element on the live page, along with its handle.
func resolveTarget(ctx context.Context, adapter schemas.BrowserAdapter, target string) (string, *schemas.ElementHandle, error) {
	if strings.TrimSpace(target) == "" {
		return "", nil, fmt.Errorf("%w: empty target", ErrElementNotFound)
	}

	for _, strategy := range resolutionChain {
		for _, candidate := range strategy.candidates(target) {
			handle, err := adapter.FindElement(ctx, candidate)
			if err != nil {
				// Adapter errors (cancellation, protocol failure) abort the
				// chain; a nil handle just means "keep looking".
				return "", nil, err
			}
			if handle != nil {
				return candidate, handle, nil
			}
		}
	}
	return "", nil, fmt.Errorf("%w: %q", ErrElementNotFound, target)
}
