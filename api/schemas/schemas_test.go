// File: api/schemas/schemas_test.go
package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// TestNormalizeActionKind verifies that the closed vocabulary is enforced and
// that the custom-script spellings collapse onto ActionScript.
func TestNormalizeActionKind(t *testing.T) {
	cases := []struct {
		raw  string
		want schemas.ActionKind
		ok   bool
	}{
		{"click", schemas.ActionClick, true},
		{"type", schemas.ActionType, true},
		{"scroll", schemas.ActionScroll, true},
		{"hover", schemas.ActionHover, true},
		{"wait", schemas.ActionWait, true},
		{"navigate", schemas.ActionNavigate, true},
		{"extract", schemas.ActionExtract, true},
		{"analyze", schemas.ActionAnalyze, true},
		{"script", schemas.ActionScript, true},
		{"custom_script", schemas.ActionScript, true},
		{"custom-script", schemas.ActionScript, true},
		{"fly_to_moon", "", false},
		{"", "", false},
		{"CLICK", "", false}, // vocabulary is case-sensitive
	}

	for _, tc := range cases {
		got, ok := schemas.NormalizeActionKind(tc.raw)
		assert.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
	}
}

func TestUserActionSetMeta(t *testing.T) {
	var a schemas.UserAction
	a.SetMeta("confidence", 0.8)
	a.SetMeta("reason", "looks clickable")

	assert.Equal(t, 0.8, a.Metadata["confidence"])
	assert.Equal(t, "looks clickable", a.Metadata["reason"])
}

func TestReportSuccessRate(t *testing.T) {
	r := schemas.TestReport{Total: 5, Successful: 3, Failed: 1, Skipped: 1}
	assert.InDelta(t, 0.75, r.SuccessRate(), 1e-9)

	empty := schemas.TestReport{}
	assert.Zero(t, empty.SuccessRate())
}

func TestElementsOfKind(t *testing.T) {
	p := schemas.PageAnalysis{Elements: []schemas.UIElement{
		{Selector: "#a", Kind: schemas.ElementButton},
		{Selector: "#b", Kind: schemas.ElementInput},
		{Selector: "#c", Kind: schemas.ElementButton},
	}}

	buttons := p.ElementsOfKind(schemas.ElementButton)
	assert.Len(t, buttons, 2)
	assert.Equal(t, "#a", buttons[0].Selector)
	assert.Equal(t, "#c", buttons[1].Selector)
}
