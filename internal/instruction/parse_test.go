// File: internal/instruction/parse_test.go
package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CleanJSON(t *testing.T) {
	inst, err := Parse(`{"action":"click","target":"#submit","reason":"login button","confidence":0.92}`)
	require.NoError(t, err)
	assert.Equal(t, "click", inst.Action)
	assert.Equal(t, "#submit", inst.Target)
	assert.InDelta(t, 0.92, inst.Confidence, 1e-9)
}

func TestParse_MarkdownFence(t *testing.T) {
	raw := "Here is my decision:\n```json\n{\"action\": \"type\", \"target\": \"#user\", \"value\": \"bob\"}\n```\nDone."
	inst, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "type", inst.Action)
	assert.Equal(t, "bob", inst.Value)
}

func TestParse_RepairsBrokenJSON(t *testing.T) {
	// Trailing comma and single quotes - typical LLM output defects.
	raw := `{'action': 'scroll', 'target': 'down',}`
	inst, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "scroll", inst.Action)
	assert.Equal(t, "down", inst.Target)
}

func TestParse_TruncatedObject(t *testing.T) {
	raw := `{"action": "wait", "reason": "page still load`
	inst, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wait", inst.Action)
}

func TestParse_NoJSONAtAll(t *testing.T) {
	_, err := Parse("I think you should click the blue button.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object found")
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}

func TestExtractJSONBlock(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prose before {\"a\":1} prose after", `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no braces here", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractJSONBlock(tc.in), "input=%q", tc.in)
	}
}
