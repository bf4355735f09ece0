// File: internal/analyzer/analyzer_test.go
package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/agenttest"
	"github.com/xkilldash9x/uxprobe/internal/analyzer"
	"github.com/xkilldash9x/uxprobe/internal/config"
)

const loginPage = `<!DOCTYPE html>
<html>
<head>
  <title>Login - Example</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta name="description" content="Sign in to your account">
  <link rel="stylesheet" href="/static/app.css">
  <script src="/static/app.js"></script>
  <script>
    fetch('/api/v1/session', {method: 'POST'});
    const base = "https://auth.example.com/api/token";
  </script>
</head>
<body>
  <nav id="main-nav"><a href="/home">Home</a><a href="/pricing">Pricing</a></nav>
  <form id="login-form" action="/api/login">
    <input id="user" name="user" type="text" placeholder="Username">
    <input id="pass" name="pass" type="password">
    <button id="submit" type="submit">Sign in</button>
    <button class="icon-only"></button>
  </form>
  <img src="/logo.png">
  <img src="/hero.png" alt="product screenshot">
</body>
</html>`

func testConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{Timeout: 5 * time.Second, MaxElementsPerKind: 8}
}

func analyzePage(t *testing.T, html string) (*schemas.PageAnalysis, *agenttest.FakeAdapter) {
	t.Helper()
	fake := agenttest.NewFakeAdapter()
	fake.URL = "https://example.com/login"
	fake.PageTitle = "Login - Example"
	fake.HTML = html

	a := analyzer.New(testConfig(), zap.NewNop())
	return a.Analyze(context.Background(), fake), fake
}

func TestAnalyze_Elements(t *testing.T) {
	analysis, _ := analyzePage(t, loginPage)

	require.False(t, analysis.Partial)
	assert.Equal(t, "https://example.com/login", analysis.URL)
	assert.Equal(t, "Login - Example", analysis.Title)

	buttons := analysis.ElementsOfKind(schemas.ElementButton)
	require.NotEmpty(t, buttons)
	assert.Equal(t, "#submit", buttons[0].Selector)
	assert.Equal(t, "Sign in", buttons[0].Text)

	inputs := analysis.ElementsOfKind(schemas.ElementInput)
	require.Len(t, inputs, 2)
	assert.Equal(t, "#user", inputs[0].Selector)
	assert.True(t, inputs[0].Visible)
	assert.True(t, inputs[0].Enabled)

	links := analysis.ElementsOfKind(schemas.ElementLink)
	require.Len(t, links, 2)
	assert.Equal(t, "/home", links[0].Attributes["href"])

	forms := analysis.ElementsOfKind(schemas.ElementForm)
	require.Len(t, forms, 1)
	assert.Equal(t, "#login-form", forms[0].Selector)
}

func TestAnalyze_ElementCapPerKind(t *testing.T) {
	html := "<html><body>"
	for i := 0; i < 40; i++ {
		html += "<a href='/x'>link</a>"
	}
	html += "</body></html>"

	analysis, _ := analyzePage(t, html)
	links := analysis.ElementsOfKind(schemas.ElementLink)
	assert.Len(t, links, 8, "element list must be capped per category")
}

func TestAnalyze_ResourcesAndEndpoints(t *testing.T) {
	analysis, _ := analyzePage(t, loginPage)

	assert.Equal(t, []string{"/static/app.js"}, analysis.Scripts)
	assert.Equal(t, []string{"/static/app.css"}, analysis.Stylesheets)

	assert.Contains(t, analysis.APIEndpoints, "/api/v1/session")
	assert.Contains(t, analysis.APIEndpoints, "https://auth.example.com/api/token")
	assert.Contains(t, analysis.APIEndpoints, "/api/login")
}

func TestAnalyze_MetaTags(t *testing.T) {
	analysis, _ := analyzePage(t, loginPage)
	assert.Equal(t, "Sign in to your account", analysis.Meta["description"])
	assert.Contains(t, analysis.Meta["viewport"], "width=device-width")
}

func TestAnalyze_AccessibilityHeuristics(t *testing.T) {
	analysis, _ := analyzePage(t, loginPage)

	// Missing lang, one image without alt, two unlabeled fields, one button
	// with no accessible name.
	assert.Contains(t, analysis.AccessibilityIssues, "document is missing a lang attribute")
	assert.Contains(t, analysis.AccessibilityIssues, "1 image(s) without alt text")
	assert.Contains(t, analysis.AccessibilityIssues, "2 form field(s) without an accessible label")
	assert.Contains(t, analysis.AccessibilityIssues, "1 interactive element(s) without an accessible name")
}

func TestAnalyze_ResponsivenessHeuristics(t *testing.T) {
	analysis, _ := analyzePage(t, `<html><body><div style="width: 1400px"></div></body></html>`)
	assert.Contains(t, analysis.ResponsivenessIssues, "page has no viewport meta tag")
	assert.Contains(t, analysis.ResponsivenessIssues, "1 element(s) with fixed widths over 1000px")
}

func TestAnalyze_Performance(t *testing.T) {
	fake := agenttest.NewFakeAdapter()
	fake.HTML = loginPage
	fake.ScriptResults["getEntriesByType('navigation')"] = json.RawMessage(
		`{"load_ms": 812.5, "first_paint_ms": 240.0, "dom_nodes": 95}`)

	a := analyzer.New(testConfig(), zap.NewNop())
	analysis := a.Analyze(context.Background(), fake)

	assert.InDelta(t, 812.5, analysis.Performance.LoadTimeMs, 1e-9)
	assert.InDelta(t, 240.0, analysis.Performance.FirstPaintMs, 1e-9)
	assert.Equal(t, 95, analysis.Performance.DOMNodes)
}

func TestAnalyze_PerformanceUnavailableReportsZeros(t *testing.T) {
	analysis, _ := analyzePage(t, loginPage)
	assert.Zero(t, analysis.Performance.LoadTimeMs)
	assert.Zero(t, analysis.Performance.FirstPaintMs)
}

// TestAnalyze_PartialOnDOMFailure verifies the fail-soft contract: when the
// page cannot be read the analyzer still returns url/title with Partial set,
// and the caller is expected to carry on.
func TestAnalyze_PartialOnDOMFailure(t *testing.T) {
	fake := agenttest.NewFakeAdapter()
	fake.URL = "https://example.com/broken"
	fake.PageTitle = "Broken"
	fake.ScriptErr = errors.New("page not loaded")
	fake.HTML = ""
	fake.NavigateErr = nil

	// Force the DOM read to fail by cancelling mid-flight.
	fake.Latency = 50 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	a := analyzer.New(testConfig(), zap.NewNop())
	analysis := a.Analyze(ctx, fake)

	assert.True(t, analysis.Partial)
	assert.Contains(t, analysis.Error, "analysis failed")
	assert.Empty(t, analysis.Elements)
	assert.Equal(t, "https://example.com/broken", analysis.URL)
}
