// File: api/schemas/analysis.go
package schemas

import "time"

// -- Page Analysis Schemas --

// ElementKind is a coarse classification of an interactive page element.
type ElementKind string

const (
	ElementButton     ElementKind = "button"
	ElementInput      ElementKind = "input"
	ElementLink       ElementKind = "link"
	ElementForm       ElementKind = "form"
	ElementImage      ElementKind = "image"
	ElementNavigation ElementKind = "navigation"
	ElementOther      ElementKind = "other"
)

// UIElement is a point-in-time description of one element on the page.
// Elements are produced fresh by every analyzer pass and never mutated.
type UIElement struct {
	Selector   string            `json:"selector"`
	Kind       ElementKind       `json:"kind"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Visible    bool              `json:"visible"`
	Enabled    bool              `json:"enabled"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
}

// PagePerformance carries coarse load metrics read from the browser's
// navigation timing API. Zero values mean the timing data was unavailable.
type PagePerformance struct {
	LoadTimeMs   float64 `json:"load_time_ms"`
	FirstPaintMs float64 `json:"first_paint_ms"`
	DOMNodes     int     `json:"dom_nodes,omitempty"`
}

// PageAnalysis is one immutable snapshot of a page's technical state. It is
// deliberately bounded in size: downstream consumers (notably the instruction
// source) have a context budget, so element lists are capped per category.
type PageAnalysis struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`

	Elements []UIElement       `json:"elements"`
	Meta     map[string]string `json:"meta,omitempty"`

	AccessibilityIssues  []string `json:"accessibility_issues,omitempty"`
	ResponsivenessIssues []string `json:"responsiveness_issues,omitempty"`

	Scripts      []string `json:"scripts,omitempty"`
	Stylesheets  []string `json:"stylesheets,omitempty"`
	APIEndpoints []string `json:"api_endpoints,omitempty"`

	Performance PagePerformance `json:"performance"`

	// Partial is set when the analyzer could not read the full page state;
	// callers must tolerate a partial analysis rather than aborting.
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ElementsOfKind filters the snapshot's elements by kind, preserving order.
func (p *PageAnalysis) ElementsOfKind(kind ElementKind) []UIElement {
	var out []UIElement
	for _, el := range p.Elements {
		if el.Kind == kind {
			out = append(out, el)
		}
	}
	return out
}
