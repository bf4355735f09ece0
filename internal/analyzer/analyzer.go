// File: internal/analyzer/analyzer.go

// Package analyzer converts live page state into immutable PageAnalysis
// snapshots. One adapter round-trip fetches the serialized DOM, which is then
// parsed locally with goquery; geometry and timing are read with two bounded
// script evaluations. The analyzer never fails hard: adapter-level errors
// degrade the result to a partial snapshot the caller must tolerate.
package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// endpointPattern matches URL-shaped substrings that look like API calls:
// absolute URLs and rooted /api- or /v1-style paths.
var endpointPattern = regexp.MustCompile(`(?:https?://[^\s"'<>\\]+/(?:api|graphql|rest|v\d+)[^\s"'<>\\]*|/(?:api|graphql|rest|v\d+)/[A-Za-z0-9_\-./{}?=&%]+)`)

// Analyzer builds technical snapshots of the current page.
type Analyzer struct {
	cfg    config.AnalyzerConfig
	logger *zap.Logger
}

// New creates an Analyzer.
func New(cfg config.AnalyzerConfig, logger *zap.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, logger: logger.Named("analyzer")}
}

// Analyze produces a snapshot of the adapter's current page. It always
// returns a usable analysis: when the page cannot be read, the snapshot is
// marked Partial and carries only url/title and the error text.
func (a *Analyzer) Analyze(ctx context.Context, adapter schemas.BrowserAdapter) *schemas.PageAnalysis {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	analysis := &schemas.PageAnalysis{Timestamp: time.Now()}

	if url, err := adapter.CurrentURL(ctx); err == nil {
		analysis.URL = url
	}
	if title, err := adapter.Title(ctx); err == nil {
		analysis.Title = title
	}

	html, err := adapter.DOM(ctx)
	if err != nil {
		a.logger.Warn("Could not read page DOM, returning partial analysis",
			zap.String("url", analysis.URL), zap.Error(err))
		analysis.Partial = true
		analysis.Error = fmt.Sprintf("analysis failed: %v", err)
		return analysis
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		analysis.Partial = true
		analysis.Error = fmt.Sprintf("analysis failed: %v", err)
		return analysis
	}

	analysis.Meta = extractMeta(doc)
	analysis.Scripts, analysis.Stylesheets = extractResources(doc)
	analysis.APIEndpoints = extractEndpoints(doc)
	analysis.Elements = a.extractElements(doc)
	analysis.AccessibilityIssues = auditAccessibility(doc)
	analysis.ResponsivenessIssues = auditResponsiveness(doc)

	a.enrichGeometry(ctx, adapter, analysis)
	analysis.Performance = readPerformance(ctx, adapter)

	a.logger.Debug("Page analysis complete",
		zap.String("url", analysis.URL),
		zap.Int("elements", len(analysis.Elements)),
		zap.Int("a11y_issues", len(analysis.AccessibilityIssues)),
	)
	return analysis
}

// extractElements collects interactive elements, capped per category so the
// snapshot stays within the instruction source's context budget.
func (a *Analyzer) extractElements(doc *goquery.Document) []schemas.UIElement {
	var out []schemas.UIElement

	collect := func(query string, kind schemas.ElementKind) {
		count := 0
		doc.Find(query).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if count >= a.cfg.MaxElementsPerKind {
				return false
			}
			el := buildElement(s, kind, i)
			if el.Selector == "" {
				return true
			}
			out = append(out, el)
			count++
			return true
		})
	}

	collect("button, input[type=submit], input[type=button], [role=button]", schemas.ElementButton)
	collect("input:not([type=submit]):not([type=button]):not([type=hidden]), textarea, select", schemas.ElementInput)
	collect("a[href]", schemas.ElementLink)
	collect("form", schemas.ElementForm)
	collect("nav, [role=navigation]", schemas.ElementNavigation)
	collect("img", schemas.ElementImage)

	return out
}

// buildElement derives a stable selector and the element's flags from the
// static DOM. Geometry stays zero here; enrichGeometry fills it in from the
// live page when possible.
func buildElement(s *goquery.Selection, kind schemas.ElementKind, index int) schemas.UIElement {
	node := goquery.NodeName(s)

	selector := ""
	if id, ok := s.Attr("id"); ok && id != "" {
		selector = "#" + id
	} else if name, ok := s.Attr("name"); ok && name != "" {
		selector = fmt.Sprintf(`%s[name="%s"]`, node, name)
	} else {
		selector = fmt.Sprintf("%s:nth-of-type(%d)", node, index+1)
	}

	attrs := make(map[string]string)
	for _, want := range []string{"type", "href", "placeholder", "aria-label", "role", "alt", "value", "action"} {
		if v, ok := s.Attr(want); ok {
			attrs[want] = v
		}
	}

	_, disabled := s.Attr("disabled")
	style, _ := s.Attr("style")
	hidden := strings.Contains(style, "display:none") || strings.Contains(style, "display: none")
	if _, ok := s.Attr("hidden"); ok {
		hidden = true
	}

	text := strings.TrimSpace(s.Text())
	if len(text) > 120 {
		text = text[:120]
	}

	return schemas.UIElement{
		Selector:   selector,
		Kind:       kind,
		Text:       text,
		Attributes: attrs,
		Visible:    !hidden,
		Enabled:    !disabled,
	}
}

// enrichGeometry asks the live page for bounding rects of the extracted
// elements in a single script evaluation. Failures leave geometry at zero.
func (a *Analyzer) enrichGeometry(ctx context.Context, adapter schemas.BrowserAdapter, analysis *schemas.PageAnalysis) {
	if len(analysis.Elements) == 0 {
		return
	}

	selectors := make([]string, len(analysis.Elements))
	for i, el := range analysis.Elements {
		selectors[i] = el.Selector
	}
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return
	}

	script := fmt.Sprintf(`(() => %s.map(sel => {
		try {
			const el = document.querySelector(sel);
			if (!el) return null;
			const r = el.getBoundingClientRect();
			return {x: r.x, y: r.y, w: r.width, h: r.height};
		} catch (e) { return null; }
	}))()`, string(encoded))

	raw, err := adapter.EvaluateScript(ctx, script)
	if err != nil {
		a.logger.Debug("Geometry enrichment skipped", zap.Error(err))
		return
	}

	var rects []*struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		W float64 `json:"w"`
		H float64 `json:"h"`
	}
	if err := json.Unmarshal(raw, &rects); err != nil || len(rects) != len(analysis.Elements) {
		return
	}
	for i, r := range rects {
		if r == nil {
			continue
		}
		analysis.Elements[i].X = r.X
		analysis.Elements[i].Y = r.Y
		analysis.Elements[i].Width = r.W
		analysis.Elements[i].Height = r.H
	}
}

func extractMeta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		if name, ok := s.Attr("name"); ok && name != "" {
			meta[name] = content
		} else if prop, ok := s.Attr("property"); ok && prop != "" {
			meta[prop] = content
		}
	})
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func extractResources(doc *goquery.Document) (scripts, stylesheets []string) {
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			scripts = append(scripts, src)
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			stylesheets = append(stylesheets, href)
		}
	})
	return scripts, stylesheets
}

// extractEndpoints heuristically scans inline scripts and data attributes for
// URL-shaped substrings that look like API calls.
func extractEndpoints(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var endpoints []string

	add := func(text string) {
		for _, match := range endpointPattern.FindAllString(text, -1) {
			if !seen[match] {
				seen[match] = true
				endpoints = append(endpoints, match)
			}
		}
	}

	doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})
	doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		if action, ok := s.Attr("action"); ok {
			add(action)
		}
	})
	doc.Find("[data-url], [data-endpoint], [data-api]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-url", "data-endpoint", "data-api"} {
			if v, ok := s.Attr(attr); ok {
				add(v)
			}
		}
	})

	return endpoints
}

// auditAccessibility derives a coarse issue list from alt text, labels, and
// ARIA presence. These are heuristics, not a full audit.
func auditAccessibility(doc *goquery.Document) []string {
	var issues []string

	if lang, ok := doc.Find("html").Attr("lang"); !ok || lang == "" {
		issues = append(issues, "document is missing a lang attribute")
	}

	missingAlt := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			missingAlt++
		}
	})
	if missingAlt > 0 {
		issues = append(issues, fmt.Sprintf("%d image(s) without alt text", missingAlt))
	}

	unlabeled := 0
	doc.Find("input:not([type=hidden]):not([type=submit]):not([type=button]), textarea, select").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("aria-label"); ok {
			return
		}
		if _, ok := s.Attr("aria-labelledby"); ok {
			return
		}
		if id, ok := s.Attr("id"); ok && id != "" {
			if doc.Find(fmt.Sprintf(`label[for="%s"]`, id)).Length() > 0 {
				return
			}
		}
		unlabeled++
	})
	if unlabeled > 0 {
		issues = append(issues, fmt.Sprintf("%d form field(s) without an accessible label", unlabeled))
	}

	unnamed := 0
	doc.Find("button, [role=button], a[href]").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			return
		}
		if v, ok := s.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
			return
		}
		if s.Find("img[alt]").Length() > 0 {
			return
		}
		unnamed++
	})
	if unnamed > 0 {
		issues = append(issues, fmt.Sprintf("%d interactive element(s) without an accessible name", unnamed))
	}

	return issues
}

// fixedWidthPattern flags inline styles pinning an element wider than 1000px.
var fixedWidthPattern = regexp.MustCompile(`width:\s*(\d{4,})px`)

func auditResponsiveness(doc *goquery.Document) []string {
	var issues []string

	if doc.Find(`meta[name="viewport"]`).Length() == 0 {
		issues = append(issues, "page has no viewport meta tag")
	}

	fixedWidth := 0
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		if fixedWidthPattern.MatchString(style) {
			fixedWidth++
		}
	})
	if fixedWidth > 0 {
		issues = append(issues, fmt.Sprintf("%d element(s) with fixed widths over 1000px", fixedWidth))
	}

	return issues
}

// readPerformance pulls coarse numbers from the navigation timing API.
// Unavailable timing data reports as zeros.
func readPerformance(ctx context.Context, adapter schemas.BrowserAdapter) schemas.PagePerformance {
	const script = `(() => {
		const out = {load_ms: 0, first_paint_ms: 0, dom_nodes: document.getElementsByTagName('*').length};
		const nav = performance.getEntriesByType('navigation')[0];
		if (nav && nav.loadEventEnd > 0) out.load_ms = nav.loadEventEnd - nav.startTime;
		const paint = performance.getEntriesByType('paint').find(e => e.name === 'first-paint');
		if (paint) out.first_paint_ms = paint.startTime;
		return out;
	})()`

	raw, err := adapter.EvaluateScript(ctx, script)
	if err != nil {
		return schemas.PagePerformance{}
	}

	var parsed struct {
		LoadMs       float64 `json:"load_ms"`
		FirstPaintMs float64 `json:"first_paint_ms"`
		DOMNodes     int     `json:"dom_nodes"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return schemas.PagePerformance{}
	}
	return schemas.PagePerformance{
		LoadTimeMs:   parsed.LoadMs,
		FirstPaintMs: parsed.FirstPaintMs,
		DOMNodes:     parsed.DOMNodes,
	}
}
