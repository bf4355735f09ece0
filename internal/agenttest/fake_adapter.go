// File: internal/agenttest/fake_adapter.go

// Package agenttest provides in-memory fakes shared by the package tests.
// The fake adapter counts acquire/release calls so tests can assert the
// resource discipline the session manager guarantees.
package agenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/uxprobe/api/schemas"
)

// FakeAdapter is a scriptable, thread-safe BrowserAdapter stand-in.
type FakeAdapter struct {
	mu sync.Mutex

	// Page state served to callers.
	URL       string
	PageTitle string
	HTML      string

	// Elements maps selectors to the handle FindElement returns. A selector
	// absent from the map resolves to nil (no match).
	Elements map[string]*schemas.ElementHandle

	// ScriptResults maps script substrings to canned EvaluateScript results;
	// the first substring match wins. Unmatched scripts return "null".
	ScriptResults map[string]json.RawMessage
	ScriptErr     error

	// NavigateErr makes Navigate fail; ClickErr makes Click fail even when the
	// element exists. Latency is applied to every call and honors context
	// cancellation, letting tests provoke timeouts.
	NavigateErr error
	ClickErr    error
	Latency     time.Duration

	// PendingScriptErrors is drained by ScriptErrors.
	PendingScriptErrors []string

	// Recorded interactions, in call order.
	Navigations []string
	Clicks      []string
	Typed       map[string]string
	Hovers      []string
	Scrolls     []string
	Screenshots []string

	ReleaseCount int
	ReleaseErr   error
}

// NewFakeAdapter returns a fake with an empty but functional page.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		URL:           "about:blank",
		PageTitle:     "",
		HTML:          "<html><head></head><body></body></html>",
		Elements:      make(map[string]*schemas.ElementHandle),
		ScriptResults: make(map[string]json.RawMessage),
		Typed:         make(map[string]string),
	}
}

// AddElement registers a clickable, visible element under the selector.
func (f *FakeAdapter) AddElement(selector, tag, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Elements[selector] = &schemas.ElementHandle{
		Selector: selector,
		Tag:      tag,
		Text:     text,
		Visible:  true,
		Enabled:  true,
	}
}

// wait applies the configured latency, honoring cancellation.
func (f *FakeAdapter) wait(ctx context.Context) error {
	if f.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(f.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeAdapter) Navigate(ctx context.Context, url string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NavigateErr != nil {
		return f.NavigateErr
	}
	f.Navigations = append(f.Navigations, url)
	f.URL = url
	return nil
}

func (f *FakeAdapter) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URL, nil
}

func (f *FakeAdapter) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PageTitle, nil
}

func (f *FakeAdapter) DOM(ctx context.Context) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.HTML, nil
}

func (f *FakeAdapter) FindElement(ctx context.Context, selector string) (*schemas.ElementHandle, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if el, ok := f.Elements[selector]; ok {
		cp := *el
		return &cp, nil
	}
	return nil, nil
}

func (f *FakeAdapter) FindElements(ctx context.Context, selector string) ([]schemas.ElementHandle, error) {
	el, err := f.FindElement(ctx, selector)
	if err != nil || el == nil {
		return nil, err
	}
	return []schemas.ElementHandle{*el}, nil
}

func (f *FakeAdapter) Click(ctx context.Context, selector string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Elements[selector]; !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	if f.ClickErr != nil {
		return f.ClickErr
	}
	f.Clicks = append(f.Clicks, selector)
	return nil
}

func (f *FakeAdapter) Type(ctx context.Context, selector, text string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Elements[selector]; !ok {
		return fmt.Errorf("no element matches %q", selector)
	}
	f.Typed[selector] = text
	return nil
}

func (f *FakeAdapter) Hover(ctx context.Context, selector string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Hovers = append(f.Hovers, selector)
	return nil
}

func (f *FakeAdapter) Scroll(ctx context.Context, direction string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scrolls = append(f.Scrolls, direction)
	return nil
}

func (f *FakeAdapter) Screenshot(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Screenshots = append(f.Screenshots, path)
	return path, nil
}

func (f *FakeAdapter) EvaluateScript(ctx context.Context, script string) (json.RawMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScriptErr != nil {
		return nil, f.ScriptErr
	}
	for substr, result := range f.ScriptResults {
		if substr != "" && strings.Contains(script, substr) {
			return result, nil
		}
	}
	return json.RawMessage("null"), nil
}

func (f *FakeAdapter) ScriptErrors(ctx context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	drained := f.PendingScriptErrors
	f.PendingScriptErrors = nil
	return drained
}

func (f *FakeAdapter) Release(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReleaseCount++
	return f.ReleaseErr
}

// Released reports how many times Release has been called.
func (f *FakeAdapter) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ReleaseCount
}
