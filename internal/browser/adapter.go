// File: internal/browser/adapter.go

// Package browser is the chromedp-backed implementation of the
// BrowserAdapter capability. One Adapter owns one Chrome tab configured with
// a persona's fingerprint; Release tears the whole allocator chain down.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxprobe/api/schemas"
	"github.com/xkilldash9x/uxprobe/internal/config"
)

// maxElements caps how many handles FindElements returns for one selector.
const maxElements = 50

// Adapter drives one Chrome tab through the CDP.
type Adapter struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	mu           sync.Mutex
	scriptErrors []string

	releaseOnce sync.Once
}

// New launches a Chrome tab configured for the given persona and returns the
// adapter around it. The caller must Release it.
func New(ctx context.Context, cfg config.BrowserConfig, persona schemas.HumanProfile, logger *zap.Logger) (*Adapter, error) {
	opts := allocatorOptions(cfg, persona)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	a := &Adapter{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// Surface page-side errors: uncaught exceptions and console.error calls
	// both feed the broken-page heuristic.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventExceptionThrown:
			a.recordScriptError(e.ExceptionDetails.Error())
		case *runtime.EventConsoleAPICalled:
			if e.Type == runtime.APITypeError {
				a.recordScriptError(consoleText(e))
			}
		}
	})

	boot := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(
			int64(persona.ViewportWidth), int64(persona.ViewportHeight), 1.0, false),
	}
	if persona.Timezone != "" {
		boot = append(boot, emulation.SetTimezoneOverride(persona.Timezone))
	}
	if persona.Locale != "" {
		boot = append(boot, emulation.SetLocaleOverride().WithLocale(persona.Locale))
	}
	if cfg.DisableCache {
		boot = append(boot, network.SetCacheDisabled(true))
	}

	if err := chromedp.Run(tabCtx, boot...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser tab: %w", err)
	}

	a.logger.Debug("Browser tab ready",
		zap.String("user_agent", persona.UserAgent),
		zap.Int("viewport_width", persona.ViewportWidth),
		zap.Int("viewport_height", persona.ViewportHeight),
	)
	return a, nil
}

func allocatorOptions(cfg config.BrowserConfig, persona schemas.HumanProfile) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if persona.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(persona.UserAgent))
	}
	if persona.ViewportWidth > 0 && persona.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(persona.ViewportWidth, persona.ViewportHeight))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, raw := range cfg.Args {
		name, value := splitArg(raw)
		if name == "" {
			continue
		}
		if value == "" {
			opts = append(opts, chromedp.Flag(name, true))
		} else {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}
	return opts
}

// splitArg turns a raw "--name=value" command line argument into a flag pair.
func splitArg(raw string) (string, string) {
	trimmed := strings.TrimLeft(raw, "-")
	if trimmed == "" {
		return "", ""
	}
	if i := strings.IndexByte(trimmed, '='); i >= 0 {
		return trimmed[:i], trimmed[i+1:]
	}
	return trimmed, ""
}

// run executes chromedp actions on the tab, bounded by the caller's deadline.
func (a *Adapter) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := a.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (a *Adapter) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if a.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(a.cfg.PostLoadWait))
	}

	navCtx := ctx
	if a.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, a.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := a.run(navCtx, actions...); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (a *Adapter) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := a.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

func (a *Adapter) Title(ctx context.Context) (string, error) {
	var title string
	if err := a.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

func (a *Adapter) DOM(ctx context.Context) (string, error) {
	var html string
	if err := a.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading DOM: %w", err)
	}
	return html, nil
}

// FindElement resolves the selector in the page and returns a handle, or
// (nil, nil) when nothing matches. Selectors starting with "//" are treated
// as XPath.
func (a *Adapter) FindElement(ctx context.Context, selector string) (*schemas.ElementHandle, error) {
	var handle *schemas.ElementHandle
	script := fmt.Sprintf(findElementJS, jsString(selector))
	if err := a.run(ctx, chromedp.Evaluate(script, &handle)); err != nil {
		return nil, fmt.Errorf("finding element %q: %w", selector, err)
	}
	if handle != nil {
		handle.Selector = selector
	}
	return handle, nil
}

func (a *Adapter) FindElements(ctx context.Context, selector string) ([]schemas.ElementHandle, error) {
	var handles []schemas.ElementHandle
	script := fmt.Sprintf(findElementsJS, jsString(selector), maxElements)
	if err := a.run(ctx, chromedp.Evaluate(script, &handles)); err != nil {
		return nil, fmt.Errorf("finding elements %q: %w", selector, err)
	}
	for i := range handles {
		handles[i].Selector = selector
	}
	return handles, nil
}

func (a *Adapter) Click(ctx context.Context, selector string) error {
	if err := a.run(ctx,
		chromedp.ScrollIntoView(selector, queryOption(selector)),
		chromedp.Click(selector, queryOption(selector)),
	); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

func (a *Adapter) Type(ctx context.Context, selector, text string) error {
	if err := a.run(ctx,
		chromedp.ScrollIntoView(selector, queryOption(selector)),
		chromedp.Clear(selector, queryOption(selector)),
		chromedp.SendKeys(selector, text, queryOption(selector)),
	); err != nil {
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

func (a *Adapter) Hover(ctx context.Context, selector string) error {
	script := fmt.Sprintf(hoverJS, jsString(selector))
	var ok bool
	if err := a.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("hovering %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("hovering %q: element vanished", selector)
	}
	return nil
}

func (a *Adapter) Scroll(ctx context.Context, direction string) error {
	var script string
	switch direction {
	case "up":
		script = `window.scrollBy(0, -Math.round(window.innerHeight * 0.8)); true`
	case "top":
		script = `window.scrollTo(0, 0); true`
	case "bottom":
		script = `window.scrollTo(0, document.body.scrollHeight); true`
	default:
		script = `window.scrollBy(0, Math.round(window.innerHeight * 0.8)); true`
	}
	var ok bool
	if err := a.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("scrolling %s: %w", direction, err)
	}
	return nil
}

func (a *Adapter) Screenshot(ctx context.Context, path string) (string, error) {
	var buf []byte
	if err := a.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

func (a *Adapter) EvaluateScript(ctx context.Context, script string) (json.RawMessage, error) {
	var result json.RawMessage
	if err := a.run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return nil, fmt.Errorf("evaluating script: %w", err)
	}
	return result, nil
}

// ScriptErrors drains the page errors collected since the previous call.
func (a *Adapter) ScriptErrors(_ context.Context) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	drained := a.scriptErrors
	a.scriptErrors = nil
	return drained
}

// Release tears down the tab and the Chrome process. Idempotent.
func (a *Adapter) Release(_ context.Context) error {
	a.releaseOnce.Do(func() {
		a.cancelTab()
		a.cancelAlloc()
		a.logger.Debug("Browser tab released")
	})
	return nil
}

func (a *Adapter) recordScriptError(msg string) {
	if msg == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.scriptErrors) < 100 {
		a.scriptErrors = append(a.scriptErrors, msg)
	}
}

// queryOption picks CSS or XPath addressing based on the selector shape.
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// jsString embeds a Go string as a JS string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func consoleText(e *runtime.EventConsoleAPICalled) string {
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		if len(arg.Value) > 0 {
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		}
	}
	return strings.Join(parts, " ")
}

const findElementJS = `(() => {
	const sel = %s;
	const locate = (s) => {
		if (s.startsWith('//')) {
			return document.evaluate(s, document, null,
				XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		try { return document.querySelector(s); } catch (e) { return null; }
	};
	const el = locate(sel);
	if (!el || el.nodeType !== 1) return null;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	const attrs = {};
	for (const a of el.attributes) attrs[a.name] = a.value;
	return {
		tag: el.tagName.toLowerCase(),
		text: (el.innerText || el.value || '').trim().slice(0, 200),
		attributes: attrs,
		visible: rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none',
		enabled: !el.disabled
	};
})()`

const findElementsJS = `(() => {
	const sel = %s;
	const limit = %d;
	let nodes = [];
	if (sel.startsWith('//')) {
		const it = document.evaluate(sel, document, null,
			XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < it.snapshotLength && i < limit; i++) nodes.push(it.snapshotItem(i));
	} else {
		try { nodes = Array.from(document.querySelectorAll(sel)).slice(0, limit); }
		catch (e) { nodes = []; }
	}
	return nodes.filter(el => el.nodeType === 1).map(el => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		return {
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.value || '').trim().slice(0, 200),
			attributes: attrs,
			visible: rect.width > 0 && rect.height > 0 &&
				style.visibility !== 'hidden' && style.display !== 'none',
			enabled: !el.disabled
		};
	});
})()`

const hoverJS = `(() => {
	const sel = %s;
	const locate = (s) => {
		if (s.startsWith('//')) {
			return document.evaluate(s, document, null,
				XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		}
		try { return document.querySelector(s); } catch (e) { return null; }
	};
	const el = locate(sel);
	if (!el) return false;
	el.scrollIntoView({block: 'center'});
	el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true}));
	el.dispatchEvent(new MouseEvent('mouseenter', {bubbles: true}));
	return true;
})()`
