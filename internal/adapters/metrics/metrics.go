// Package metrics implements the MetricsAdapter (spec.md section 6): it
// drives the same go-rod/CDP surface as adapters/capture to measure Core
// Web Vitals, collect console/network activity, and run a lightweight
// accessibility sweep. Grounded on the teacher's
// internal/browser/session_manager.go event-streaming idiom
// (page.EachEvent over proto.RuntimeConsoleAPICalled /
// proto.NetworkResponseReceived), adapted from "stream facts into an
// engine forever" to "collect for one bounded window, then summarize."
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

// webVitalsScript installs PerformanceObservers for LCP and CLS and
// exposes both alongside Navigation Timing's TTFB on a window global,
// polled once the collection window elapses.
const webVitalsScript = `
() => {
	window.__viztrtrVitals = { lcp: 0, cls: 0 };
	try {
		new PerformanceObserver((list) => {
			const entries = list.getEntries();
			const last = entries[entries.length - 1];
			if (last) window.__viztrtrVitals.lcp = last.renderTime || last.loadTime || 0;
		}).observe({ type: 'largest-contentful-paint', buffered: true });
	} catch (e) {}
	try {
		new PerformanceObserver((list) => {
			for (const entry of list.getEntries()) {
				if (!entry.hadRecentInput) {
					window.__viztrtrVitals.cls = (window.__viztrtrVitals.cls || 0) + entry.value;
				}
			}
		}).observe({ type: 'layout-shift', buffered: true });
	} catch (e) {}
	return true;
}
`

const readVitalsScript = `
() => {
	const nav = performance.getEntriesByType('navigation')[0];
	const ttfb = nav ? nav.responseStart - nav.requestStart : 0;
	const vitals = window.__viztrtrVitals || { lcp: 0, cls: 0 };
	return { lcp: vitals.lcp, cls: vitals.cls, ttfb: ttfb };
}
`

// accessibilitySweepScript is a heuristic DOM sweep, not a full
// axe-core run (no such library is part of this module's dependency
// set): missing alt text, unlabeled form controls, empty buttons without
// an aria-label, and same-as-background text color are the four cheapest,
// highest-signal checks available without a dedicated a11y engine.
const accessibilitySweepScript = `
() => {
	const violations = [];
	const warnings = [];
	document.querySelectorAll('img:not([alt])').forEach(el => violations.push('image missing alt text: ' + (el.src || el.outerHTML.slice(0, 80))));
	document.querySelectorAll('input:not([aria-label]):not([id])').forEach(el => warnings.push('input without label or aria-label: ' + el.outerHTML.slice(0, 80)));
	document.querySelectorAll('button:empty:not([aria-label])').forEach(el => violations.push('button has no accessible name'));
	const contrastIssues = [];
	document.querySelectorAll('body *').forEach(el => {
		const style = getComputedStyle(el);
		if (style.color === style.backgroundColor && style.backgroundColor !== 'rgba(0, 0, 0, 0)') {
			contrastIssues.push('element with identical text/background color: ' + el.tagName);
		}
	});
	return { violations: violations, warnings: warnings, contrastIssues: contrastIssues.slice(0, 20) };
}
`

// Adapter owns a single detached Chrome instance, reused across measure
// calls within one run.
type Adapter struct {
	headless    bool
	window      time.Duration
	httpTimeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

// New returns a MetricsAdapter. window is how long the console/network
// collector listens before summarizing; it defaults to 3s when zero.
func New(headless bool, window time.Duration) *Adapter {
	if window <= 0 {
		window = 3 * time.Second
	}
	return &Adapter{headless: headless, window: window, httpTimeout: 10 * time.Second}
}

func (a *Adapter) ensureBrowser() (*rod.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return a.browser, nil
	}
	controlURL, err := launcher.New().Headless(a.headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	a.browser = browser
	return a.browser, nil
}

// Measure satisfies scoring.MetricsAdapter.
func (a *Adapter) Measure(ctx context.Context, url string) (types.MetricsSnapshot, error) {
	browser, err := a.ensureBrowser()
	if err != nil {
		return types.MetricsSnapshot{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.window+10*time.Second)
	defer cancel()

	page, err := browser.Context(callCtx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return types.MetricsSnapshot{}, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	var consoleErrors, consoleWarnings []string
	var mu sync.Mutex
	var requestCount, totalBytes int

	// EachEvent's returned wait func does the actual event pumping (it
	// blocks running the callbacks until its context is done), so it
	// must run in its own goroutine for the whole collection window,
	// not merely be constructed.
	eventsCtx, stopCollecting := context.WithCancel(callCtx)
	wait := page.Context(eventsCtx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			mu.Lock()
			defer mu.Unlock()
			msg := stringifyArgs(ev.Args)
			switch ev.Type {
			case proto.RuntimeConsoleAPICalledTypeError:
				consoleErrors = append(consoleErrors, msg)
			case proto.RuntimeConsoleAPICalledTypeWarning:
				consoleWarnings = append(consoleWarnings, msg)
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			mu.Lock()
			defer mu.Unlock()
			requestCount++
			if ev.Response != nil {
				totalBytes += int(ev.Response.EncodedDataLength)
			}
		},
	)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	if err := page.Context(callCtx).Navigate(url); err != nil {
		stopCollecting()
		return types.MetricsSnapshot{}, fmt.Errorf("navigate: %w", err)
	}
	if _, err := page.Context(callCtx).Eval(webVitalsScript); err != nil {
		stopCollecting()
		return types.MetricsSnapshot{}, fmt.Errorf("install vitals observers: %w", err)
	}
	if err := page.Context(callCtx).WaitStable(500 * time.Millisecond); err != nil {
		stopCollecting()
		return types.MetricsSnapshot{}, fmt.Errorf("wait stable: %w", err)
	}

	select {
	case <-callCtx.Done():
		stopCollecting()
		return types.MetricsSnapshot{}, callCtx.Err()
	case <-time.After(a.window):
	}

	vitalsRes, err := page.Context(callCtx).Eval(readVitalsScript)
	if err != nil {
		stopCollecting()
		return types.MetricsSnapshot{}, fmt.Errorf("read vitals: %w", err)
	}
	a11yRes, err := page.Context(callCtx).Eval(accessibilitySweepScript)
	if err != nil {
		stopCollecting()
		return types.MetricsSnapshot{}, fmt.Errorf("accessibility sweep: %w", err)
	}

	stopCollecting()
	<-done

	var vitals struct {
		LCP  float64 `json:"lcp"`
		CLS  float64 `json:"cls"`
		TTFB float64 `json:"ttfb"`
	}
	vitalsRaw, err := vitalsRes.Value.MarshalJSON()
	if err != nil {
		return types.MetricsSnapshot{}, fmt.Errorf("marshal vitals: %w", err)
	}
	if err := json.Unmarshal(vitalsRaw, &vitals); err != nil {
		return types.MetricsSnapshot{}, fmt.Errorf("parse vitals: %w", err)
	}
	var a11y struct {
		Violations     []string `json:"violations"`
		Warnings       []string `json:"warnings"`
		ContrastIssues []string `json:"contrastIssues"`
	}
	a11yRaw, err := a11yRes.Value.MarshalJSON()
	if err != nil {
		return types.MetricsSnapshot{}, fmt.Errorf("marshal accessibility sweep: %w", err)
	}
	if err := json.Unmarshal(a11yRaw, &a11y); err != nil {
		return types.MetricsSnapshot{}, fmt.Errorf("parse accessibility sweep: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return types.MetricsSnapshot{
		CoreWebVitals: types.CoreWebVitals{LCPMs: vitals.LCP, CLS: vitals.CLS, TTFBMs: vitals.TTFB},
		Accessibility: types.AccessibilitySnapshot{
			Violations:     a11y.Violations,
			Warnings:       a11y.Warnings,
			ContrastIssues: a11y.ContrastIssues,
		},
		Console: types.ConsoleSnapshot{Errors: consoleErrors, Warnings: consoleWarnings},
		Network: types.NetworkSnapshot{RequestCount: requestCount, TotalBytes: totalBytes},
	}, nil
}

// Check satisfies verification.RuntimeChecker: a cheap HTTP-level smoke
// test plus a short console-error sample, distinct from the full
// Measure sweep which VerificationAgent doesn't need mid-iteration.
func (a *Adapter) Check(ctx context.Context, url string) (int, int, error) {
	client := &http.Client{Timeout: a.httpTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	browser, err := a.ensureBrowser()
	if err != nil {
		return resp.StatusCode, 0, nil
	}
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return resp.StatusCode, 0, nil
	}
	defer page.Close()

	var errCount int
	var mu sync.Mutex
	eventsCtx, stopCollecting := context.WithCancel(ctx)
	wait := page.Context(eventsCtx).EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		if ev.Type == proto.RuntimeConsoleAPICalledTypeError {
			mu.Lock()
			errCount++
			mu.Unlock()
		}
	})
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	if err := page.Context(ctx).Navigate(url); err != nil {
		stopCollecting()
		<-done
		return resp.StatusCode, 0, nil
	}
	_ = page.Context(ctx).WaitStable(300 * time.Millisecond)
	stopCollecting()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return resp.StatusCode, errCount, nil
}

// Close shuts down the underlying browser, if one was launched.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser == nil {
		return nil
	}
	return a.browser.Close()
}

func stringifyArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
