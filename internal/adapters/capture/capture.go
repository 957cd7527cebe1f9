// Package capture implements the CaptureAdapter (spec.md section 6): it
// drives a headless Chrome instance via go-rod and returns a Screenshot
// handle for the vision and metrics adapters to consume. Grounded on the
// teacher's internal/browser/session_manager.go browser-lifecycle and
// screenshot idiom (launcher.New/rod.New/page.Screenshot), simplified to
// a single-page, single-purpose capture rather than a multi-session
// manager.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Adapter owns a single detached Chrome instance, launched lazily and
// reused across captures within one run.
type Adapter struct {
	headless bool
	capture  config.CaptureConfig
	outDir   string

	browser *rod.Browser
}

// New returns a CaptureAdapter. outDir is where screenshot PNGs are
// written (spec.md section 6's on-disk artifact layout); headless
// controls the launched Chrome's visibility.
func New(headless bool, cfg config.CaptureConfig, outDir string) *Adapter {
	return &Adapter{headless: headless, capture: cfg, outDir: outDir}
}

func (a *Adapter) ensureBrowser() error {
	if a.browser != nil {
		return nil
	}
	controlURL, err := launcher.New().Headless(a.headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	a.browser = browser
	return nil
}

// Capture navigates to url, waits for network idle, and screenshots the
// viewport (or a selected element, or the full scrollable page) per
// opts. Any failed attempt is retried, up to the adapter's
// CaptureConfig.RetryAttempts attempts in total with a linearly growing
// delay, matching the teacher's launch-fallback pattern.
func (a *Adapter) Capture(ctx context.Context, url string, opts config.ScreenshotConfig) (types.Screenshot, error) {
	log := logging.Get(logging.CategoryCapture)

	timeout := a.capture.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := a.capture.RetryAttempts
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			delay := a.capture.RetryBaseDelay
			if delay <= 0 {
				delay = time.Second
			}
			select {
			case <-ctx.Done():
				return types.Screenshot{}, ctx.Err()
			case <-time.After(delay * time.Duration(attempt)):
			}
		}

		shot, err := a.captureOnce(ctx, url, opts, timeout)
		if err == nil {
			return shot, nil
		}
		lastErr = err
		log.Warn("capture attempt %d for %s failed: %v", attempt+1, url, err)
	}
	return types.Screenshot{}, fmt.Errorf("capture %s: %w", url, lastErr)
}

func (a *Adapter) captureOnce(ctx context.Context, url string, opts config.ScreenshotConfig, timeout time.Duration) (types.Screenshot, error) {
	if err := a.ensureBrowser(); err != nil {
		return types.Screenshot{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := a.browser.Context(callCtx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return types.Screenshot{}, fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1440
	}
	if height <= 0 {
		height = 900
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}).Call(page); err != nil {
		return types.Screenshot{}, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.Context(callCtx).Navigate(url); err != nil {
		return types.Screenshot{}, fmt.Errorf("navigate: %w", err)
	}
	if err := page.Context(callCtx).WaitStable(500 * time.Millisecond); err != nil {
		return types.Screenshot{}, fmt.Errorf("wait stable: %w", err)
	}

	var data []byte
	if opts.Selector != "" {
		el, err := page.Context(callCtx).Element(opts.Selector)
		if err != nil {
			return types.Screenshot{}, fmt.Errorf("find selector %q: %w", opts.Selector, err)
		}
		data, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		if err != nil {
			return types.Screenshot{}, fmt.Errorf("element screenshot: %w", err)
		}
	} else {
		data, err = page.Context(callCtx).Screenshot(opts.FullPage, nil)
		if err != nil {
			return types.Screenshot{}, fmt.Errorf("page screenshot: %w", err)
		}
	}

	path, err := a.writeFile(data)
	if err != nil {
		return types.Screenshot{}, err
	}

	return types.Screenshot{
		Data:    data,
		Path:    path,
		Width:   width,
		Height:  height,
		TakenAt: time.Now(),
	}, nil
}

func (a *Adapter) writeFile(data []byte) (string, error) {
	if a.outDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	name := fmt.Sprintf("screenshot-%d.png", time.Now().UnixNano())
	path := filepath.Join(a.outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// Close shuts down the underlying browser, if one was launched.
func (a *Adapter) Close() error {
	if a.browser == nil {
		return nil
	}
	return a.browser.Close()
}
