// Package browser owns the expensive remote browser handle. A Handle is
// one Playwright browser + context + page; the session manager creates
// one per task and destroys it afterwards, trading latency for a
// known-good browser state on every dispatch.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
)

// Default viewport for fresh contexts.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
)

// Handle is one live browser owned exclusively by a session.
type Handle struct {
	// ID identifies the handle in logs.
	ID string

	// Browser, Context and Page are the Playwright resources backing
	// the handle.
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	// CreatedAt is when the handle was opened.
	CreatedAt time.Time

	// remote marks handles connected over CDP rather than launched
	// locally; closing a remote browser only detaches from it.
	remote bool
}

// Close tears the handle down: page, then context, then browser.
// Individual close failures are collected but do not stop the teardown;
// a handle being closed is unusable either way.
func (h *Handle) Close() error {
	var errs []error
	if h.Page != nil {
		if err := h.Page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if h.Context != nil {
		if err := h.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if h.Browser != nil {
		if err := h.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Launcher creates browser handles. The session manager depends on this
// interface; tests substitute fakes.
type Launcher interface {
	NewHandle(ctx context.Context) (*Handle, error)
}

// Config selects how handles are created.
type Config struct {
	// WSEndpoint, when set, connects to a remote browser over CDP
	// (hosted providers expose a websocket endpoint). Empty launches
	// a local Chromium.
	WSEndpoint string

	// Headless controls local launches.
	Headless bool
}

// PlaywrightLauncher implements Launcher on Playwright. The driver is
// installed and started once, lazily, on first use.
type PlaywrightLauncher struct {
	cfg Config
	log *logging.Logger

	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

// NewPlaywrightLauncher creates a launcher. A nil logger is allowed.
func NewPlaywrightLauncher(cfg Config, log *logging.Logger) *PlaywrightLauncher {
	return &PlaywrightLauncher{cfg: cfg, log: log}
}

// ensureStarted installs and runs the Playwright driver once.
func (l *PlaywrightLauncher) ensureStarted() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	l.pw = pw
	l.initialized = true
	return nil
}

// NewHandle opens a fresh browser handle: remote over CDP when a
// websocket endpoint is configured, local Chromium otherwise.
func (l *PlaywrightLauncher) NewHandle(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.ensureStarted(); err != nil {
		return nil, err
	}

	var (
		br     playwright.Browser
		remote bool
		err    error
	)
	if l.cfg.WSEndpoint != "" {
		br, err = l.pw.Chromium.ConnectOverCDP(l.cfg.WSEndpoint)
		remote = true
	} else {
		br, err = l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.cfg.Headless),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}

	browserCtx, err := br.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	})
	if err != nil {
		_ = br.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = br.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	handle := &Handle{
		ID:        uuid.NewString(),
		Browser:   br,
		Context:   browserCtx,
		Page:      page,
		CreatedAt: time.Now(),
		remote:    remote,
	}
	if l.log != nil {
		l.log.Debugf("opened browser handle %s (remote=%v)", handle.ID, remote)
	}
	return handle, nil
}

// Shutdown stops the Playwright driver. Handles must already be closed.
func (l *PlaywrightLauncher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	l.pw = nil
	l.initialized = false
	return nil
}
