// CLAUDE:SUMMARY Headless-Chrome page fetcher (Rod + stealth) for release pages rendered client-side.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/relwatch/horosafe"
)

// BrowserConfig configures the browser fetcher.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local headless Chrome for each fetch.
	RemoteURL string
	// Timeout bounds navigation plus DOM serialisation. Default: 30s.
	Timeout time.Duration
	// DocumentWait bounds the wait for the main document response once
	// navigation returned. Past it the status is unknown and the DOM is
	// taken as is. Default: 10s.
	DocumentWait time.Duration
	// ResourceBlocking lists resource types to skip (images, fonts, media,
	// stylesheets). Default: images, fonts, media.
	ResourceBlocking []string
	URLValidator     func(string) error
	Logger           *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.DocumentWait <= 0 {
		c.DocumentWait = 10 * time.Second
	}
	if c.ResourceBlocking == nil {
		c.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser renders the page in Chrome and returns the resulting DOM.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a browser fetcher. Chrome is started lazily by Fetch.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{config: cfg}
}

// Fetch navigates to url and serialises document.documentElement.outerHTML.
// A non-2xx status on the main document is an error wrapping ErrStatus.
func (b *Browser) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := b.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("fetch: URL blocked: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	browser, cleanup, err := b.connect()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("fetch: browser tab: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if len(b.config.ResourceBlocking) > 0 {
		router := blockResources(page, b.config.ResourceBlocking)
		defer router.Stop()
	}

	var docStatus atomic.Int64
	waitDoc := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			docStatus.Store(int64(e.Response.Status))
			return true
		}
		return false
	})

	start := time.Now()
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("fetch: navigate: %w", err)
	}
	if !waitFor(waitDoc, b.config.DocumentWait) {
		b.config.Logger.Debug("fetch: no document response seen", "url", url, "wait", b.config.DocumentWait)
	}
	status := int(docStatus.Load())

	if status != 0 && (status < 200 || status >= 300) {
		return &Result{StatusCode: status}, fmt.Errorf("%w: %d", ErrStatus, status)
	}

	if err := page.WaitLoad(); err != nil {
		b.config.Logger.Warn("fetch: browser wait load", "url", url, "error", err)
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("fetch: serialise DOM: %w", err)
	}
	body := []byte(res.Value.Str())

	b.config.Logger.Debug("fetch: rendered",
		"url", url, "status", status, "size", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Body:       body,
		StatusCode: status,
		Hash:       hashBody(body),
	}, nil
}

// waitFor runs wait in a goroutine and reports whether it returned within d.
// On timeout the goroutine is left to end with the page context.
func waitFor(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func (b *Browser) connect() (*rod.Browser, func(), error) {
	wsURL := b.config.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("fetch: launch chrome: %w", err)
		}
		wsURL = u
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("fetch: connect chrome: %w", err)
	}

	cleanup := func() {
		browser.Close()
		if l != nil {
			l.Cleanup()
		}
	}
	return browser, cleanup, nil
}

// blockResources intercepts requests and fails those of blocked types.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(resType)]
}
