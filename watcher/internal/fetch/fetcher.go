// CLAUDE:SUMMARY HTTP GET page fetcher with fixed User-Agent, per-call timeout, size cap and SSRF-checked redirects.
// Package fetch retrieves the release-notes page.
//
// The HTTP fetcher covers static pages; the browser fetcher renders pages
// that build their content with JavaScript. Both return the raw markup and
// fail on any non-2xx status or transport error. There is no retry.
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/relwatch/horosafe"
)

// ErrStatus is returned (wrapped) when the server answers with a non-2xx code.
var ErrStatus = errors.New("fetch: unexpected status")

// Result contains the outcome of a fetch.
type Result struct {
	Body       []byte
	StatusCode int
	Hash       string // SHA-256 of body
	ETag       string
	LastMod    string
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // per-call deadline. Default: 30s.
	MaxBytes int64         // max response body size. Default: 10MB.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on each redirect.
	// Default: horosafe.ValidateURL.
	URLValidator func(string) error
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "braze-release-watcher/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher performs plain HTTP GETs.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves url. Any status outside 2xx is an error wrapping ErrStatus;
// the Result is still returned so callers can log the code.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("fetch: URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	res := &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		Hash:       hashBody(body),
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
	}
	f.config.Logger.Debug("fetch: fetched",
		"url", url, "status", resp.StatusCode, "size", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func hashBody(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
