// CLAUDE:SUMMARY Run orchestrator: fetch → locate → compare cursor → summarize → notify → persist, each step gated on the previous one.
// Package watcher detects a new release on a vendor release-notes page,
// summarizes it and posts the summary to a chat webhook.
//
// One RunOnce call is one linear cycle. The cursor is loaded once, passed by
// value, and written only after the notification succeeded: a failed post
// leaves the cursor where it was so the next run retries the same release.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/relwatch/extract"
	"github.com/hazyhaar/relwatch/horosafe"
	"github.com/hazyhaar/relwatch/release"
	"github.com/hazyhaar/relwatch/watcher/internal/cursor"
	"github.com/hazyhaar/relwatch/watcher/internal/fetch"
	"github.com/hazyhaar/relwatch/watcher/internal/notify"
	"github.com/hazyhaar/relwatch/watcher/internal/summarize"
)

// Cursor is the persisted watcher state.
type Cursor = cursor.Cursor

// CursorStore loads and saves the cursor. Load never fails.
type CursorStore = cursor.Store

// Message is one chat alert.
type Message = notify.Message

// Fetcher retrieves the raw page markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Summarizer turns release text into chat-formatted text.
type Summarizer interface {
	Summarize(ctx context.Context, body string) (string, error)
}

// Notifier posts one alert.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Status is the result of a successful run.
type Status string

const (
	// StatusUnchanged: the newest release is the one the cursor points at.
	StatusUnchanged Status = "unchanged"
	// StatusNotified: a new release was summarized, posted and recorded.
	StatusNotified Status = "notified"
	// StatusDryRun: a new release was summarized and printed only.
	StatusDryRun Status = "dry_run"
)

// Outcome describes a completed run.
type Outcome struct {
	Status   Status
	Entry    *release.Entry
	Previous string // cursor value before the run
	Summary  string // empty when unchanged
}

// Runner executes watcher cycles.
type Runner struct {
	config     Config
	logger     *slog.Logger
	fetcher    Fetcher
	store      CursorStore
	summarizer Summarizer
	notifier   Notifier
	strategies []release.Strategy
	markdown   *extract.Markdown
	dryRun     io.Writer
	closers    []io.Closer
}

// Option configures a Runner.
type Option func(*Runner)

// WithFetcher replaces the page fetcher built from Config.Page.
func WithFetcher(f Fetcher) Option { return func(r *Runner) { r.fetcher = f } }

// WithCursorStore replaces the store built from Config.Cursor.
func WithCursorStore(s CursorStore) Option { return func(r *Runner) { r.store = s } }

// WithSummarizer replaces the OpenAI summarizer.
func WithSummarizer(s Summarizer) Option { return func(r *Runner) { r.summarizer = s } }

// WithNotifier replaces the Slack notifier.
func WithNotifier(n Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithStrategies replaces the default locator chain.
func WithStrategies(s ...release.Strategy) Option {
	return func(r *Runner) { r.strategies = s }
}

// WithDryRun prints the alert to w instead of posting it; the cursor is
// never written.
func WithDryRun(w io.Writer) Option { return func(r *Runner) { r.dryRun = w } }

// New validates cfg and builds every collaborator not supplied by an option.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()

	r := &Runner{config: cfg, logger: logger}
	for _, o := range opts {
		o(r)
	}

	needWebhook := r.notifier == nil && r.dryRun == nil
	if err := cfg.Validate(r.summarizer == nil, needWebhook); err != nil {
		return nil, err
	}

	if r.fetcher == nil {
		r.fetcher = r.buildFetcher()
	}
	if r.store == nil {
		store, err := r.buildStore()
		if err != nil {
			return nil, err
		}
		r.store = store
	}
	if r.summarizer == nil {
		s, err := summarize.NewOpenAI(summarize.Config{
			Model:    cfg.Summarizer.Model,
			APIKey:   cfg.Summarizer.APIKey,
			BaseURL:  cfg.Summarizer.BaseURL,
			Timeout:  cfg.Summarizer.Timeout,
			MaxChars: cfg.Summarizer.MaxChars,
			Logger:   logger,
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		r.summarizer = s
	}
	if r.notifier == nil && needWebhook {
		r.notifier = notify.NewSlack(cfg.Notifier.WebhookURL,
			notify.WithTimeout(cfg.Notifier.Timeout),
			notify.WithTitlePrefix(cfg.Notifier.TitlePrefix),
			notify.WithLogger(logger),
		)
	}
	if cfg.Extract.Format == "markdown" {
		r.markdown = extract.NewMarkdown()
	}
	return r, nil
}

func (r *Runner) buildFetcher() Fetcher {
	p := r.config.Page
	var validate func(string) error
	if p.AllowPrivate {
		validate = horosafe.AllowAll
	}
	if p.Mode == "browser" {
		return bodyFetcher{fetch.NewBrowser(fetch.BrowserConfig{
			RemoteURL:    p.RemoteURL,
			Timeout:      p.Timeout,
			URLValidator: validate,
			Logger:       r.logger,
		}), r.logger}
	}
	return bodyFetcher{fetch.New(fetch.Config{
		Timeout:      p.Timeout,
		MaxBytes:     p.MaxBytes,
		UserAgent:    p.UserAgent,
		URLValidator: validate,
		Logger:       r.logger,
	}), r.logger}
}

func (r *Runner) buildStore() (CursorStore, error) {
	c := r.config.Cursor
	if c.Backend == "sqlite" {
		s, err := cursor.OpenSQLite(c.Path, c.Name, r.logger)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s)
		return s, nil
	}
	return cursor.NewFileStore(c.Path, r.logger), nil
}

// Close releases the cursor store if the Runner opened one.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// RunOnce performs one cycle. It returns an error when the fetch fails, when
// no release can be located, or when summarizing, notifying or saving the
// cursor fails. In every error case before the save, the cursor is untouched.
func (r *Runner) RunOnce(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	pageURL := r.config.Page.URL
	cur := r.store.Load(ctx)

	raw, err := r.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("watcher: fetch %s: %w", pageURL, err)
	}

	entry, err := release.LocateHTML(raw, r.strategies...)
	if err != nil {
		return nil, fmt.Errorf("watcher: locate: %w", err)
	}
	log := r.logger.With("release_id", entry.ID, "strategy", entry.Strategy)
	if entry.Truncated {
		log.Debug("watcher: body truncated", "max_chars", release.MaxBodyChars)
	}

	out := &Outcome{Entry: entry, Previous: cur.LastSeenID}
	if cur.Seen(entry.ID) {
		log.Info("watcher: no new release", "last_seen_id", cur.LastSeenID)
		out.Status = StatusUnchanged
		return out, nil
	}

	summary, err := r.summarizer.Summarize(ctx, r.body(entry))
	if err != nil {
		return nil, fmt.Errorf("watcher: summarize %s: %w", entry.ID, err)
	}
	out.Summary = summary

	msg := Message{Title: entry.Title, Summary: summary, SourceURL: pageURL}
	if r.dryRun != nil {
		fmt.Fprintln(r.dryRun, msg.Text(r.config.Notifier.TitlePrefix))
		log.Info("watcher: dry run, alert not posted")
		out.Status = StatusDryRun
		return out, nil
	}

	if err := r.notifier.Notify(ctx, msg); err != nil {
		return nil, fmt.Errorf("watcher: notify %s: %w", entry.ID, err)
	}
	out.Status = StatusNotified

	if err := r.store.Save(ctx, cur.Advance(entry.ID)); err != nil {
		return out, fmt.Errorf("watcher: save cursor after posting %s: %w", entry.ID, err)
	}
	log.Info("watcher: alert posted", "previous_id", cur.LastSeenID,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// body picks the text handed to the summarizer. Markdown rendering falls
// back to the normalized text on failure.
func (r *Runner) body(e *release.Entry) string {
	if r.markdown == nil || e.HTML == "" {
		return e.Body
	}
	md, err := r.markdown.Convert(e.HTML, r.config.Page.URL)
	if err != nil || md == "" {
		r.logger.Warn("watcher: markdown rendering failed, using text", "release_id", e.ID, "error", err)
		return e.Body
	}
	md, _ = release.Truncate(md, release.MaxBodyChars)
	return md
}

// bodyFetcher adapts the fetch package to Fetcher and logs the page
// fingerprint (hash, ETag, Last-Modified).
type bodyFetcher struct {
	f interface {
		Fetch(ctx context.Context, url string) (*fetch.Result, error)
	}
	logger *slog.Logger
}

func (b bodyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := b.f.Fetch(ctx, url)
	if err != nil {
		if res != nil && res.StatusCode != 0 {
			b.logger.Debug("watcher: page fetch failed", "url", url, "status", res.StatusCode)
		}
		return nil, err
	}
	b.logger.Debug("watcher: page fetched",
		"url", url, "status", res.StatusCode, "size", len(res.Body),
		"hash", res.Hash, "etag", res.ETag, "last_modified", res.LastMod)
	return res.Body, nil
}
