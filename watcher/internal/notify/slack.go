// CLAUDE:SUMMARY Slack incoming-webhook notifier: one JSON POST per alert, non-2xx is fatal, no retry.
// Package notify posts release summaries to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/relwatch/horosafe"
)

// ErrStatus is returned (wrapped) when the webhook answers with a non-2xx code.
var ErrStatus = errors.New("notify: unexpected status")

// DefaultTitlePrefix is prepended to the bolded title line.
const DefaultTitlePrefix = "Braze Release Notes: "

// Message is one alert.
type Message struct {
	Title     string
	Summary   string
	SourceURL string
}

// Text renders the message as a single mrkdwn block: bolded title line,
// summary, then a link back to the source page.
func (m Message) Text(prefix string) string {
	var b strings.Builder
	b.WriteString("*")
	b.WriteString(escape(prefix + m.Title))
	b.WriteString("*\n\n")
	b.WriteString(m.Summary)
	b.WriteString("\n\nSource: ")
	b.WriteString(m.SourceURL)
	return b.String()
}

type payload struct {
	Text string `json:"text"`
}

// Slack posts to an incoming-webhook URL.
type Slack struct {
	url         string
	titlePrefix string
	client      *http.Client
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures a Slack notifier.
type Option func(*Slack)

// WithTimeout sets the per-call deadline. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Slack) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTitlePrefix overrides DefaultTitlePrefix. An empty prefix is allowed.
func WithTitlePrefix(p string) Option {
	return func(s *Slack) { s.titlePrefix = p }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Slack) { s.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Slack) { s.logger = l }
}

// NewSlack creates a notifier targeting webhookURL.
func NewSlack(webhookURL string, opts ...Option) *Slack {
	s := &Slack{
		url:         webhookURL,
		titlePrefix: DefaultTitlePrefix,
		client:      &http.Client{},
		timeout:     30 * time.Second,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render returns the text that Notify would post.
func (s *Slack) Render(m Message) string {
	return m.Text(s.titlePrefix)
}

// Notify performs a single POST. Transport errors and non-2xx statuses are
// returned as is; the caller decides what a failure means.
func (s *Slack) Notify(ctx context.Context, m Message) error {
	body, err := json.Marshal(payload{Text: s.Render(m)})
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := horosafe.LimitedReadAll(resp.Body, 512)
		return fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body)

	s.logger.Debug("notify: posted", "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// escape applies the three mrkdwn control-character escapes.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
