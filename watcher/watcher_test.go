package watcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/relwatch/horosafe"
	"github.com/hazyhaar/relwatch/release"
)

const januaryPage = `<html><body>
<div class="details_title" id="january-15-2026-release"><h2>January 15, 2026</h2></div>
<details><summary>Show</summary><p>Canvas Flow is GA.</p></details>
<div class="details_title" id="january-8-2026-release"><h2>January 8, 2026</h2></div>
<details><summary>Show</summary><p>Older news.</p></details>
</body></html>`

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

type fakeSummarizer struct {
	inputs []string
	err    error
}

func (s *fakeSummarizer) Summarize(_ context.Context, body string) (string, error) {
	s.inputs = append(s.inputs, body)
	if s.err != nil {
		return "", s.err
	}
	return "*Need to know*\n- Canvas Flow (GA)", nil
}

type fakeNotifier struct {
	msgs []Message
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, m Message) error {
	n.msgs = append(n.msgs, m)
	return n.err
}

type harness struct {
	cfg        Config
	cursorPath string
	fetcher    *fakeFetcher
	summarizer *fakeSummarizer
	notifier   *fakeNotifier
}

func newHarness(t *testing.T, page string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		cursorPath: filepath.Join(dir, "state.json"),
		fetcher:    &fakeFetcher{body: page},
		summarizer: &fakeSummarizer{},
		notifier:   &fakeNotifier{},
	}
	h.cfg = Config{
		Page:   PageConfig{URL: "https://www.braze.com/docs/releases/home"},
		Cursor: CursorConfig{Path: h.cursorPath},
	}
	return h
}

func (h *harness) runner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	base := []Option{
		WithFetcher(h.fetcher),
		WithSummarizer(h.summarizer),
		WithNotifier(h.notifier),
	}
	r, err := New(h.cfg, nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func (h *harness) writeCursor(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(h.cursorPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) readCursor(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.cursorPath)
	if err != nil {
		t.Fatalf("read cursor: %v", err)
	}
	return string(data)
}

func TestRunOnce_NewRelease(t *testing.T) {
	// WHAT: The January 8 → January 15 scenario end to end.
	// WHY: Summarize once, notify once with the derived title, then advance.
	h := newHarness(t, januaryPage)
	h.writeCursor(t, `{"last_seen_id": "january-8-2026-release"}`)

	out, err := h.runner(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != StatusNotified {
		t.Errorf("status: got %q", out.Status)
	}
	if out.Previous != "january-8-2026-release" {
		t.Errorf("previous: got %q", out.Previous)
	}

	if len(h.summarizer.inputs) != 1 {
		t.Fatalf("summarizer calls: got %d, want 1", len(h.summarizer.inputs))
	}
	if got := h.summarizer.inputs[0]; got != "Show\nCanvas Flow is GA." {
		t.Errorf("summarizer input: got %q", got)
	}

	if len(h.notifier.msgs) != 1 {
		t.Fatalf("notifier calls: got %d, want 1", len(h.notifier.msgs))
	}
	msg := h.notifier.msgs[0]
	if msg.Title != "January 15 2026 Release" {
		t.Errorf("title: got %q", msg.Title)
	}
	if msg.SourceURL != "https://www.braze.com/docs/releases/home" {
		t.Errorf("source: got %q", msg.SourceURL)
	}
	if msg.Summary != "*Need to know*\n- Canvas Flow (GA)" {
		t.Errorf("summary: got %q", msg.Summary)
	}

	want := "{\n  \"last_seen_id\": \"january-15-2026-release\"\n}\n"
	if got := h.readCursor(t); got != want {
		t.Errorf("cursor file:\ngot  %q\nwant %q", got, want)
	}
}

func TestRunOnce_AbsentCursor(t *testing.T) {
	h := newHarness(t, januaryPage)

	out, err := h.runner(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != StatusNotified || out.Previous != "" {
		t.Errorf("outcome: %+v", out)
	}
	if !strings.Contains(h.readCursor(t), "january-15-2026-release") {
		t.Error("cursor not advanced")
	}
}

func TestRunOnce_Unchanged(t *testing.T) {
	// WHAT: Same id as the cursor → no summarize, no notify, no rewrite.
	// WHY: Re-posting an already announced release is the failure users see.
	h := newHarness(t, januaryPage)
	original := `{"last_seen_id":"january-15-2026-release"}`
	h.writeCursor(t, original)

	out, err := h.runner(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != StatusUnchanged {
		t.Errorf("status: got %q", out.Status)
	}
	if len(h.summarizer.inputs) != 0 || len(h.notifier.msgs) != 0 {
		t.Errorf("calls: summarize=%d notify=%d", len(h.summarizer.inputs), len(h.notifier.msgs))
	}
	if got := h.readCursor(t); got != original {
		t.Errorf("cursor file rewritten: %q", got)
	}
}

func TestRunOnce_NotifyFailureKeepsCursor(t *testing.T) {
	// WHAT: A failed post returns an error and leaves the cursor file as is.
	// WHY: The next run must retry the same release instead of skipping it.
	h := newHarness(t, januaryPage)
	original := `{"last_seen_id": "january-8-2026-release"}`
	h.writeCursor(t, original)
	boom := errors.New("notify: unexpected status: 500")
	h.notifier.err = boom

	_, err := h.runner(t).RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected notifier error, got %v", err)
	}
	if len(h.summarizer.inputs) != 1 || len(h.notifier.msgs) != 1 {
		t.Errorf("calls: summarize=%d notify=%d", len(h.summarizer.inputs), len(h.notifier.msgs))
	}
	if got := h.readCursor(t); got != original {
		t.Errorf("cursor changed: %q", got)
	}
}

func TestRunOnce_SummarizeFailure(t *testing.T) {
	h := newHarness(t, januaryPage)
	h.summarizer.err = errors.New("rate limited")

	if _, err := h.runner(t).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(h.notifier.msgs) != 0 {
		t.Error("notifier must not be called")
	}
	if _, err := os.Stat(h.cursorPath); !os.IsNotExist(err) {
		t.Error("cursor must not be written")
	}
}

func TestRunOnce_NotFound(t *testing.T) {
	// WHAT: A page matching neither strategy is fatal and touches nothing.
	h := newHarness(t, `<html><body><h2>Welcome</h2><p>Nothing here.</p></body></html>`)

	_, err := h.runner(t).RunOnce(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not detect latest release section") {
		t.Errorf("error should be descriptive: %v", err)
	}
	if len(h.summarizer.inputs) != 0 || len(h.notifier.msgs) != 0 {
		t.Error("no collaborator may be called")
	}
	if _, err := os.Stat(h.cursorPath); !os.IsNotExist(err) {
		t.Error("cursor must not be written")
	}
}

func TestRunOnce_FetchFailure(t *testing.T) {
	h := newHarness(t, "")
	h.fetcher.err = errors.New("fetch: unexpected status: 503")

	_, err := h.runner(t).RunOnce(context.Background())
	if !errors.Is(err, h.fetcher.err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(h.summarizer.inputs) != 0 {
		t.Error("summarizer must not be called")
	}
}

func TestRunOnce_CapsBody(t *testing.T) {
	// WHAT: A 25,000-character release body reaches the summarizer as 20,000.
	long := strings.Repeat("a", 25000)
	page := `<html><body><div class="details_title" id="big-2026-release"></div><details>` + long + `</details></body></html>`
	h := newHarness(t, page)

	if _, err := h.runner(t).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n := len([]rune(h.summarizer.inputs[0])); n != release.MaxBodyChars {
		t.Errorf("summarizer input length: got %d, want %d", n, release.MaxBodyChars)
	}
}

func TestRunOnce_HeadingFallback(t *testing.T) {
	page := `<html><body>
<h2>Release notes</h2>
<h3>March 3, 2026 Release</h3><p>Feature flags (Beta).</p>
<h3>February 20, 2026 Release</h3><p>Older.</p>
</body></html>`
	h := newHarness(t, page)

	out, err := h.runner(t).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Entry.Strategy != "heading" || out.Entry.ID != "march-3-2026-release" {
		t.Errorf("entry: %+v", out.Entry)
	}
	if h.notifier.msgs[0].Title != "March 3, 2026 Release" {
		t.Errorf("title: got %q", h.notifier.msgs[0].Title)
	}
	if strings.Contains(h.summarizer.inputs[0], "Older") {
		t.Errorf("section leaked into the next release: %q", h.summarizer.inputs[0])
	}
}

func TestRunOnce_DryRun(t *testing.T) {
	// WHAT: Dry run prints the alert and never notifies or writes the cursor.
	h := newHarness(t, januaryPage)
	var buf bytes.Buffer
	r, err := New(h.cfg, nil, WithFetcher(h.fetcher), WithSummarizer(h.summarizer), WithDryRun(&buf))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != StatusDryRun {
		t.Errorf("status: got %q", out.Status)
	}
	want := "*Braze Release Notes: January 15 2026 Release*\n\n*Need to know*\n- Canvas Flow (GA)\n\nSource: https://www.braze.com/docs/releases/home\n"
	if buf.String() != want {
		t.Errorf("printed:\ngot  %q\nwant %q", buf.String(), want)
	}
	if _, err := os.Stat(h.cursorPath); !os.IsNotExist(err) {
		t.Error("dry run must not write the cursor")
	}
}

func TestRunOnce_MarkdownFormat(t *testing.T) {
	page := `<html><body><div class="details_title" id="april-2026-release"></div>` +
		`<details><p>Use <strong>Canvas</strong> <a href="/docs/canvas">docs</a>.</p><script>x()</script></details></body></html>`
	h := newHarness(t, page)
	h.cfg.Extract.Format = "markdown"

	if _, err := h.runner(t).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	got := h.summarizer.inputs[0]
	if !strings.Contains(got, "**Canvas**") {
		t.Errorf("expected bold markdown, got %q", got)
	}
	if strings.Contains(got, "x()") {
		t.Errorf("script leaked: %q", got)
	}
}

func TestRunOnce_SQLiteCursor(t *testing.T) {
	h := newHarness(t, januaryPage)
	h.cfg.Cursor = CursorConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "relwatch.db")}
	r := h.runner(t)

	out, err := r.RunOnce(context.Background())
	if err != nil || out.Status != StatusNotified {
		t.Fatalf("first run: %+v, %v", out, err)
	}
	out, err = r.RunOnce(context.Background())
	if err != nil || out.Status != StatusUnchanged {
		t.Fatalf("second run: %+v, %v", out, err)
	}
	if len(h.notifier.msgs) != 1 {
		t.Errorf("notifier calls: got %d, want 1", len(h.notifier.msgs))
	}
}

func TestNew_RequiresSecrets(t *testing.T) {
	_, err := New(Config{Cursor: CursorConfig{Path: filepath.Join(t.TempDir(), "s.json")}}, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"api_key", "webhook_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestNew_BuildsDefaults(t *testing.T) {
	cfg := Config{
		Cursor:     CursorConfig{Path: filepath.Join(t.TempDir(), "s.json")},
		Summarizer: SummarizerConfig{APIKey: "sk-test"},
		Notifier:   NotifierConfig{WebhookURL: "https://hooks.slack.com/services/T/B/X"},
	}
	r, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if r.fetcher == nil || r.store == nil || r.summarizer == nil || r.notifier == nil {
		t.Errorf("collaborators not built: %+v", r)
	}
	if r.markdown != nil {
		t.Error("markdown renderer should be off by default")
	}
}

func TestJob_Report(t *testing.T) {
	h := newHarness(t, januaryPage)
	r := h.runner(t)

	rep, err := r.job(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Result != "notified" || rep.ReleaseID != "january-15-2026-release" {
		t.Errorf("report: %+v", rep)
	}

	h.fetcher.err = errors.New("down")
	rep, err = r.job(context.Background())
	if err == nil || rep.Result != "failed" {
		t.Errorf("failed report: %+v, %v", rep, err)
	}
}

func TestScheduler_InvalidCron(t *testing.T) {
	h := newHarness(t, januaryPage)
	h.cfg.Schedule.Cron = "not a cron"
	if err := h.runner(t).Serve(context.Background()); err == nil {
		t.Fatal("expected invalid cron error")
	}
}

func pageServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunOnce_AllowPrivatePage(t *testing.T) {
	// WHAT: page.allow_private lets the built-in fetcher reach an intranet
	// (here loopback) page, and the fetch is logged with its fingerprint.
	// WHY: Without the flag every private page URL is refused.
	srv := pageServer(t, januaryPage)
	h := newHarness(t, "")
	h.cfg.Page.URL = srv.URL
	h.cfg.Page.AllowPrivate = true

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r, err := New(h.cfg, logger, WithSummarizer(h.summarizer), WithNotifier(h.notifier))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Status != StatusNotified {
		t.Errorf("status: got %q", out.Status)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(januaryPage)))
	for _, want := range []string{`"msg":"watcher: page fetched"`, `"hash":"` + hash + `"`, `"etag":"\"v1\""`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %s:\n%s", want, logs.String())
		}
	}
}

func TestRunOnce_PrivatePageBlockedByDefault(t *testing.T) {
	srv := pageServer(t, januaryPage)
	h := newHarness(t, "")
	h.cfg.Page.URL = srv.URL

	r, err := New(h.cfg, nil, WithSummarizer(h.summarizer), WithNotifier(h.notifier))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	_, err = r.RunOnce(context.Background())
	if !errors.Is(err, horosafe.ErrSSRF) {
		t.Fatalf("expected ErrSSRF, got %v", err)
	}
	if len(h.summarizer.inputs) != 0 || len(h.notifier.msgs) != 0 {
		t.Error("no collaborator may be called")
	}
}
