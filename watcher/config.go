package watcher

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/relwatch/horosafe"
)

// Default values applied by Config.defaults.
const (
	DefaultPageURL     = "https://www.braze.com/docs/releases/home"
	DefaultUserAgent   = "braze-release-watcher/1.0"
	DefaultCursorPath  = "state.json"
	DefaultModel       = "gpt-5-mini"
	DefaultTitlePrefix = "Braze Release Notes: "
	DefaultTimeout     = 30 * time.Second
)

// Config is the full watcher configuration.
type Config struct {
	Page       PageConfig       `yaml:"page"`
	Extract    ExtractConfig    `yaml:"extract"`
	Cursor     CursorConfig     `yaml:"cursor"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	LogLevel   string           `yaml:"log_level"`
}

// PageConfig describes the release-notes page and how to fetch it.
type PageConfig struct {
	URL       string        `yaml:"url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Mode      string        `yaml:"mode"`       // http | browser
	RemoteURL string        `yaml:"remote_url"` // browser mode: external Chrome DevTools URL
	// AllowPrivate lifts the public-address check on the page and its
	// redirects, for pages hosted on an intranet.
	AllowPrivate bool `yaml:"allow_private"`
}

// ExtractConfig selects the body format handed to the summarizer.
type ExtractConfig struct {
	Format string `yaml:"format"` // text | markdown
}

// CursorConfig selects the cursor backend.
type CursorConfig struct {
	Backend string `yaml:"backend"` // file | sqlite
	Path    string `yaml:"path"`
	Name    string `yaml:"name"` // sqlite row name
}

// SummarizerConfig configures the language model call.
type SummarizerConfig struct {
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"max_chars"`
}

// NotifierConfig configures the chat webhook.
type NotifierConfig struct {
	WebhookURL  string        `yaml:"webhook_url"`
	Timeout     time.Duration `yaml:"timeout"`
	TitlePrefix string        `yaml:"title_prefix"`
}

// ScheduleConfig configures daemon mode.
type ScheduleConfig struct {
	Cron   string `yaml:"cron"`
	Listen string `yaml:"listen"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.Page.URL == "" {
		c.Page.URL = DefaultPageURL
	}
	if c.Page.UserAgent == "" {
		c.Page.UserAgent = DefaultUserAgent
	}
	if c.Page.Timeout <= 0 {
		c.Page.Timeout = DefaultTimeout
	}
	if c.Page.Mode == "" {
		c.Page.Mode = "http"
	}
	if c.Extract.Format == "" {
		c.Extract.Format = "text"
	}
	if c.Cursor.Backend == "" {
		c.Cursor.Backend = "file"
	}
	if c.Cursor.Path == "" {
		c.Cursor.Path = DefaultCursorPath
	}
	if c.Summarizer.Model == "" {
		c.Summarizer.Model = DefaultModel
	}
	if c.Summarizer.Timeout <= 0 {
		c.Summarizer.Timeout = DefaultTimeout
	}
	if c.Notifier.Timeout <= 0 {
		c.Notifier.Timeout = DefaultTimeout
	}
	if c.Notifier.TitlePrefix == "" {
		c.Notifier.TitlePrefix = DefaultTitlePrefix
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadConfig reads a YAML file (optional: an empty path means defaults
// only), applies environment overrides, then defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("watcher: read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("watcher: parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.defaults()
	return cfg, nil
}

// ApplyEnv overrides secrets and the page URL from the environment.
// Unset or blank variables leave the config untouched.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Summarizer.APIKey, "OPENAI_API_KEY")
	set(&c.Notifier.WebhookURL, "SLACK_WEBHOOK_URL")
	set(&c.Page.URL, "RELWATCH_PAGE_URL")
}

// Validate checks the fields a run needs. Secrets are only required for the
// collaborators that will actually be built: needLLM and needWebhook are
// false when a summarizer or notifier is injected, or in dry-run.
func (c *Config) Validate(needLLM, needWebhook bool) error {
	var errs []error
	if c.Page.URL == "" {
		errs = append(errs, errors.New("page.url is required"))
	}
	switch c.Page.Mode {
	case "http", "browser":
	default:
		errs = append(errs, fmt.Errorf("page.mode %q: use http or browser", c.Page.Mode))
	}
	switch c.Extract.Format {
	case "text", "markdown":
	default:
		errs = append(errs, fmt.Errorf("extract.format %q: use text or markdown", c.Extract.Format))
	}
	switch c.Cursor.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("cursor.backend %q: use file or sqlite", c.Cursor.Backend))
	}
	if c.Cursor.Path == "" {
		errs = append(errs, errors.New("cursor.path is required"))
	}
	if needLLM && c.Summarizer.APIKey == "" {
		errs = append(errs, errors.New("summarizer.api_key (or OPENAI_API_KEY) is required"))
	}
	if needWebhook && c.Notifier.WebhookURL == "" {
		errs = append(errs, errors.New("notifier.webhook_url (or SLACK_WEBHOOK_URL) is required"))
	}
	if c.Notifier.WebhookURL != "" {
		if _, err := horosafe.CheckHTTPURL(c.Notifier.WebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("notifier.webhook_url: %w", err))
		}
	}
	if c.Summarizer.BaseURL != "" {
		if _, err := horosafe.CheckHTTPURL(c.Summarizer.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("summarizer.base_url: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
