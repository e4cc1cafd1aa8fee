// CLAUDE:SUMMARY LLM summarizer over langchaingo: fixed prompt, per-call deadline, trimmed and capped output.
// Package summarize turns extracted release text into a chat-ready summary
// with a language model. The model output is not validated; it is trimmed
// and capped, then passed through.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptySummary is returned when the model answers with nothing.
var ErrEmptySummary = errors.New("summarize: model returned an empty summary")

// Config configures the summarizer.
type Config struct {
	Model   string        // model name. Default: gpt-5-mini.
	APIKey  string        // provider token.
	BaseURL string        // optional OpenAI-compatible endpoint.
	Timeout time.Duration // per-call deadline. Default: 60s.
	// MaxChars caps the returned summary. Default: 3000.
	MaxChars int
	// MaxTokens bounds the completion. 0 leaves the provider default.
	MaxTokens int
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = "gpt-5-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 3000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Summarizer calls an llms.Model with the fixed prompt.
type Summarizer struct {
	model  llms.Model
	config Config
}

// New wraps an existing model.
func New(model llms.Model, cfg Config) *Summarizer {
	cfg.defaults()
	return &Summarizer{model: model, config: cfg}
}

// NewOpenAI builds a Summarizer backed by the OpenAI provider.
func NewOpenAI(cfg Config) (*Summarizer, error) {
	cfg.defaults()
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("summarize: openai client: %w", err)
	}
	return New(llm, cfg), nil
}

// Summarize sends body with the fixed instructions and returns the model's
// answer, trimmed and capped at MaxChars characters.
func (s *Summarizer) Summarize(ctx context.Context, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var opts []llms.CallOption
	if s.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.config.MaxTokens))
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, s.model, BuildPrompt(body), opts...)
	if err != nil {
		return "", fmt.Errorf("summarize: generate: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptySummary
	}
	capped := capRunes(out, s.config.MaxChars)

	s.config.Logger.Debug("summarize: done",
		"model", s.config.Model, "input_len", len(body), "output_len", len(capped),
		"capped", len(capped) != len(out), "duration_ms", time.Since(start).Milliseconds())
	return capped, nil
}

func capRunes(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
