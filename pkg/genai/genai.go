// Package genai talks to hosted text generation models.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LohithReddy3/ai-daily/internal/metrics"
)

var (
	// ErrNotConfigured means no credentials were supplied for the provider.
	ErrNotConfigured = errors.New("generative provider not configured")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("empty generative response")
)

// Request is a single prompt.
type Request struct {
	System    string
	Prompt    string
	JSON      bool // ask for a JSON object response where the provider supports it
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "openai", "gemini" or "anthropic"
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration

	BreakerFailures int
	BreakerCooldown time.Duration
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// New builds the configured provider wrapped in metrics and a circuit
// breaker. It returns ErrNotConfigured when no API key is set.
func New(cfg Config) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	var g Generator
	switch cfg.Provider {
	case "openai", "":
		g = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	case "gemini":
		base := cfg.BaseURL
		if base == "" {
			base = geminiBaseURL
		}
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "gpt-") {
			model = "gemini-2.0-flash"
		}
		g = NewOpenAI(cfg.APIKey, model, base, cfg.Timeout)
	case "anthropic":
		g = NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown generative provider %q", cfg.Provider)
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return NewBreaker(Instrument(provider, g), cfg.BreakerFailures, cfg.BreakerCooldown), nil
}

// Instrument records request counts and latency for g.
func Instrument(provider string, g Generator) Generator {
	return &instrumented{provider: provider, next: g}
}

type instrumented struct {
	provider string
	next     Generator
}

func (i *instrumented) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, req)
	metrics.LLMDuration.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequests.WithLabelValues(i.provider, status).Inc()
	return out, err
}

// ExtractJSON pulls a JSON object out of a model reply, dropping markdown
// code fences and any prose around the outermost braces.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		} else {
			raw = strings.TrimPrefix(raw, "```")
		}
		if end := strings.LastIndex(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
		raw = strings.TrimSpace(raw)
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
