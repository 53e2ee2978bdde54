// Package llm asks a chat model for a structured theme digest and validates
// the untrusted JSON it returns.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulseboard/internal/fetch"
)

// Provider names accepted in configuration.
const (
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderAnthropic   = "anthropic"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 900
	DefaultMinSpacing  = 1300 * time.Millisecond
)

// Request is one structured generation call.
type Request struct {
	Theme   string
	Attempt string // "a1" or "a2"
	Prompt  string
	Tickers []string
}

// Generator returns the raw model text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name is the short provider tag used in log stages, e.g. "hf".
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	MinSpacing  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderHuggingFace
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MinSpacing == 0 {
		c.MinSpacing = DefaultMinSpacing
	}
	return c
}

// New builds the configured generator. HTTP based providers share f for pacing.
func New(ctx context.Context, cfg Config, f *fetch.Fetcher, log *slog.Logger) (Generator, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm provider %s: missing API key", cfg.Provider)
	}
	if log == nil {
		log = slog.Default()
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderHuggingFace, "hf":
		return NewHuggingFace(f, cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg, log)
	case ProviderAnthropic:
		return NewAnthropic(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
