package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pulseboard/internal/core"
)

// Enricher runs the two-attempt structured generation for a theme.
type Enricher struct {
	gen Generator
	log *slog.Logger
}

// NewEnricher wraps a generator.
func NewEnricher(gen Generator, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{gen: gen, log: log}
}

// Name returns the provider tag.
func (e *Enricher) Name() string { return e.gen.Name() }

// Enrich asks the model for a digest. A payload that fails to parse or
// validate is retried once with a stricter prompt. Transport errors end the
// attempt immediately since the fetcher has already retried them.
func (e *Enricher) Enrich(ctx context.Context, theme string, articles []core.Article, tickers []string) Result {
	prompt := BuildPrompt(theme, articles, tickers)

	first := e.attempt(ctx, theme, "a1", prompt, tickers)
	if first.OK() || !isInvalidOutput(first.Err) {
		return first
	}
	e.log.Warn("invalid model output, retrying with strict prompt",
		"stage", fmt.Sprintf("%s:%s:a1", e.gen.Name(), theme),
		"reason", first.Err.Error())

	second := e.attempt(ctx, theme, "a2", StrictPrefix+prompt, tickers)
	if second.OK() || !isInvalidOutput(second.Err) {
		return second
	}

	return Failure(&InvalidOutputError{Reason: fmt.Sprintf("[%s:%s] invalid output after retry: %s / %s",
		e.gen.Name(), theme, first.Err.Error(), second.Err.Error())})
}

func (e *Enricher) attempt(ctx context.Context, theme, attempt, prompt string, tickers []string) Result {
	text, err := e.gen.Generate(ctx, Request{Theme: theme, Attempt: attempt, Prompt: prompt, Tickers: tickers})
	if err != nil {
		return Failure(fmt.Errorf("[%s:%s:%s] %w", e.gen.Name(), theme, attempt, err))
	}
	payload, err := ParsePayload(text)
	if err != nil {
		return Failure(err)
	}
	return Validate(payload, tickers)
}

func isInvalidOutput(err error) bool {
	var inv *InvalidOutputError
	return errors.As(err, &inv)
}
