package pipeline

import (
	"context"

	"pulseboard/internal/core"
	"pulseboard/internal/llm"
)

// NewsSource loads the cleaned article list for a theme
type NewsSource interface {
	// Fetch returns an error only when the upstream call failed for good
	Fetch(ctx context.Context, theme string) ([]core.Article, error)
}

// PriceSource loads end-of-day closes for a ticker
type PriceSource interface {
	// History never fails; an unavailable series is empty
	History(ctx context.Context, ticker string) []core.PricePoint
}

// Enricher asks a language model for a structured theme digest
type Enricher interface {
	Name() string

	// Enrich reports failure through the Result rather than an error so the
	// caller always has a rule-based fallback
	Enrich(ctx context.Context, theme string, articles []core.Article, tickers []string) llm.Result
}

// Observer is notified as themes and runs finish. Implementations must not
// fail the run: they log their own errors.
type Observer interface {
	ThemeFinished(ctx context.Context, outcome ThemeOutcome)
	RunFinished(ctx context.Context, summary RunSummary)
}
