package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"pulseboard/internal/config"
	"pulseboard/internal/fetch"
	"pulseboard/internal/llm"
	"pulseboard/internal/news"
	"pulseboard/internal/observability"
	"pulseboard/internal/prices"
	"pulseboard/internal/store"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	cfg      *config.Config
	config   *Config
	log      *slog.Logger
	skipLLM  bool
	client   *http.Client
	closers  []func(ctx context.Context) error
	observed []Observer
}

// NewBuilder creates a new pipeline builder from loaded configuration
func NewBuilder(cfg *config.Config, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	pc := DefaultConfig()
	pc.DataDir = cfg.Output.DataDir
	return &Builder{cfg: cfg, config: pc, log: log}
}

// WithDataDir overrides the output directory
func (b *Builder) WithDataDir(dir string) *Builder {
	if dir != "" {
		b.config.DataDir = dir
	}
	return b
}

// WithDate overrides the UTC date documents are written under
func (b *Builder) WithDate(date string) *Builder {
	b.config.Date = date
	return b
}

// WithRunID sets the run id; a random one is generated otherwise
func (b *Builder) WithRunID(id string) *Builder {
	b.config.RunID = id
	return b
}

// WithoutLLM disables model enrichment even when a key is configured
func (b *Builder) WithoutLLM() *Builder {
	b.skipLLM = true
	return b
}

// WithHTTPClient replaces the HTTP client shared by every upstream call
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.client = c
	return b
}

// WithObserver adds an observer in addition to the configured ones
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observed = append(b.observed, o)
	return b
}

// RunID returns the id the built pipeline tags its logs and history with
func (b *Builder) RunID() string {
	return b.config.RunID
}

// Build constructs a fully configured Pipeline. The only fatal condition is
// a missing NewsAPI key; history and analytics failures downgrade to warnings.
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	if err := b.cfg.RequireNewsAPIKey(); err != nil {
		return nil, err
	}
	if b.config.RunID == "" {
		b.config.RunID = uuid.NewString()
	}
	log := b.log.With("run_id", b.config.RunID)

	client := b.client
	if client == nil {
		client = &http.Client{Timeout: b.cfg.Fetch.Timeout}
	}
	fetcher := fetch.New(client, fetch.Options{
		MaxAttempts: b.cfg.Fetch.MaxAttempts,
		BaseDelay:   b.cfg.Fetch.BaseDelay,
		MaxDelay:    b.cfg.Fetch.MaxDelay,
		MinSpacing:  b.cfg.Fetch.MinSpacing,
	}, log)

	newsClient, err := news.NewClient(fetcher, news.Config{
		APIKey:     b.cfg.News.APIKey,
		BaseURL:    b.cfg.News.BaseURL,
		PageSize:   b.cfg.News.PageSize,
		Language:   b.cfg.News.Language,
		StripHTML:  b.cfg.News.StripHTML,
		MinSpacing: b.cfg.Fetch.MinSpacing,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create news client: %w", err)
	}

	priceLoader := prices.NewLoader(fetcher, prices.Config{
		BaseURL:    b.cfg.Prices.BaseURL,
		Window:     b.cfg.Prices.Window,
		MinSpacing: b.cfg.Prices.MinSpacing,
	}, log)

	var enricher Enricher
	switch {
	case b.skipLLM:
		log.Info("model enrichment disabled by flag")
	case !b.cfg.LLMEnabled():
		log.Warn("no model API key configured, using rule-based fallback", "provider", b.cfg.LLM.Provider)
	default:
		gen, err := llm.New(ctx, llm.Config{
			Provider:    b.cfg.LLM.Provider,
			APIKey:      b.cfg.LLM.APIKey,
			Model:       b.cfg.LLM.Model,
			BaseURL:     b.cfg.LLM.BaseURL,
			Temperature: b.cfg.LLM.Temperature,
			MaxTokens:   b.cfg.LLM.MaxTokens,
			MinSpacing:  b.cfg.LLM.MinSpacing,
		}, fetcher, log)
		if err != nil {
			log.Warn("model provider unavailable, using rule-based fallback", "error", err)
		} else {
			enricher = llm.NewEnricher(gen, log)
			log.Info("model enrichment enabled", "provider", gen.Name())
		}
	}

	observers := b.observers(ctx, log)
	return NewPipeline(newsClient, priceLoader, enricher, b.config, log, observers...), nil
}

func (b *Builder) observers(ctx context.Context, log *slog.Logger) []Observer {
	observers := append([]Observer{}, b.observed...)

	if dsn := b.cfg.History.DSN; dsn != "" {
		s, err := store.Open(ctx, dsn)
		if err != nil {
			log.Warn("run history unavailable", "error", err)
		} else {
			b.closers = append(b.closers, func(context.Context) error { return s.Close() })
			observers = append(observers, NewStoreObserver(s, log))
		}
	}

	ph := b.cfg.Analytics.PostHog
	if ph.Enabled {
		client, err := observability.NewPostHogClient(observability.PostHogConfig{
			Enabled: ph.Enabled,
			APIKey:  ph.APIKey,
			Host:    ph.Host,
		}, log)
		if err != nil {
			log.Warn("analytics unavailable", "error", err)
		} else {
			b.closers = append(b.closers, client.Shutdown)
			observers = append(observers, NewAnalyticsObserver(client, log))
		}
	}
	return observers
}

// Close releases the history store and flushes analytics.
func (b *Builder) Close(ctx context.Context) {
	for _, c := range b.closers {
		if err := c(ctx); err != nil {
			b.log.Warn("shutdown error", "error", err)
		}
	}
	b.closers = nil
}
