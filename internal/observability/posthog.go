package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"
)

const (
	EventThemeGenerated = "theme_generated"
	EventThemeFailed    = "theme_failed"
	EventRunCompleted   = "run_completed"

	systemDistinctID = "pulseboard"
)

// PostHogConfig holds analytics settings.
type PostHogConfig struct {
	Enabled bool
	APIKey  string
	Host    string
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// PostHogClient wraps the PostHog SDK for run analytics.
// A disabled client accepts every call and sends nothing.
type PostHogClient struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// Disabled returns a client that drops every event.
func Disabled() *PostHogClient {
	return &PostHogClient{log: slog.Default()}
}

// NewPostHogClient creates a new PostHog analytics client
func NewPostHogClient(cfg PostHogConfig, log *slog.Logger) (*PostHogClient, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled {
		return &PostHogClient{log: log}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &PostHogClient{
		client:  client,
		enabled: true,
		log:     log,
	}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(ctx context.Context, event string, properties EventProperties) error {
	if !p.enabled {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	if err := p.client.Enqueue(posthog.Capture{
		DistinctId: systemDistinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		p.log.Warn("analytics event dropped", "event", event, "error", err)
		return err
	}
	return nil
}

// TrackThemeGenerated records a theme document that was written.
func (p *PostHogClient) TrackThemeGenerated(ctx context.Context, runID, theme string, articleCount, clusterCount int, enrichment string) error {
	return p.Capture(ctx, EventThemeGenerated, EventProperties{
		"run_id":        runID,
		"theme":         theme,
		"article_count": articleCount,
		"cluster_count": clusterCount,
		"enrichment":    enrichment, // "llm" or "rule-based"
	})
}

// TrackThemeFailed records a theme that produced no document.
func (p *PostHogClient) TrackThemeFailed(ctx context.Context, runID, theme string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return p.Capture(ctx, EventThemeFailed, EventProperties{
		"run_id": runID,
		"theme":  theme,
		"error":  msg,
	})
}

// TrackRunCompleted records the end of a generation run.
func (p *PostHogClient) TrackRunCompleted(ctx context.Context, runID, date string, succeeded, failed int, durationMs int64) error {
	return p.Capture(ctx, EventRunCompleted, EventProperties{
		"run_id":      runID,
		"date":        date,
		"succeeded":   succeeded,
		"failed":      failed,
		"duration_ms": durationMs,
	})
}

// Shutdown flushes pending events and closes the client.
func (p *PostHogClient) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	return p.client.Close()
}
