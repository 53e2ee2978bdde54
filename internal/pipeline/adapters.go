package pipeline

import (
	"context"
	"log/slog"

	"pulseboard/internal/observability"
	"pulseboard/internal/store"
)

// RunRecorder persists theme outcomes; *store.Store implements it.
type RunRecorder interface {
	RecordTheme(ctx context.Context, r store.Run) error
}

// StoreObserver writes one history row per theme.
type StoreObserver struct {
	recorder RunRecorder
	log      *slog.Logger
}

func NewStoreObserver(recorder RunRecorder, log *slog.Logger) *StoreObserver {
	if log == nil {
		log = slog.Default()
	}
	return &StoreObserver{recorder: recorder, log: log}
}

func (o *StoreObserver) ThemeFinished(ctx context.Context, outcome ThemeOutcome) {
	run := store.Run{
		RunID:        outcome.RunID,
		Theme:        outcome.Theme,
		Date:         outcome.Date,
		Status:       outcome.Status,
		ArticleCount: outcome.Articles,
		ClusterCount: outcome.Clusters,
		Enrichment:   outcome.Enrichment,
		FinishedAt:   outcome.FinishedAt,
	}
	if outcome.Err != nil {
		run.Error = outcome.Err.Error()
	}
	if err := o.recorder.RecordTheme(ctx, run); err != nil {
		o.log.Warn("failed to record run history", "theme", outcome.Theme, "error", err)
	}
}

func (o *StoreObserver) RunFinished(ctx context.Context, summary RunSummary) {}

// Analytics is the subset of the PostHog client the pipeline reports to.
type Analytics interface {
	TrackThemeGenerated(ctx context.Context, runID, theme string, articleCount, clusterCount int, enrichment string) error
	TrackThemeFailed(ctx context.Context, runID, theme string, cause error) error
	TrackRunCompleted(ctx context.Context, runID, date string, succeeded, failed int, durationMs int64) error
}

var _ Analytics = (*observability.PostHogClient)(nil)

// AnalyticsObserver forwards outcomes as product analytics events.
type AnalyticsObserver struct {
	client Analytics
	log    *slog.Logger
}

func NewAnalyticsObserver(client Analytics, log *slog.Logger) *AnalyticsObserver {
	if log == nil {
		log = slog.Default()
	}
	return &AnalyticsObserver{client: client, log: log}
}

func (o *AnalyticsObserver) ThemeFinished(ctx context.Context, outcome ThemeOutcome) {
	var err error
	if outcome.Status == store.StatusOK {
		err = o.client.TrackThemeGenerated(ctx, outcome.RunID, outcome.Theme, outcome.Articles, outcome.Clusters, outcome.Enrichment)
	} else {
		err = o.client.TrackThemeFailed(ctx, outcome.RunID, outcome.Theme, outcome.Err)
	}
	if err != nil {
		o.log.Debug("analytics event not sent", "theme", outcome.Theme, "error", err)
	}
}

func (o *AnalyticsObserver) RunFinished(ctx context.Context, summary RunSummary) {
	failed := len(summary.Themes) - len(summary.Succeeded)
	if err := o.client.TrackRunCompleted(ctx, summary.RunID, summary.Date, len(summary.Succeeded), failed, summary.Duration().Milliseconds()); err != nil {
		o.log.Debug("analytics event not sent", "event", observability.EventRunCompleted, "error", err)
	}
}
