package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulseboard/internal/clustering"
	"pulseboard/internal/core"
	"pulseboard/internal/digest"
	"pulseboard/internal/manifest"
	"pulseboard/internal/render"
	"pulseboard/internal/store"
	"pulseboard/internal/themes"
)

// MaxTickers caps the stock rows per theme document.
const MaxTickers = 5

// Pipeline generates one document per theme and then updates the manifest.
// Themes run strictly one after another to stay under upstream rate limits.
type Pipeline struct {
	news      NewsSource
	prices    PriceSource
	enricher  Enricher // nil disables enrichment
	observers []Observer

	config *Config
	log    *slog.Logger
	now    func() time.Time
}

// Config holds pipeline configuration
type Config struct {
	DataDir string
	RunID   string
	// Date overrides the UTC calendar day documents are written under.
	Date string
	// MaxClusterURLs bounds article_urls on rule-based clusters.
	MaxClusterURLs int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:        "data",
		MaxClusterURLs: clustering.DefaultMaxURLs,
	}
}

// NewPipeline creates a new pipeline with all dependencies
func NewPipeline(news NewsSource, prices PriceSource, enricher Enricher, config *Config, log *slog.Logger, observers ...Observer) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxClusterURLs <= 0 {
		config.MaxClusterURLs = clustering.DefaultMaxURLs
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		news:      news,
		prices:    prices,
		enricher:  enricher,
		observers: observers,
		config:    config,
		log:       log,
		now:       time.Now,
	}
}

// ThemeOutcome describes how one theme fared in a run.
type ThemeOutcome struct {
	RunID      string
	Theme      string
	Date       string
	Status     string // store.StatusOK or store.StatusFailed
	Articles   int
	Clusters   int
	Enrichment string // store.EnrichmentLLM or store.EnrichmentRuleBased
	Path       string
	Err        error
	FinishedAt time.Time
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID        string
	Date         string
	Themes       []ThemeOutcome
	Succeeded    []string
	ManifestPath string
	StartTime    time.Time
	EndTime      time.Time
}

// Failed returns the outcomes that produced no document.
func (s RunSummary) Failed() []ThemeOutcome {
	var out []ThemeOutcome
	for _, o := range s.Themes {
		if o.Status == store.StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Run processes every theme in order, then merges the themes that wrote a
// document into the manifest. A theme failure is logged and skipped; only
// a manifest write failure or cancellation is returned as an error.
func (p *Pipeline) Run(ctx context.Context, list []themes.Theme) (*RunSummary, error) {
	start := p.now()
	date := p.config.Date
	if date == "" {
		date = core.DateString(start)
	}
	log := p.log.With("run_id", p.config.RunID)
	log.Info("generate started", "date", date, "themes", len(list))

	manifestPath := render.ManifestPath(p.config.DataDir)
	prev, err := manifest.Load(manifestPath)
	if err != nil {
		log.Warn("manifest unreadable, starting from empty", "path", manifestPath, "error", err)
	}

	summary := RunSummary{
		RunID:        p.config.RunID,
		Date:         date,
		ManifestPath: manifestPath,
		StartTime:    start,
	}

	for _, theme := range list {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before %s: %w", theme.Name, err)
		}

		outcome := p.runTheme(ctx, theme, date)
		summary.Themes = append(summary.Themes, outcome)
		if outcome.Status == store.StatusOK {
			summary.Succeeded = append(summary.Succeeded, theme.Name)
		}
		for _, o := range p.observers {
			o.ThemeFinished(ctx, outcome)
		}
	}

	next := manifest.Merge(prev, summary.Succeeded, date, p.now())
	if err := manifest.Save(manifestPath, next); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	log.Info("manifest updated", "path", manifestPath, "updated", len(summary.Succeeded))

	summary.EndTime = p.now()
	for _, o := range p.observers {
		o.RunFinished(ctx, summary)
	}

	log.Info("generate finished",
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Themes)-len(summary.Succeeded),
		"duration_ms", summary.Duration().Milliseconds())
	return &summary, nil
}

func (p *Pipeline) runTheme(ctx context.Context, theme themes.Theme, date string) ThemeOutcome {
	outcome := ThemeOutcome{
		RunID:      p.config.RunID,
		Theme:      theme.Name,
		Date:       date,
		Status:     store.StatusOK,
		Enrichment: store.EnrichmentRuleBased,
	}

	doc, enriched, err := p.ProcessTheme(ctx, theme, date)
	if err == nil {
		outcome.Path = render.ThemeDocumentPath(p.config.DataDir, date, theme.Name)
		err = render.WriteJSON(outcome.Path, doc)
	}
	outcome.FinishedAt = p.now()

	if err != nil {
		p.log.Warn("theme failed", "stage", "theme:"+theme.Name, "run_id", p.config.RunID, "error", err)
		outcome.Status = store.StatusFailed
		outcome.Path = ""
		outcome.Err = err
		return outcome
	}

	outcome.Articles = len(doc.News)
	outcome.Clusters = len(doc.Clusters)
	if enriched {
		outcome.Enrichment = store.EnrichmentLLM
	}
	p.log.Info("theme written", "stage", "theme:"+theme.Name, "path", outcome.Path, "articles", outcome.Articles)
	return outcome
}

// ProcessTheme builds the document for one theme without writing it. The
// bool reports whether model enrichment replaced the rule-based output.
// Only a news failure is returned as an error; price and model failures
// degrade to empty series and the rule-based baseline.
func (p *Pipeline) ProcessTheme(ctx context.Context, theme themes.Theme, date string) (core.ThemeDocument, bool, error) {
	articles, err := p.news.Fetch(ctx, theme.Name)
	if err != nil {
		return core.ThemeDocument{}, false, err
	}
	if articles == nil {
		articles = []core.Article{}
	}

	dg := digest.Build(articles)
	clusters := clustering.Build(articles, p.config.MaxClusterURLs)
	var explanations map[string]string
	var sentiment map[string]core.SentimentDirection

	tickers := theme.Tickers
	if len(tickers) > MaxTickers {
		tickers = tickers[:MaxTickers]
	}

	enriched := false
	if p.enricher != nil {
		stage := p.enricher.Name() + ":" + theme.Name
		res := p.enricher.Enrich(ctx, theme.Name, articles, tickers)
		if res.OK() {
			dg = res.Value.Digest
			clusters = res.Value.Clusters
			explanations = res.Value.TickerExplanations
			sentiment = res.Value.TickerSentiment
			enriched = true
			p.log.Info("OK (validated JSON)", "stage", stage)
		} else {
			p.log.Warn("FAILED, using rule-based fallback", "stage", stage, "error", res.Err.Error())
		}
	} else {
		p.log.Info("no model configured, using rule-based digest", "stage", "llm:"+theme.Name)
	}
	dg, clusters = nonNil(dg, clusters)

	var topBullet, topCluster string
	if len(dg.Bullets) > 0 {
		topBullet = dg.Bullets[0]
	}
	if len(clusters) > 0 {
		topCluster = clusters[0].Title
	}

	stocks := make([]core.StockEntry, 0, len(tickers))
	for _, ticker := range tickers {
		history := p.prices.History(ctx, ticker)
		stocks = append(stocks, StockEntry(
			ticker,
			history,
			ComposeExplanation(explanations[ticker], topBullet, topCluster),
			SentimentFor(sentiment, ticker),
		))
	}

	return core.ThemeDocument{
		Theme:          theme.Name,
		Date:           date,
		LastUpdatedUTC: core.FormatTimestamp(p.now()),
		News:           articles,
		Digest:         dg,
		Clusters:       clusters,
		Stocks:         stocks,
		Disclaimer:     core.Disclaimer,
	}, enriched, nil
}

// nonNil keeps empty lists as [] in the written JSON.
func nonNil(dg core.Digest, clusters []core.Cluster) (core.Digest, []core.Cluster) {
	if dg.Bullets == nil {
		dg.Bullets = []string{}
	}
	if dg.Insights == nil {
		dg.Insights = []string{}
	}
	if clusters == nil {
		clusters = []core.Cluster{}
	}
	for i := range clusters {
		if clusters[i].ArticleURLs == nil {
			clusters[i].ArticleURLs = []string{}
		}
	}
	return dg, clusters
}
