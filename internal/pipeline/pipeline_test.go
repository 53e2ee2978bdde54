package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/core"
	"pulseboard/internal/llm"
	"pulseboard/internal/manifest"
	"pulseboard/internal/render"
	"pulseboard/internal/store"
	"pulseboard/internal/themes"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNews struct {
	articles map[string][]core.Article
	errs     map[string]error
	calls    []string
}

func (f *fakeNews) Fetch(ctx context.Context, theme string) ([]core.Article, error) {
	f.calls = append(f.calls, theme)
	if err := f.errs[theme]; err != nil {
		return nil, err
	}
	return f.articles[theme], nil
}

type fakePrices struct {
	calls []string
}

func (f *fakePrices) History(ctx context.Context, ticker string) []core.PricePoint {
	f.calls = append(f.calls, ticker)
	if ticker == "DEAD" {
		return []core.PricePoint{}
	}
	return []core.PricePoint{{Date: "2026-01-26", Close: 10}, {Date: "2026-01-27", Close: 11.5}}
}

type fakeEnricher struct {
	result  llm.Result
	tickers []string
}

func (f *fakeEnricher) Name() string { return "hf" }

func (f *fakeEnricher) Enrich(ctx context.Context, theme string, articles []core.Article, tickers []string) llm.Result {
	f.tickers = tickers
	return f.result
}

type recordingObserver struct {
	themes []ThemeOutcome
	runs   []RunSummary
}

func (r *recordingObserver) ThemeFinished(ctx context.Context, o ThemeOutcome) {
	r.themes = append(r.themes, o)
}

func (r *recordingObserver) RunFinished(ctx context.Context, s RunSummary) {
	r.runs = append(r.runs, s)
}

var fixedNow = time.Date(2026, 1, 27, 6, 30, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, n NewsSource, e Enricher, obs ...Observer) *Pipeline {
	t.Helper()
	p := NewPipeline(n, &fakePrices{}, e, &Config{DataDir: t.TempDir(), RunID: "run-1"}, quietLog(), obs...)
	p.now = func() time.Time { return fixedNow }
	return p
}

func sampleArticles() []core.Article {
	return []core.Article{
		{Title: "Solar capacity hits record", URL: "https://example.com/solar", Source: "Reuters", PublishedAt: "2026-01-27T01:00:00Z"},
		{Title: "Solar panel prices fall", URL: "https://example.com/panels", Source: "Bloomberg", PublishedAt: "2026-01-27T00:00:00Z"},
		{Title: "Oil output steady", URL: "https://example.com/oil", Source: "AP", PublishedAt: "2026-01-26T23:00:00Z"},
	}
}

func TestRunSkipsFailedThemeAndKeepsManifestEntry(t *testing.T) {
	news := &fakeNews{
		articles: map[string][]core.Article{"energy": sampleArticles()},
		errs:     map[string]error{"ai": errors.New("fetch news for ai: 500")},
	}
	obs := &recordingObserver{}
	p := newTestPipeline(t, news, nil, obs)

	prior := core.Manifest{
		GeneratedAtUTC: "2025-01-01T00:00:00.000Z",
		Themes:         map[string]core.ManifestEntry{"ai": {LatestDate: "2025-01-01"}},
	}
	require.NoError(t, manifest.Save(render.ManifestPath(p.config.DataDir), prior))

	summary, err := p.Run(context.Background(), []themes.Theme{
		{Name: "ai", Tickers: []string{"NVDA"}},
		{Name: "energy", Tickers: []string{"XOM", "NEE"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ai", "energy"}, news.calls, "themes run in file order")
	assert.Equal(t, []string{"energy"}, summary.Succeeded)
	require.Len(t, summary.Failed(), 1)
	assert.Equal(t, "ai", summary.Failed()[0].Theme)

	m, err := manifest.Load(render.ManifestPath(p.config.DataDir))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", m.Themes["ai"].LatestDate)
	assert.Equal(t, "2026-01-27", m.Themes["energy"].LatestDate)
	assert.Equal(t, "2026-01-27T06:30:00.000Z", m.GeneratedAtUTC)

	_, err = os.Stat(render.ThemeDocumentPath(p.config.DataDir, "2026-01-27", "energy"))
	assert.NoError(t, err)
	_, err = os.Stat(render.ThemeDocumentPath(p.config.DataDir, "2026-01-27", "ai"))
	assert.True(t, os.IsNotExist(err), "failed theme must not write a document")

	require.Len(t, obs.themes, 2)
	assert.Equal(t, store.StatusFailed, obs.themes[0].Status)
	assert.Error(t, obs.themes[0].Err)
	assert.Equal(t, store.StatusOK, obs.themes[1].Status)
	assert.Equal(t, 3, obs.themes[1].Articles)
	assert.Equal(t, store.EnrichmentRuleBased, obs.themes[1].Enrichment)
	require.Len(t, obs.runs, 1)
	assert.Equal(t, "run-1", obs.runs[0].RunID)
}

func TestRunWithNoThemesStillWritesManifest(t *testing.T) {
	p := newTestPipeline(t, &fakeNews{}, nil)
	summary, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Succeeded)

	m, err := manifest.Load(summary.ManifestPath)
	require.NoError(t, err)
	assert.Empty(t, m.Themes)
	assert.Equal(t, "2026-01-27T06:30:00.000Z", m.GeneratedAtUTC)
}

func TestRunCancelled(t *testing.T) {
	p := newTestPipeline(t, &fakeNews{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []themes.Theme{{Name: "ai"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessThemeRuleBased(t *testing.T) {
	news := &fakeNews{articles: map[string][]core.Article{"energy": sampleArticles()}}
	prices := &fakePrices{}
	p := NewPipeline(news, prices, nil, &Config{DataDir: t.TempDir()}, quietLog())
	p.now = func() time.Time { return fixedNow }

	tickers := []string{"XOM", "NEE", "CVX", "ENPH", "FSLR", "DEAD"}
	doc, enriched, err := p.ProcessTheme(context.Background(), themes.Theme{Name: "energy", Tickers: tickers}, "2026-01-27")
	require.NoError(t, err)
	assert.False(t, enriched)

	assert.Equal(t, "energy", doc.Theme)
	assert.Equal(t, "2026-01-27", doc.Date)
	assert.Equal(t, "2026-01-27T06:30:00.000Z", doc.LastUpdatedUTC)
	assert.Equal(t, core.Disclaimer, doc.Disclaimer)
	assert.Len(t, doc.News, 3)
	assert.Equal(t, "Solar capacity hits record", doc.Digest.Bullets[0])

	assert.Equal(t, tickers[:MaxTickers], prices.calls, "only the first five tickers are priced")
	require.Len(t, doc.Stocks, MaxTickers)
	for _, s := range doc.Stocks {
		assert.Equal(t, core.SentimentNeutral, s.SentimentDirection)
		assert.Equal(t, core.Sentiment{Category: core.SentimentNeutral}, s.Sentiment)
		assert.Contains(t, s.AIExplanation, "Top headline signal: Solar capacity hits record")
		assert.Len(t, s.PriceHistory, 2)
	}
	require.NotEmpty(t, doc.Clusters)
	assert.Equal(t, "Solar", doc.Clusters[0].Title)
}

func TestProcessThemeEnriched(t *testing.T) {
	news := &fakeNews{articles: map[string][]core.Article{"ai": sampleArticles()}}
	enricher := &fakeEnricher{result: llm.Success(llm.Enrichment{
		Digest:   core.Digest{Bullets: []string{"Chips lead"}, Insights: []string{}},
		Clusters: []core.Cluster{{Title: "Chips", Summary: "Chip news", ArticleURLs: []string{"https://example.com/solar"}}},
		TickerExplanations: map[string]string{
			"NVDA": "  Demand for accelerators stays high.  ",
		},
		TickerSentiment: map[string]core.SentimentDirection{
			"NVDA": core.SentimentPositive,
		},
	})}
	p := newTestPipeline(t, news, enricher)

	doc, enriched, err := p.ProcessTheme(context.Background(), themes.Theme{Name: "ai", Tickers: []string{"NVDA", "AMD"}}, "2026-01-27")
	require.NoError(t, err)
	assert.True(t, enriched)
	assert.Equal(t, []string{"NVDA", "AMD"}, enricher.tickers)

	assert.Equal(t, []string{"Chips lead"}, doc.Digest.Bullets)
	assert.Equal(t, "Chips", doc.Clusters[0].Title)

	require.Len(t, doc.Stocks, 2)
	assert.Equal(t, "Demand for accelerators stays high. This is an educational summary, not financial advice.", doc.Stocks[0].AIExplanation)
	assert.Equal(t, core.SentimentPositive, doc.Stocks[0].SentimentDirection)
	assert.Equal(t, core.SentimentPositive, doc.Stocks[0].Sentiment.Category)

	assert.Equal(t, "Top headline signal: Chips lead. Main topic cluster: Chips. This is an educational summary, not financial advice.", doc.Stocks[1].AIExplanation)
	assert.Equal(t, core.SentimentNeutral, doc.Stocks[1].SentimentDirection)
}

func TestProcessThemeEnrichmentFailureFallsBack(t *testing.T) {
	news := &fakeNews{articles: map[string][]core.Article{"energy": sampleArticles()}}
	enricher := &fakeEnricher{result: llm.Failure(&llm.InvalidOutputError{Reason: "[hf:energy] invalid output after retry: a / b"})}
	p := newTestPipeline(t, news, enricher)

	doc, enriched, err := p.ProcessTheme(context.Background(), themes.Theme{Name: "energy"}, "2026-01-27")
	require.NoError(t, err)
	assert.False(t, enriched)
	assert.Equal(t, "Solar capacity hits record", doc.Digest.Bullets[0])
	assert.NotNil(t, doc.Stocks)
	assert.Empty(t, doc.Stocks)
}

func TestProcessThemeEmptyNews(t *testing.T) {
	p := newTestPipeline(t, &fakeNews{}, nil)

	doc, _, err := p.ProcessTheme(context.Background(), themes.Theme{Name: "crypto", Tickers: []string{"COIN"}}, "2026-01-27")
	require.NoError(t, err)
	assert.NotNil(t, doc.News)
	assert.Empty(t, doc.Digest.Bullets)
	assert.Equal(t, "Educational summary unavailable for this theme today. Not financial advice.", doc.Stocks[0].AIExplanation)
}

func TestComposeExplanation(t *testing.T) {
	tests := []struct {
		name, model, bullet, cluster, want string
	}{
		{"model text wins", "Uses AI chips.", "b", "c", "Uses AI chips. This is an educational summary, not financial advice."},
		{"blank model text ignored", "   ", "Headline", "", "Top headline signal: Headline. This is an educational summary, not financial advice."},
		{"cluster only", "", "", "Chips", "Main topic cluster: Chips. This is an educational summary, not financial advice."},
		{"both parts", "", "Headline", "Chips", "Top headline signal: Headline. Main topic cluster: Chips. This is an educational summary, not financial advice."},
		{"nothing", "", "", "", "Educational summary unavailable for this theme today. Not financial advice."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeExplanation(tt.model, tt.bullet, tt.cluster))
		})
	}
}

func TestSentimentFor(t *testing.T) {
	labels := map[string]core.SentimentDirection{
		"AAA": core.SentimentNegative,
		"BBB": "Bullish",
	}
	assert.Equal(t, core.SentimentNegative, SentimentFor(labels, "AAA"))
	assert.Equal(t, core.SentimentNeutral, SentimentFor(labels, "BBB"))
	assert.Equal(t, core.SentimentNeutral, SentimentFor(labels, "CCC"))
	assert.Equal(t, core.SentimentNeutral, SentimentFor(nil, "AAA"))
}
