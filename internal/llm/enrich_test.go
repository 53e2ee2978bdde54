package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/core"
)

type scriptedGenerator struct {
	replies []string
	err     error
	calls   []Request
}

func (g *scriptedGenerator) Name() string { return "hf" }

func (g *scriptedGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validReply = `{"digest_bullets":["Chips rally"],"insights":[],"clusters":[],"ticker_sentiment":{"NVDA":"Positive"}}`

func sampleArticles() []core.Article {
	return []core.Article{{Title: "Chips rally", URL: "https://example.com/1", Source: "Wire", PublishedAt: "2025-01-01"}}
}

func TestEnrichFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{validReply}}
	r := NewEnricher(gen, quietLog()).Enrich(context.Background(), "ai", sampleArticles(), []string{"NVDA"})

	require.True(t, r.OK(), reason(r))
	assert.Equal(t, []string{"Chips rally"}, r.Value.Digest.Bullets)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, "a1", gen.calls[0].Attempt)
	assert.Equal(t, []string{"NVDA"}, gen.calls[0].Tickers)
	assert.False(t, strings.HasPrefix(gen.calls[0].Prompt, StrictPrefix))
}

func TestEnrichRetriesOnceWithStrictPrompt(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"I cannot help", validReply}}
	r := NewEnricher(gen, quietLog()).Enrich(context.Background(), "ai", sampleArticles(), []string{"NVDA"})

	require.True(t, r.OK(), reason(r))
	require.Len(t, gen.calls, 2)
	assert.Equal(t, "a2", gen.calls[1].Attempt)
	assert.Equal(t, StrictPrefix+gen.calls[0].Prompt, gen.calls[1].Prompt)
}

func TestEnrichFailsAfterSecondInvalid(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"nothing",
		`{"digest_bullets": ["a","b"], "insights": [], "clusters": [], "ticker_sentiment": {"AAA": "Bullish"}}`,
	}}
	r := NewEnricher(gen, quietLog()).Enrich(context.Background(), "energy", nil, []string{"AAA"})

	require.False(t, r.OK())
	assert.Equal(t, "[hf:energy] invalid output after retry: No JSON block found / ticker_sentiment[AAA] must be Positive/Neutral/Negative", r.Err.Error())
	var inv *InvalidOutputError
	assert.True(t, errors.As(r.Err, &inv))
	assert.Len(t, gen.calls, 2)
}

func TestEnrichTransportErrorDoesNotRetry(t *testing.T) {
	boom := errors.New("connection reset")
	gen := &scriptedGenerator{err: boom}
	r := NewEnricher(gen, quietLog()).Enrich(context.Background(), "ai", nil, nil)

	require.False(t, r.OK())
	assert.True(t, errors.Is(r.Err, boom))
	assert.Len(t, gen.calls, 1)
}

func TestBuildPrompt(t *testing.T) {
	var arts []core.Article
	for i := 0; i < 25; i++ {
		arts = append(arts, core.Article{Title: "Title  with\nspaces", Description: " desc\t here ", URL: "https://example.com/x", Source: "Wire", PublishedAt: "2025-01-01T00:00:00Z"})
	}

	p := BuildPrompt("ai", arts, []string{"NVDA", "MSFT"})
	assert.True(t, strings.HasPrefix(p, "You are generating content for an educational dashboard. Not financial advice.\n\nTheme: ai\nTickers: NVDA, MSFT\n\nArticles:\n1. Title with spaces\n   source: Wire\n   publishedAt: 2025-01-01T00:00:00Z\n   url: https://example.com/x\n   description: desc here\n\n2. "))
	assert.Contains(t, p, "\n20. Title with spaces")
	assert.NotContains(t, p, "\n21. ")
	assert.Contains(t, p, "    \"NVDA\": \"1–2 educational sentences linking the theme to this ticker\",\n    \"MSFT\": \"1–2 educational sentences linking the theme to this ticker\"\n  },")
	assert.Contains(t, p, "    \"NVDA\": \"Neutral\",\n    \"MSFT\": \"Neutral\"\n  }\n}")
	assert.True(t, strings.HasSuffix(p, "- ticker_sentiment values must be exactly one of: Positive, Neutral, Negative"))
}
