package pipeline

import (
	"strings"

	"pulseboard/internal/core"
)

const (
	explanationSuffix      = "This is an educational summary, not financial advice."
	explanationUnavailable = "Educational summary unavailable for this theme today. Not financial advice."
)

// ComposeExplanation picks the model explanation for a ticker when there is
// one, otherwise synthesizes one from the top headline and top cluster.
func ComposeExplanation(modelText, topBullet, topCluster string) string {
	if t := strings.TrimSpace(modelText); t != "" {
		return t + " " + explanationSuffix
	}

	var parts []string
	if topBullet != "" {
		parts = append(parts, "Top headline signal: "+topBullet)
	}
	if topCluster != "" {
		parts = append(parts, "Main topic cluster: "+topCluster)
	}
	if len(parts) == 0 {
		return explanationUnavailable
	}
	return strings.Join(parts, ". ") + ". " + explanationSuffix
}

// SentimentFor returns the model's label for ticker, or Neutral.
func SentimentFor(labels map[string]core.SentimentDirection, ticker string) core.SentimentDirection {
	if d, ok := labels[ticker]; ok && d.Valid() {
		return d
	}
	return core.SentimentNeutral
}

// StockEntry assembles one ticker row.
func StockEntry(ticker string, history []core.PricePoint, explanation string, direction core.SentimentDirection) core.StockEntry {
	if history == nil {
		history = []core.PricePoint{}
	}
	return core.StockEntry{
		Ticker:             ticker,
		PriceHistory:       history,
		SentimentDirection: direction,
		Sentiment:          core.Sentiment{Category: direction},
		AIExplanation:      explanation,
	}
}
