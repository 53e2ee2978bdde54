package core

import "time"

// Article is the stable shape of a news item after filtering and deduplication.
// URL is always stored in canonical form.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// PricePoint is one end-of-day close.
type PricePoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// Cluster groups articles that share a frequent keyword (or an LLM-chosen topic).
type Cluster struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	ArticleURLs []string `json:"article_urls"`
}

// Digest is the short headline summary shown at the top of a theme page.
type Digest struct {
	Bullets  []string `json:"bullets"`
	Insights []string `json:"insights"`
}

// SentimentDirection is the coarse per-ticker sentiment label.
type SentimentDirection string

const (
	SentimentPositive SentimentDirection = "Positive"
	SentimentNeutral  SentimentDirection = "Neutral"
	SentimentNegative SentimentDirection = "Negative"
)

// Valid reports whether d is one of the three accepted labels. Matching is exact.
func (d SentimentDirection) Valid() bool {
	switch d {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Sentiment mirrors the shape the dashboard expects under stocks[].sentiment.
type Sentiment struct {
	Category  SentimentDirection `json:"category"`
	Score     float64            `json:"score"`
	Magnitude float64            `json:"magnitude"`
}

// StockEntry is one ticker row of a theme document.
type StockEntry struct {
	Ticker             string             `json:"ticker"`
	PriceHistory       []PricePoint       `json:"price_history"`
	SentimentDirection SentimentDirection `json:"sentiment_direction"`
	Sentiment          Sentiment          `json:"sentiment"`
	AIExplanation      string             `json:"ai_explanation"`
}

// ThemeDocument is written once per theme per UTC day to data/<date>/<theme>.json.
type ThemeDocument struct {
	Theme          string       `json:"theme"`
	Date           string       `json:"date"`
	LastUpdatedUTC string       `json:"last_updated_utc"`
	News           []Article    `json:"news"`
	Digest         Digest       `json:"digest"`
	Clusters       []Cluster    `json:"clusters"`
	Stocks         []StockEntry `json:"stocks"`
	Disclaimer     string       `json:"disclaimer"`
}

// ManifestEntry records the newest document date available for a theme.
type ManifestEntry struct {
	LatestDate string `json:"latest_date"`
}

// Manifest is the index the dashboard reads first.
type Manifest struct {
	GeneratedAtUTC string                   `json:"generated_at_utc"`
	Themes         map[string]ManifestEntry `json:"themes"`
}

// Disclaimer is attached to every theme document.
const Disclaimer = "Educational use only. Not financial advice."

// TimestampLayout matches the millisecond precision UTC timestamps the dashboard expects.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DateString returns the UTC calendar day of t as YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
