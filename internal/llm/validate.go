package llm

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"pulseboard/internal/core"
)

// Payload limits. Cluster URLs are truncated rather than rejected.
const (
	MaxBullets     = 5
	MaxInsights    = 3
	MaxClusters    = 5
	MaxClusterURLs = 3
	previewLen     = 300
)

// Enrichment is a validated model payload.
type Enrichment struct {
	Digest             core.Digest
	Clusters           []core.Cluster
	TickerExplanations map[string]string
	TickerSentiment    map[string]core.SentimentDirection
}

// InvalidOutputError carries the reason a payload was rejected.
type InvalidOutputError struct {
	Reason string
}

func (e *InvalidOutputError) Error() string { return e.Reason }

func invalid(format string, args ...any) *InvalidOutputError {
	return &InvalidOutputError{Reason: fmt.Sprintf(format, args...)}
}

// Result is either a validated enrichment or the error that prevented one.
type Result struct {
	Value Enrichment
	Err   error
}

// OK reports whether the result holds a value.
func (r Result) OK() bool { return r.Err == nil }

// Success wraps a validated enrichment.
func Success(v Enrichment) Result { return Result{Value: v} }

// Failure wraps the reason enrichment is unavailable.
func Failure(err error) Result { return Result{Err: err} }

// ParsePayload decodes model text as JSON. When the text is not pure JSON the
// span from the first '{' to the last '}' is tried instead.
func ParsePayload(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err == nil {
		return v, nil
	}

	block, ok := extractJSONBlock(text)
	if !ok {
		return nil, invalid("No JSON block found")
	}
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return nil, invalid("JSON.parse failed. Preview: %s", preview(text))
	}
	return v, nil
}

func extractJSONBlock(text string) (string, bool) {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r)
}

// Validate checks a decoded payload against the digest schema. allowed lists
// the only tickers that may appear in ticker_explanations and ticker_sentiment.
func Validate(payload any, allowed []string) Result {
	obj, ok := payload.(map[string]any)
	if !ok {
		return Failure(invalid("output is not an object"))
	}

	bulletsRaw, ok := obj["digest_bullets"].([]any)
	if !ok {
		return Failure(invalid("digest_bullets must be an array"))
	}
	insightsRaw, ok := obj["insights"].([]any)
	if !ok {
		return Failure(invalid("insights must be an array"))
	}
	clustersRaw, ok := obj["clusters"].([]any)
	if !ok {
		return Failure(invalid("clusters must be an array"))
	}

	bullets, ok := stringSlice(bulletsRaw)
	if !ok {
		return Failure(invalid("digest_bullets must be strings"))
	}
	insights, ok := stringSlice(insightsRaw)
	if !ok {
		return Failure(invalid("insights must be strings"))
	}

	if len(bullets) > MaxBullets {
		return Failure(invalid("digest_bullets too long"))
	}
	if len(insights) > MaxInsights {
		return Failure(invalid("insights too long"))
	}
	if len(clustersRaw) > MaxClusters {
		return Failure(invalid("clusters too many"))
	}

	clusters := make([]core.Cluster, 0, len(clustersRaw))
	for _, raw := range clustersRaw {
		c, ok := raw.(map[string]any)
		if !ok {
			return Failure(invalid("cluster entry must be an object"))
		}
		title, ok := c["title"].(string)
		if !ok {
			return Failure(invalid("cluster.title must be a string"))
		}
		summary, ok := c["summary"].(string)
		if !ok {
			return Failure(invalid("cluster.summary must be a string"))
		}
		urlsRaw, ok := c["article_urls"].([]any)
		if !ok {
			return Failure(invalid("cluster.article_urls must be an array"))
		}
		urls, ok := stringSlice(urlsRaw)
		if !ok {
			return Failure(invalid("cluster.article_urls must be strings"))
		}
		if len(urls) > MaxClusterURLs {
			urls = urls[:MaxClusterURLs]
		}
		clusters = append(clusters, core.Cluster{Title: title, Summary: summary, ArticleURLs: urls})
	}

	explanations := map[string]string{}
	if raw, present := obj["ticker_explanations"]; present {
		m, ok := raw.(map[string]any)
		if !ok {
			return Failure(invalid("ticker_explanations must be an object if present"))
		}
		for _, k := range sortedKeys(m) {
			if !slices.Contains(allowed, k) {
				return Failure(invalid("ticker_explanations contains unknown ticker: %s", k))
			}
			s, ok := m[k].(string)
			if !ok {
				return Failure(invalid("ticker_explanations[%s] must be a string", k))
			}
			explanations[k] = s
		}
	}

	sentiment := map[string]core.SentimentDirection{}
	if raw, present := obj["ticker_sentiment"]; present {
		m, ok := raw.(map[string]any)
		if !ok {
			return Failure(invalid("ticker_sentiment must be an object if present"))
		}
		for _, k := range sortedKeys(m) {
			if !slices.Contains(allowed, k) {
				return Failure(invalid("ticker_sentiment contains unknown ticker: %s", k))
			}
			s, ok := m[k].(string)
			if !ok {
				return Failure(invalid("ticker_sentiment[%s] must be a string", k))
			}
			dir := core.SentimentDirection(s)
			if !dir.Valid() {
				return Failure(invalid("ticker_sentiment[%s] must be Positive/Neutral/Negative", k))
			}
			sentiment[k] = dir
		}
	}

	return Success(Enrichment{
		Digest:             core.Digest{Bullets: bullets, Insights: insights},
		Clusters:           clusters,
		TickerExplanations: explanations,
		TickerSentiment:    sentiment,
	})
}

// stringSlice converts a JSON array to []string, failing on any non-string element.
func stringSlice(in []any) ([]string, bool) {
	out := make([]string, 0, len(in))
	for _, v := range in {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// sortedKeys gives map iteration a stable order so rejection reasons are reproducible.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sentimentValues() []string {
	return []string{
		string(core.SentimentPositive),
		string(core.SentimentNeutral),
		string(core.SentimentNegative),
	}
}
