package clustering

import (
	"slices"
	"strings"

	"pulseboard/internal/core"
	"pulseboard/internal/dedupe"
)

const (
	// MinLabelFrequency is the number of articles a token must appear in to become a label.
	MinLabelFrequency = 2
	MaxLabels         = 4
	MaxClusters       = 5
	// DefaultMaxURLs caps article_urls per cluster.
	DefaultMaxURLs = 3
	// FallbackLabel is used when no token reaches MinLabelFrequency.
	FallbackLabel = "updates"
	otherTitle    = "Other"
	otherSummary  = "Stories that did not match the main keywords. (Keyword-based MVP)"
	minTokenLen   = 3
	minOtherSize  = 2
)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`
		the and for with from that this are was were into over will just than then
		they their about after before today says said onto have has had you your its
		also not but new more most can could would should may might when what why
		how who where which market stocks stock`) {
		stopwords[w] = true
	}
}

// Tokenize lowercases text, turns every character outside [a-z0-9] and
// whitespace into a separator and keeps tokens of at least three characters.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// keywords tokenizes an article's title and description and removes stopwords.
func keywords(a core.Article) []string {
	tokens := Tokenize(a.Title + " " + a.Description)
	out := tokens[:0]
	for _, t := range tokens {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// Assignment is the result of bucketing articles under keyword labels.
type Assignment struct {
	// Labels in priority order.
	Labels  []string
	Buckets map[string][]core.Article
	Other   []core.Article
}

// Assign picks up to MaxLabels keywords by document frequency and places each
// article in the bucket of the first label it contains, or in Other.
func Assign(articles []core.Article) Assignment {
	perArticle := make([][]string, len(articles))
	freq := map[string]int{}
	var order []string

	for i, a := range articles {
		tokens := keywords(a)
		perArticle[i] = tokens
		seen := map[string]bool{}
		for _, t := range tokens {
			if seen[t] {
				continue
			}
			seen[t] = true
			if freq[t] == 0 {
				order = append(order, t)
			}
			freq[t]++
		}
	}

	labels := make([]string, 0, MaxLabels)
	for _, t := range order {
		if freq[t] >= MinLabelFrequency {
			labels = append(labels, t)
		}
	}
	slices.SortStableFunc(labels, func(a, b string) int {
		return freq[b] - freq[a]
	})
	if len(labels) > MaxLabels {
		labels = labels[:MaxLabels]
	}
	if len(labels) == 0 {
		labels = []string{FallbackLabel}
	}

	res := Assignment{
		Labels:  labels,
		Buckets: make(map[string][]core.Article, len(labels)),
		Other:   []core.Article{},
	}
	for i, a := range articles {
		placed := false
		for _, label := range labels {
			if slices.Contains(perArticle[i], label) {
				res.Buckets[label] = append(res.Buckets[label], a)
				placed = true
				break
			}
		}
		if !placed {
			res.Other = append(res.Other, a)
		}
	}
	return res
}

// Build groups articles into at most MaxClusters keyword clusters. Label
// clusters come first in priority order; a trailing "Other" cluster is added
// when at least two articles matched no label. maxURLs <= 0 uses DefaultMaxURLs.
func Build(articles []core.Article, maxURLs int) []core.Cluster {
	clusters := []core.Cluster{}
	if len(articles) == 0 {
		return clusters
	}
	if maxURLs <= 0 {
		maxURLs = DefaultMaxURLs
	}

	a := Assign(articles)
	for _, label := range a.Labels {
		bucket := a.Buckets[label]
		if len(bucket) == 0 {
			continue
		}
		clusters = append(clusters, core.Cluster{
			Title:       capitalize(label),
			Summary:     `Grouped stories where "` + label + `" appears frequently in titles/descriptions. (Keyword-based MVP)`,
			ArticleURLs: bucketURLs(bucket, maxURLs),
		})
	}

	if len(a.Other) >= minOtherSize && len(clusters) < MaxClusters {
		clusters = append(clusters, core.Cluster{
			Title:       otherTitle,
			Summary:     otherSummary,
			ArticleURLs: bucketURLs(a.Other, maxURLs),
		})
	}

	if len(clusters) > MaxClusters {
		clusters = clusters[:MaxClusters]
	}
	return clusters
}

func bucketURLs(bucket []core.Article, max int) []string {
	urls := make([]string, 0, len(bucket))
	for _, a := range bucket {
		if u := dedupe.CanonicalURL(a.URL); u != "" {
			urls = append(urls, u)
		}
	}
	urls = dedupe.UniqueStrings(urls)
	if len(urls) > max {
		urls = urls[:max]
	}
	return urls
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
