package llm

import (
	"fmt"
	"strings"

	"pulseboard/internal/core"
)

// MaxPromptArticles bounds how many articles are shown to the model.
const MaxPromptArticles = 20

// StrictPrefix is prepended to the prompt for the second attempt.
const StrictPrefix = "Return ONLY valid JSON matching the schema exactly. No extra text.\n\n"

// BuildPrompt renders the theme, tickers, top articles, the JSON shape and the rules.
func BuildPrompt(theme string, articles []core.Article, tickers []string) string {
	if len(articles) > MaxPromptArticles {
		articles = articles[:MaxPromptArticles]
	}

	entries := make([]string, len(articles))
	for i, a := range articles {
		entries[i] = fmt.Sprintf("%d. %s\n   source: %s\n   publishedAt: %s\n   url: %s\n   description: %s",
			i+1, collapse(a.Title), a.Source, a.PublishedAt, a.URL, collapse(a.Description))
	}

	explanations := make([]string, len(tickers))
	sentiments := make([]string, len(tickers))
	for i, t := range tickers {
		explanations[i] = fmt.Sprintf(`"%s": "1–2 educational sentences linking the theme to this ticker"`, t)
		sentiments[i] = fmt.Sprintf(`"%s": "Neutral"`, t)
	}

	var b strings.Builder
	b.WriteString("You are generating content for an educational dashboard. Not financial advice.\n\n")
	fmt.Fprintf(&b, "Theme: %s\nTickers: %s\n\n", theme, strings.Join(tickers, ", "))
	fmt.Fprintf(&b, "Articles:\n%s\n\n", strings.Join(entries, "\n\n"))
	b.WriteString(`Return STRICT JSON ONLY with this schema (no markdown, no extra text):

{
  "digest_bullets": ["... up to 5 strings ..."],
  "insights": ["... up to 3 strings ..."],
  "clusters": [
    {
      "title": "short title",
      "summary": "1 short paragraph",
      "article_urls": ["... up to 5 urls from the list above ..."]
    }
  ],
  "ticker_explanations": {
    `)
	b.WriteString(strings.Join(explanations, ",\n    "))
	b.WriteString(`
  },
  "ticker_sentiment": {
    `)
	b.WriteString(strings.Join(sentiments, ",\n    "))
	b.WriteString(`
  }
}

Rules:
- digest_bullets max 5
- insights max 3
- clusters between 3 and 5 if possible, otherwise fewer
- Use only URLs from the Articles list
- Keep ticker_explanations to only the given tickers
- ticker_sentiment values must be exactly one of: Positive, Neutral, Negative`)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
