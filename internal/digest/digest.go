// Package digest builds the rule-based theme digest used when no model
// enrichment is available.
package digest

import (
	"pulseboard/internal/core"
	"pulseboard/internal/dedupe"
)

const (
	MaxBullets  = 5
	MaxInsights = 3
	// ActiveCycleThreshold is the article count at which coverage is called elevated.
	ActiveCycleThreshold = 8

	ActiveCycleInsight = "Coverage volume is elevated, suggesting an active news cycle."
	RuleBasedInsight   = "Digest is rule-based for MVP; AI summarisation can be added later."
)

// Build takes the first unique headlines as bullets and adds canned insights.
func Build(articles []core.Article) core.Digest {
	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Title != "" {
			titles = append(titles, a.Title)
		}
	}
	bullets := dedupe.UniqueStrings(titles)
	if len(bullets) > MaxBullets {
		bullets = bullets[:MaxBullets]
	}

	insights := make([]string, 0, 2)
	if len(articles) >= ActiveCycleThreshold {
		insights = append(insights, ActiveCycleInsight)
	}
	insights = append(insights, RuleBasedInsight)
	if len(insights) > MaxInsights {
		insights = insights[:MaxInsights]
	}

	return core.Digest{Bullets: bullets, Insights: insights}
}
