package relevance

import (
	"slices"

	"pulseboard/internal/core"
)

// ScoreAll scores every article and drops the ones scoring zero. The result is
// ordered by score, highest first, with ties kept in input order.
func ScoreAll(scorer Scorer, articles []core.Article) []Scored {
	scored := make([]Scored, 0, len(articles))
	for _, a := range articles {
		if s := scorer.Score(a.Title, a.Description); s > 0 {
			scored = append(scored, Scored{Article: a, Score: s})
		}
	}
	slices.SortStableFunc(scored, func(a, b Scored) int {
		return b.Score - a.Score
	})
	return scored
}

// Select keeps the strong subset when it is large enough and otherwise falls
// back to a capped weak subset. Input must already be sorted by ScoreAll.
func Select(scored []Scored, th Thresholds) []core.Article {
	strong := pick(scored, th.Strong, 0)
	if len(strong) >= th.MinStrong {
		return strong
	}
	return pick(scored, th.Weak, th.WeakLimit)
}

// Filter scores and selects in one step. A nil scorer keeps every article.
func Filter(scorer Scorer, articles []core.Article, th Thresholds) []core.Article {
	if scorer == nil {
		return articles
	}
	return Select(ScoreAll(scorer, articles), th)
}

func pick(scored []Scored, min, limit int) []core.Article {
	out := make([]core.Article, 0, len(scored))
	for _, s := range scored {
		if s.Score < min {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.Article)
	}
	return out
}
