package relevance

import "pulseboard/internal/core"

// Scorer rates how strongly an article's text matches a theme. Zero means
// the article is off-topic.
type Scorer interface {
	Score(title, description string) int
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(title, description string) int

// Score implements Scorer.
func (f ScorerFunc) Score(title, description string) int {
	return f(title, description)
}

// Scored pairs an article with its relevance score.
type Scored struct {
	Article core.Article
	Score   int
}

// Thresholds controls which scored articles survive selection.
type Thresholds struct {
	Strong    int // minimum score for the primary subset
	MinStrong int // primary subset is used only if it has at least this many
	Weak      int // minimum score for the fallback subset
	WeakLimit int // fallback subset cap
}

// DefaultThresholds keeps articles with two or more signals, or on a quiet day
// up to 15 articles with at least one signal.
var DefaultThresholds = Thresholds{
	Strong:    2,
	MinStrong: 6,
	Weak:      1,
	WeakLimit: 15,
}

// ForTheme returns the scorer for a theme, or nil when the theme is not scored.
func ForTheme(theme string) Scorer {
	switch theme {
	case "ai":
		return NewAIScorer()
	default:
		return nil
	}
}
