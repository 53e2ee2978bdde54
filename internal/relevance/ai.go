package relevance

import (
	"regexp"
	"strings"
)

// falsePositivePhrases are uses of "ai" that have nothing to do with artificial intelligence.
var falsePositivePhrases = []string{"air india", "all india", "aiadmk", "aiims"}

var phraseSignals = []string{
	"artificial intelligence",
	"generative ai",
	"machine learning",
	"deep learning",
	"large language model",
	"language model",
	"foundation model",
	"ai safety",
	"model safety",
	"ai regulation",
	"data center",
	"datacenter",
	"ai chip",
}

var tokenSignals = []string{
	"llm",
	"gpt",
	"chatgpt",
	"openai",
	"anthropic",
	"claude",
	"gemini",
	"deepmind",
	"nvidia",
	"gpu",
	"inference",
	"training",
	"transformer",
	"neural",
	"cuda",
}

// AIScorer counts artificial intelligence signals in article text.
type AIScorer struct {
	tokens []*regexp.Regexp
	bareAI *regexp.Regexp
}

// NewAIScorer compiles the token matchers.
func NewAIScorer() *AIScorer {
	tokens := make([]*regexp.Regexp, len(tokenSignals))
	for i, t := range tokenSignals {
		tokens[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return &AIScorer{
		tokens: tokens,
		bareAI: regexp.MustCompile(`\bai\b`),
	}
}

// Score adds one point per matched phrase and per matched whole-word token.
// A false-positive phrase anywhere zeroes the score. The bare word "ai" only
// counts once some other signal has matched.
func (s *AIScorer) Score(title, description string) int {
	text := strings.ToLower(title + " " + description)

	for _, p := range falsePositivePhrases {
		if strings.Contains(text, p) {
			return 0
		}
	}

	score := 0
	for _, p := range phraseSignals {
		if strings.Contains(text, p) {
			score++
		}
	}
	for _, re := range s.tokens {
		if re.MatchString(text) {
			score++
		}
	}

	if score > 0 && s.bareAI.MatchString(text) {
		score++
	}
	return score
}
