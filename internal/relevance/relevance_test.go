package relevance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/core"
)

func TestAIScorer(t *testing.T) {
	s := NewAIScorer()

	tests := []struct {
		name  string
		title string
		desc  string
		want  int
	}{
		{"false positive wins", "Air India unveils new AI chip", "NVIDIA GPU partnership", 0},
		{"aiims", "AIIMS hospital adopts machine learning", "", 0},
		{"phrase and token", "Artificial intelligence boom lifts NVIDIA", "", 2},
		{"bare ai counted with context", "AI startup trains new LLM", "", 2},
		{"bare ai alone", "AI is everywhere", "", 0},
		{"whole word tokens only", "Gemini constellation and gpus", "", 1},
		{"substring phrases", "Datacenter spending", "", 1},
		{"off topic", "Oil prices climb", "OPEC meets", 0},
		{"case insensitive", "OPENAI and ANTHROPIC", "", 2},
		{"nested phrases both count", "A large language model", "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.title, tt.desc))
		})
	}
}

func TestForTheme(t *testing.T) {
	assert.NotNil(t, ForTheme("ai"))
	assert.Nil(t, ForTheme("energy"))
}

func TestScoreAllStableDescending(t *testing.T) {
	scores := map[string]int{"a": 1, "b": 3, "c": 0, "d": 3, "e": 2}
	scorer := ScorerFunc(func(title, _ string) int { return scores[title] })

	var in []core.Article
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		in = append(in, core.Article{Title: k})
	}

	got := ScoreAll(scorer, in)
	require.Len(t, got, 4)
	var order []string
	for _, s := range got {
		order = append(order, s.Article.Title)
	}
	assert.Equal(t, []string{"b", "d", "e", "a"}, order)
}

func TestSelectStrongSubset(t *testing.T) {
	var scored []Scored
	for i := 0; i < 7; i++ {
		scored = append(scored, Scored{Article: core.Article{Title: fmt.Sprintf("s%d", i)}, Score: 2})
	}
	scored = append(scored, Scored{Article: core.Article{Title: "weak"}, Score: 1})

	got := Select(scored, DefaultThresholds)
	assert.Len(t, got, 7)
	for _, a := range got {
		assert.NotEqual(t, "weak", a.Title)
	}
}

func TestSelectWeakFallbackIsCapped(t *testing.T) {
	var scored []Scored
	for i := 0; i < 3; i++ {
		scored = append(scored, Scored{Article: core.Article{Title: fmt.Sprintf("s%d", i)}, Score: 3})
	}
	for i := 0; i < 20; i++ {
		scored = append(scored, Scored{Article: core.Article{Title: fmt.Sprintf("w%d", i)}, Score: 1})
	}

	got := Select(scored, DefaultThresholds)
	require.Len(t, got, 15)
	assert.Equal(t, "s0", got[0].Title)
	assert.Equal(t, "w11", got[14].Title)
}

func TestFilter(t *testing.T) {
	in := []core.Article{
		{Title: "Air India unveils new AI chip"},
		{Title: "Artificial intelligence demand lifts NVIDIA", Description: "GPU sales"},
		{Title: "Weather report"},
	}

	got := Filter(NewAIScorer(), in, DefaultThresholds)
	require.Len(t, got, 1)
	assert.Equal(t, in[1].Title, got[0].Title)

	assert.Equal(t, in, Filter(nil, in, DefaultThresholds))
}
