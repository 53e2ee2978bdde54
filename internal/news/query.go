package news

import "strings"

// themeTerms are the curated search terms per theme. Multi-word phrases are quoted.
var themeTerms = map[string][]string{
	"ai": {
		`"artificial intelligence"`,
		`"generative AI"`,
		`"machine learning"`,
		"LLM",
		`"large language model"`,
		"ChatGPT",
		"OpenAI",
		"Anthropic",
		"Claude",
		"Gemini",
		"DeepMind",
		"NVIDIA",
		"GPU",
		`"AI chip"`,
		`"data center"`,
		`"model safety"`,
		"regulation",
	},
	"semiconductors": {
		"semiconductor",
		"chip",
		"chips",
		"GPU",
		"NVIDIA",
		"TSMC",
		"Intel",
		"AMD",
		"ASML",
		`"foundry"`,
		`"export controls"`,
		`"supply chain"`,
	},
	"energy": {
		"energy",
		"oil",
		"gas",
		"OPEC",
		"renewables",
		"solar",
		"wind",
		"LNG",
		`"power grid"`,
		`"electricity prices"`,
		`"energy transition"`,
	},
	"us-politics": {
		`"United States"`,
		`"White House"`,
		"Congress",
		"Senate",
		"House",
		"Biden",
		"Trump",
		"election",
		"campaign",
		"policy",
		"tariffs",
		"sanctions",
		`"federal government"`,
	},
}

// aiExclusions suppress package-registry and release-note noise.
const aiExclusions = "-pypi -package -wordpress -dev -release"

// BuildQuery returns the boolean search query for a theme. Themes without a
// curated term list search for the theme name itself.
func BuildQuery(theme string) string {
	terms, ok := themeTerms[theme]
	if !ok {
		return theme
	}
	q := strings.Join(terms, " OR ")
	if theme == "ai" {
		q += " " + aiExclusions
	}
	return q
}

// TitleOnly reports whether a theme searches headlines only.
func TitleOnly(theme string) bool {
	return theme == "ai"
}
