package llm

import "google.golang.org/genai"

const (
	SchemaName        = "theme_digest"
	SchemaDescription = "Theme digest bullets, insights, clusters, and optional ticker explanations."
)

func stringArray(max int) map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string"},
		"minItems": 0,
		"maxItems": max,
	}
}

// JSONSchema is the strict response_format schema for OpenAI compatible endpoints.
func JSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"digest_bullets": stringArray(MaxBullets),
			"insights":       stringArray(MaxInsights),
			"clusters": map[string]any{
				"type":     "array",
				"minItems": 0,
				"maxItems": MaxClusters,
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"title":        map[string]any{"type": "string"},
						"summary":      map[string]any{"type": "string"},
						"article_urls": stringArray(5),
					},
					"required": []string{"title", "summary", "article_urls"},
				},
			},
			"ticker_explanations": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"ticker_sentiment": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
					"enum": sentimentValues(),
				},
			},
		},
		"required": []string{"digest_bullets", "insights", "clusters"},
	}
}

// GeminiSchema mirrors JSONSchema. Gemini schemas have no open maps, so the
// ticker objects list each allowed ticker as an optional property.
func GeminiSchema(tickers []string) *genai.Schema {
	strArray := func(max int64) *genai.Schema {
		return &genai.Schema{
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			MaxItems: genai.Ptr(max),
		}
	}

	explanations := map[string]*genai.Schema{}
	sentiments := map[string]*genai.Schema{}
	for _, t := range tickers {
		explanations[t] = &genai.Schema{Type: genai.TypeString}
		sentiments[t] = &genai.Schema{Type: genai.TypeString, Enum: sentimentValues()}
	}

	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"digest_bullets": strArray(MaxBullets),
			"insights":       strArray(MaxInsights),
			"clusters": {
				Type:     genai.TypeArray,
				MaxItems: genai.Ptr(int64(MaxClusters)),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":        {Type: genai.TypeString},
						"summary":      {Type: genai.TypeString},
						"article_urls": strArray(5),
					},
					Required: []string{"title", "summary", "article_urls"},
				},
			},
		},
		PropertyOrdering: []string{"digest_bullets", "insights", "clusters"},
		Required:         []string{"digest_bullets", "insights", "clusters"},
	}
	if len(tickers) > 0 {
		s.Properties["ticker_explanations"] = &genai.Schema{Type: genai.TypeObject, Properties: explanations}
		s.Properties["ticker_sentiment"] = &genai.Schema{Type: genai.TypeObject, Properties: sentiments}
		s.PropertyOrdering = append(s.PropertyOrdering, "ticker_explanations", "ticker_sentiment")
	}
	return s
}
