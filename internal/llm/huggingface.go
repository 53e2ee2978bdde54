package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"

	"pulseboard/internal/fetch"
)

const (
	DefaultHuggingFaceURL   = "https://router.huggingface.co/v1/chat/completions"
	DefaultHuggingFaceModel = "mistralai/Mistral-7B-Instruct-v0.2"
	// hfDefaultProvider routes bare model ids to the serverless inference provider.
	hfDefaultProvider = ":hf-inference"
)

// HuggingFace calls the router's OpenAI compatible chat completions endpoint
// through the shared fetcher.
type HuggingFace struct {
	fetcher *fetch.Fetcher
	cfg     Config
}

// NewHuggingFace fills HuggingFace defaults into cfg.
func NewHuggingFace(f *fetch.Fetcher, cfg Config) *HuggingFace {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHuggingFaceURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHuggingFaceModel
	}
	return &HuggingFace{fetcher: f, cfg: cfg}
}

// Name implements Generator.
func (h *HuggingFace) Name() string { return "hf" }

// RoutedModel appends the default inference provider unless the id already names one.
func RoutedModel(model string) string {
	if strings.Contains(model, ":") {
		return model
	}
	return model + hfDefaultProvider
}

// Params builds the chat completion request body.
func (h *HuggingFace) Params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: RoutedModel(h.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(h.cfg.Temperature),
		MaxTokens:   openai.Int(int64(h.cfg.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        SchemaName,
					Description: openai.String(SchemaDescription),
					Strict:      openai.Bool(true),
					Schema:      JSONSchema(),
				},
			},
		},
	}
}

// Generate implements Generator.
func (h *HuggingFace) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(h.Params(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	header.Set("Content-Type", "application/json")

	raw, err := h.fetcher.Do(ctx, h.cfg.BaseURL, fetch.Options{
		Label:      fmt.Sprintf("hf:%s:%s", req.Theme, req.Attempt),
		Method:     http.MethodPost,
		Header:     header,
		Body:       body,
		MinSpacing: h.cfg.MinSpacing,
	})
	if err != nil {
		return "", err
	}
	return completionText(raw)
}

// completionText returns choices[0].message.content, or the legacy
// choices[0].text when no message content is present.
func completionText(raw []byte) (string, error) {
	var resp openai.ChatCompletion
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	choice := resp.Choices[0]
	if choice.Message.JSON.Content.Valid() {
		return choice.Message.Content, nil
	}
	if f, ok := choice.JSON.ExtraFields["text"]; ok {
		var text string
		if err := json.Unmarshal([]byte(f.Raw()), &text); err == nil {
			return text, nil
		}
	}
	return "", nil
}
