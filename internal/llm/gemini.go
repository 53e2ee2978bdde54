package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"pulseboard/internal/fetch"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-flash-lite-latest"

// Gemini generates through the Gemini API with a response schema.
type Gemini struct {
	client *genai.Client
	cfg    Config
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGemini creates the SDK client.
func NewGemini(ctx context.Context, cfg Config, log *slog.Logger) (*Gemini, error) {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg, log: log, sleep: fetch.SleepContext}, nil
}

// Name implements Generator.
func (g *Gemini) Name() string { return "gemini" }

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: req.Prompt}},
		Role:  "user",
	}}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens:  int32(g.cfg.MaxTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   GeminiSchema(req.Tickers),
	}

	label := fmt.Sprintf("gemini:%s:%s", req.Theme, req.Attempt)
	policy := fetch.DefaultPolicy(label)
	policy.MinSpacing = g.cfg.MinSpacing
	policy.Sleep = g.sleep
	policy.Log = g.log

	text, err := fetch.Retry(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
		if err != nil {
			return "", classifyGemini(label, err)
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", fmt.Errorf("[%s] generation failed: %w", label, err)
	}
	return text, nil
}

// classifyGemini turns API errors into status errors so the retry table applies.
func classifyGemini(label string, err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code == 0 {
		return err
	}
	se := &fetch.StatusError{Label: label, Status: apiErr.Code, Snippet: apiErr.Message}
	if !se.Retryable() {
		return fetch.Permanent(se)
	}
	return se
}
