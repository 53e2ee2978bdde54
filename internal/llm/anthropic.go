package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"pulseboard/internal/fetch"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = anthropic.ModelClaudeHaiku4_5

const anthropicSystem = "You return a single JSON object and nothing else."

// Anthropic generates through the Messages API. SDK retries are disabled so the
// shared retry policy owns pacing.
type Anthropic struct {
	client anthropic.Client
	cfg    Config
	log    *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewAnthropic creates the SDK client.
func NewAnthropic(cfg Config, log *slog.Logger) *Anthropic {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = string(DefaultAnthropicModel)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		log:    log,
		sleep:  fetch.SleepContext,
	}
}

// Name implements Generator.
func (a *Anthropic) Name() string { return "anthropic" }

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Temperature: anthropic.Float(a.cfg.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: anthropicSystem},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	label := fmt.Sprintf("anthropic:%s:%s", req.Theme, req.Attempt)
	policy := fetch.DefaultPolicy(label)
	policy.MinSpacing = a.cfg.MinSpacing
	policy.Sleep = a.sleep
	policy.Log = a.log

	text, err := fetch.Retry(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return "", classifyAnthropic(label, err)
		}
		var b strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		return b.String(), nil
	})
	if err != nil {
		return "", fmt.Errorf("[%s] generation failed: %w", label, err)
	}
	return text, nil
}

func classifyAnthropic(label string, err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	se := &fetch.StatusError{Label: label, Status: apiErr.StatusCode}
	if apiErr.Response != nil {
		if d, ok := fetch.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"), time.Now()); ok {
			se.RetryAfter, se.HasRetryAfter = d, true
		}
	}
	if !se.Retryable() {
		return fetch.Permanent(se)
	}
	return se
}
