package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const snippetLimit = 200

// Options tune a single logical request. Zero values fall back to the Fetcher defaults.
type Options struct {
	Label       string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MinSpacing  time.Duration
	Method      string
	Header      http.Header
	Body        []byte
}

// Fetcher performs HTTP requests with bounded retry, exponential backoff with
// jitter and Retry-After support. It is shared by the news, price and LLM clients.
type Fetcher struct {
	client   *http.Client
	defaults Options
	log      *slog.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
	now    func() time.Time
}

// New creates a Fetcher. A nil client uses http.DefaultClient.
func New(client *http.Client, defaults Options, log *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if defaults.MaxAttempts == 0 {
		defaults.MaxAttempts = DefaultMaxAttempts
	}
	if defaults.BaseDelay == 0 {
		defaults.BaseDelay = DefaultBaseDelay
	}
	if defaults.MaxDelay == 0 {
		defaults.MaxDelay = DefaultMaxDelay
	}
	if defaults.Label == "" {
		defaults.Label = "request"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client:   client,
		defaults: defaults,
		log:      log,
		sleep:    SleepContext,
		jitter:   RandomJitter,
		now:      time.Now,
	}
}

// Text fetches url and returns the body as a string.
func (f *Fetcher) Text(ctx context.Context, url string, opts Options) (string, error) {
	body, err := f.Do(ctx, url, opts)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// JSON fetches url and decodes the body into out.
func (f *Fetcher) JSON(ctx context.Context, url string, opts Options, out any) error {
	body, err := f.Do(ctx, url, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("[%s] failed to decode JSON from %s: %w", f.merge(opts).Label, url, err)
	}
	return nil
}

// Do runs the retry loop and returns the raw body of the first 2xx response.
func (f *Fetcher) Do(ctx context.Context, url string, opts Options) ([]byte, error) {
	o := f.merge(opts)
	policy := Policy{
		Label:       o.Label,
		MaxAttempts: o.MaxAttempts,
		MinSpacing:  o.MinSpacing,
		Delay: FirstOf(
			RetryAfterDelay{},
			ExponentialJitter{Base: o.BaseDelay, Max: o.MaxDelay, Jitter: f.jitter},
		),
		Sleep: f.sleep,
		Log:   f.log,
	}

	body, err := Retry(ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
		return f.attempt(ctx, url, o)
	})
	if err != nil {
		if IsRetryable(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("[%s] Fetch failed after %d attempts for %s: %w", o.Label, o.MaxAttempts, url, err)
		}
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) attempt(ctx context.Context, url string, o Options) ([]byte, error) {
	var reqBody io.Reader
	if o.Body != nil {
		reqBody = bytes.NewReader(o.Body)
	}
	req, err := http.NewRequestWithContext(ctx, o.Method, url, reqBody)
	if err != nil {
		return nil, Permanent(fmt.Errorf("[%s] failed to build request for %s: %w", o.Label, url, err))
	}
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("[%s] failed to read response body from %s: %w", o.Label, url, err)
		}
		return body, nil
	}

	raw, _ := io.ReadAll(resp.Body)
	snippet := []rune(string(raw))
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	se := &StatusError{
		Label:   o.Label,
		Status:  resp.StatusCode,
		URL:     url,
		Snippet: string(snippet),
	}
	se.RetryAfter, se.HasRetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), f.now())
	if !se.Retryable() {
		return nil, Permanent(se)
	}
	return nil, se
}

func (f *Fetcher) merge(o Options) Options {
	if o.Label == "" {
		o.Label = f.defaults.Label
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = f.defaults.MaxAttempts
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = f.defaults.BaseDelay
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = f.defaults.MaxDelay
	}
	if o.MinSpacing == 0 {
		o.MinSpacing = f.defaults.MinSpacing
	}
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	return o
}
