// Package news loads theme articles from the NewsAPI "everything" endpoint and
// filters them down to a clean, deduplicated list.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulseboard/internal/core"
	"pulseboard/internal/dedupe"
	"pulseboard/internal/fetch"
	"pulseboard/internal/relevance"
)

const (
	DefaultBaseURL  = "https://newsapi.org/v2/everything"
	DefaultPageSize = 50
	DefaultLanguage = "en"
)

// ErrMissingAPIKey is returned by NewClient when no API key is configured.
var ErrMissingAPIKey = errors.New("missing NEWSAPI_KEY")

// DefaultBlockedHosts are low-quality sources dropped from every theme.
var DefaultBlockedHosts = []string{"pypi.org", "alltoc.com"}

// Config configures a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	PageSize     int
	Language     string
	BlockedHosts []string
	StripHTML    bool
	MinSpacing   time.Duration
	Thresholds   relevance.Thresholds
}

// Client fetches and cleans articles for a theme.
type Client struct {
	fetcher *fetch.Fetcher
	cfg     Config
	blocked map[string]bool
	log     *slog.Logger
}

// NewClient validates cfg and fills defaults.
func NewClient(f *fetch.Fetcher, cfg Config, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.BlockedHosts == nil {
		cfg.BlockedHosts = DefaultBlockedHosts
	}
	if cfg.Thresholds == (relevance.Thresholds{}) {
		cfg.Thresholds = relevance.DefaultThresholds
	}
	if log == nil {
		log = slog.Default()
	}

	blocked := make(map[string]bool, len(cfg.BlockedHosts))
	for _, h := range cfg.BlockedHosts {
		blocked[strings.ToLower(h)] = true
	}
	return &Client{fetcher: f, cfg: cfg, blocked: blocked, log: log}, nil
}

type apiResponse struct {
	Status   string       `json:"status"`
	Articles []apiArticle `json:"articles"`
}

type apiArticle struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	PublishedAt *string `json:"publishedAt"`
	Source      *struct {
		Name *string `json:"name"`
	} `json:"source"`
}

// URL returns the search request URL for a theme.
func (c *Client) URL(theme string) string {
	q := url.Values{}
	if TitleOnly(theme) {
		q.Set("qInTitle", BuildQuery(theme))
	} else {
		q.Set("q", BuildQuery(theme))
		q.Set("searchIn", "title,description")
	}
	q.Set("language", c.cfg.Language)
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	q.Set("sortBy", "publishedAt")
	q.Set("apiKey", c.cfg.APIKey)
	return c.cfg.BaseURL + "?" + q.Encode()
}

// Fetch returns the cleaned articles for theme. An exhausted or non-retryable
// upstream failure is returned to the caller.
func (c *Client) Fetch(ctx context.Context, theme string) ([]core.Article, error) {
	label := "news:" + theme
	var resp apiResponse
	err := c.fetcher.JSON(ctx, c.URL(theme), fetch.Options{Label: label, MinSpacing: c.cfg.MinSpacing}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", theme, err)
	}

	articles := c.Clean(theme, resp.Articles)
	c.log.Info("news loaded",
		"stage", label,
		"raw", len(resp.Articles),
		"kept", len(articles))
	return articles, nil
}

// Clean applies the host denylist, theme relevance scoring and deduplication,
// and maps the survivors to the article shape written to disk.
func (c *Client) Clean(theme string, raw []apiArticle) []core.Article {
	mapped := make([]core.Article, 0, len(raw))
	for _, a := range raw {
		if a.URL == nil || *a.URL == "" || c.isBlocked(*a.URL) {
			continue
		}
		mapped = append(mapped, c.toArticle(a))
	}

	filtered := relevance.Filter(relevance.ForTheme(theme), mapped, c.cfg.Thresholds)
	return dedupe.Articles(filtered)
}

func (c *Client) isBlocked(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return true
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return c.blocked[host]
}

func (c *Client) toArticle(a apiArticle) core.Article {
	source := "Unknown"
	if a.Source != nil && a.Source.Name != nil {
		source = *a.Source.Name
	}
	desc := deref(a.Description)
	if c.cfg.StripHTML {
		desc = StripHTML(desc)
	}
	return core.Article{
		Title:       deref(a.Title),
		Description: desc,
		URL:         deref(a.URL),
		Source:      source,
		PublishedAt: deref(a.PublishedAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
