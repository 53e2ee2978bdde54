// Package prices loads end-of-day close series from the stooq CSV endpoint.
package prices

import (
	"context"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulseboard/internal/core"
	"pulseboard/internal/fetch"
)

const (
	DefaultBaseURL = "https://stooq.com/q/d/l/"
	// DefaultWindow keeps the theme documents small.
	DefaultWindow = 35
)

// Config configures a Loader.
type Config struct {
	BaseURL    string
	Window     int
	MinSpacing time.Duration
}

// Loader fetches price history. Failures are absorbed into an empty series.
type Loader struct {
	fetcher *fetch.Fetcher
	cfg     Config
	log     *slog.Logger
}

// NewLoader creates a Loader backed by the shared fetcher.
func NewLoader(f *fetch.Fetcher, cfg Config, log *slog.Logger) *Loader {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{fetcher: f, cfg: cfg, log: log}
}

// Symbol maps a ticker onto the US market symbol stooq expects.
func Symbol(ticker string) string {
	return strings.ToLower(ticker) + ".us"
}

// URL builds the daily CSV download URL for ticker.
func (l *Loader) URL(ticker string) string {
	q := url.Values{}
	q.Set("s", Symbol(ticker))
	q.Set("i", "d")
	return l.cfg.BaseURL + "?" + q.Encode()
}

// History returns up to Window most recent closes for ticker, oldest first.
// It never returns an error: a failed fetch yields an empty series.
func (l *Loader) History(ctx context.Context, ticker string) []core.PricePoint {
	label := "stooq:" + ticker
	csv, err := l.fetcher.Text(ctx, l.URL(ticker), fetch.Options{Label: label, MinSpacing: l.cfg.MinSpacing})
	if err != nil {
		l.log.Warn("failed after retries", "stage", label, "error", err.Error())
		return []core.PricePoint{}
	}

	points := ParseCSV(csv, l.cfg.Window)
	if len(points) == 0 {
		l.log.Warn("no CSV data", "stage", label)
	}
	return points
}

// ParseCSV reads a header row followed by date,open,high,low,close,... rows.
// Rows with fewer than five columns, an empty date, or a close that is not a
// finite number are skipped. Only the last window rows are kept.
func ParseCSV(text string, window int) []core.PricePoint {
	out := []core.PricePoint{}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return out
	}

	for _, line := range lines[1:] {
		cols := strings.Split(strings.TrimSuffix(line, "\r"), ",")
		if len(cols) < 5 {
			continue
		}
		date := strings.TrimSpace(cols[0])
		closeStr := strings.TrimSpace(cols[4])
		if date == "" || closeStr == "" {
			continue
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			continue
		}
		out = append(out, core.PricePoint{Date: date, Close: closePrice})
	}

	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}
