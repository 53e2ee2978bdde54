package prices

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseboard/internal/fetch"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\r\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		fmt.Fprintf(&b, "%s,1,2,0.5,%d.25,1000\r\n", d, i)
	}
	return b.String()
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "nvda.us", Symbol("NVDA"))
	assert.Equal(t, "brk.us", Symbol("BRK"))
}

func TestParseCSVKeepsLastWindowInOrder(t *testing.T) {
	points := ParseCSV(csvRows(50), DefaultWindow)
	require.Len(t, points, 35)
	assert.Equal(t, "2024-01-16", points[0].Date)
	assert.Equal(t, 15.25, points[0].Close)
	assert.Equal(t, "2024-02-19", points[34].Date)
	assert.True(t, sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Date < points[j].Date }))
}

func TestParseCSVSkipsInvalidRows(t *testing.T) {
	text := strings.Join([]string{
		"Date,Open,High,Low,Close",
		"2024-01-01,1,2,3,10.5",
		"2024-01-02,1,2,3",      // too few columns
		",1,2,3,11",             // empty date
		"2024-01-03,1,2,3,n/a",  // not a number
		"2024-01-04,1,2,3,",     // empty close
		"2024-01-05,1,2,3,Inf",  // not finite
		"2024-01-06,1,2,3, 12 ", // whitespace tolerated
	}, "\n")
	points := ParseCSV(text, DefaultWindow)
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.Equal(t, 12.0, points[1].Close)
}

func TestParseCSVHeaderOnlyOrEmpty(t *testing.T) {
	assert.Empty(t, ParseCSV("", DefaultWindow))
	assert.Empty(t, ParseCSV("No data", DefaultWindow))
	assert.NotNil(t, ParseCSV("Date,Open,High,Low,Close\n", DefaultWindow))
}

func TestParseCSVLengthNeverExceedsWindow(t *testing.T) {
	for _, n := range []int{0, 1, 34, 35, 36, 400} {
		assert.LessOrEqual(t, len(ParseCSV(csvRows(n), DefaultWindow)), 35, n)
	}
}

func newTestFetcher() *fetch.Fetcher {
	return fetch.New(nil, fetch.Options{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, quietLog())
}

func TestHistoryRequestsMarketSymbol(t *testing.T) {
	var gotSymbol, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("s")
		gotInterval = r.URL.Query().Get("i")
		_, _ = io.WriteString(w, csvRows(3))
	}))
	defer srv.Close()

	l := NewLoader(newTestFetcher(), Config{BaseURL: srv.URL + "/q/d/l/", MinSpacing: time.Millisecond}, quietLog())
	points := l.History(context.Background(), "MSFT")
	assert.Equal(t, "msft.us", gotSymbol)
	assert.Equal(t, "d", gotInterval)
	assert.Len(t, points, 3)
}

func TestHistoryAbsorbsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := NewLoader(newTestFetcher(), Config{BaseURL: srv.URL, MinSpacing: time.Millisecond}, quietLog())
	points := l.History(context.Background(), "XOM")
	require.NotNil(t, points)
	assert.Empty(t, points)
}
