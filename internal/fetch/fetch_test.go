package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestFetcher() (*Fetcher, *[]time.Duration) {
	f := New(nil, Options{MinSpacing: 10 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	slept := &[]time.Duration{}
	f.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	f.jitter = func() time.Duration { return 0 }
	f.now = func() time.Time { return fixedNow }
	return f, slept
}

func TestFetchJSONSuccessPacesFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok","n":3}`)
	}))
	defer srv.Close()

	f, slept := newTestFetcher()
	var out struct {
		Status string `json:"status"`
		N      int    `json:"n"`
	}
	require.NoError(t, f.JSON(context.Background(), srv.URL, Options{Label: "news:ai"}, &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, 3, out.N)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, *slept)
}

func TestFetchRetriesTransientStatusWithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "date,open,high,low,close\n")
	}))
	defer srv.Close()

	f, slept := newTestFetcher()
	text, err := f.Text(context.Background(), srv.URL, Options{Label: "stooq:NVDA"})
	require.NoError(t, err)
	assert.Equal(t, "date,open,high,low,close\n", text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	spacing := 10 * time.Millisecond
	assert.Equal(t, []time.Duration{
		spacing, 500 * time.Millisecond,
		spacing, time.Second,
		spacing,
	}, *slept)
}

func TestFetchNonRetryableStatusFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"status":"error","code":"apiKeyInvalid"}`+strings.Repeat("x", 400))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	_, err := f.Text(context.Background(), srv.URL+"/v2/everything", Options{Label: "news:energy"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.False(t, errors.Is(err, ErrAttemptsExhausted))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Len(t, []rune(se.Snippet), 200)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), srv.URL+"/v2/everything")
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestFetchHonoursRetryAfterSeconds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	f, slept := newTestFetcher()
	_, err := f.Text(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	require.Len(t, *slept, 3)
	assert.Equal(t, 3*time.Second, (*slept)[1])
}

func TestFetchHonoursRetryAfterDate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", fixedNow.Add(7*time.Second).Format(http.TimeFormat))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	f, slept := newTestFetcher()
	_, err := f.Text(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	require.Len(t, *slept, 3)
	assert.Equal(t, 7*time.Second, (*slept)[1])
}

func TestFetchExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	_, err := f.Text(context.Background(), srv.URL, Options{Label: "news:ai"})
	require.Error(t, err)
	assert.EqualValues(t, DefaultMaxAttempts, atomic.LoadInt32(&calls))
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	assert.Contains(t, err.Error(), "[news:ai]")
	assert.Contains(t, err.Error(), srv.URL)
}

func TestFetchRetriesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f, slept := newTestFetcher()
	_, err := f.Text(context.Background(), url, Options{Label: "stooq:AMD", MaxAttempts: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	// spacing, backoff, spacing
	assert.Len(t, *slept, 3)
}

func TestFetchResendsBodyOnEveryAttempt(t *testing.T) {
	var calls int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	var out map[string]any
	err := f.JSON(context.Background(), srv.URL, Options{
		Method: http.MethodPost,
		Header: http.Header{"Authorization": []string{"Bearer k"}},
		Body:   []byte(`{"model":"m"}`),
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"model":"m"}`, `{"model":"m"}`}, bodies)
}

func TestExponentialJitterIsCapped(t *testing.T) {
	s := ExponentialJitter{Base: 500 * time.Millisecond, Max: 8 * time.Second, Jitter: func() time.Duration { return 100 * time.Millisecond }}
	want := []time.Duration{600 * time.Millisecond, 1100 * time.Millisecond, 2100 * time.Millisecond, 4100 * time.Millisecond, 8100 * time.Millisecond, 8100 * time.Millisecond}
	for i, w := range want {
		d, ok := s.Delay(i+1, nil)
		assert.True(t, ok)
		assert.Equal(t, w, d, "attempt %d", i+1)
	}
	d, _ := s.Delay(80, nil)
	assert.Equal(t, 8100*time.Millisecond, d)
}

func TestRandomJitterRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		j := RandomJitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 250*time.Millisecond)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"5", 5 * time.Second, true},
		{" 2 ", 2 * time.Second, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"soon", 0, false},
		{fixedNow.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second, true},
		{fixedNow.Add(-time.Hour).Format(http.TimeFormat), 0, true},
	}
	for _, c := range cases {
		got, ok := ParseRetryAfter(c.in, fixedNow)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	p := Policy{Label: "x", MaxAttempts: 4, Sleep: func(context.Context, time.Duration) error { return nil }}
	_, err := Retry(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, Permanent(errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryReturnsValue(t *testing.T) {
	p := Policy{Label: "x", MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	v, err := Retry(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		if attempt < 2 {
			return "", errors.New("connection reset")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
