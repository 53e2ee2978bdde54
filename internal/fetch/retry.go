package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
	DefaultMinSpacing  = 1100 * time.Millisecond
	maxJitter          = 250 * time.Millisecond
)

// DelayStrategy picks how long to wait before the next attempt.
// ok=false means the strategy has no opinion and the next one is consulted.
type DelayStrategy interface {
	Delay(attempt int, err error) (d time.Duration, ok bool)
}

// RetryAfterDelay honours a Retry-After header carried on a StatusError.
type RetryAfterDelay struct{}

func (RetryAfterDelay) Delay(_ int, err error) (time.Duration, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.HasRetryAfter {
		return se.RetryAfter, true
	}
	return 0, false
}

// ExponentialJitter is min(Max, Base*2^(attempt-1)) plus a uniform jitter in [0, 250ms).
type ExponentialJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter func() time.Duration
}

func (e ExponentialJitter) Delay(attempt int, _ error) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	d := e.Max
	// Past 30 doublings the cap always wins; avoids shifting into overflow.
	if attempt-1 < 30 {
		if exp := e.Base * time.Duration(int64(1)<<(attempt-1)); exp < e.Max {
			d = exp
		}
	}
	jitter := e.Jitter
	if jitter == nil {
		jitter = RandomJitter
	}
	return d + jitter(), true
}

// FirstOf consults strategies in order and uses the first answer.
func FirstOf(strategies ...DelayStrategy) DelayStrategy {
	return firstOf(strategies)
}

type firstOf []DelayStrategy

func (f firstOf) Delay(attempt int, err error) (time.Duration, bool) {
	for _, s := range f {
		if d, ok := s.Delay(attempt, err); ok {
			return d, true
		}
	}
	return 0, false
}

// RandomJitter returns a uniform duration in [0, 250ms).
func RandomJitter() time.Duration {
	return rand.N(maxJitter)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy bounds a retry loop.
type Policy struct {
	Label       string
	MaxAttempts int
	// MinSpacing is slept before every attempt, the first included, to pace bursts.
	MinSpacing time.Duration
	Delay      DelayStrategy
	Sleep      func(ctx context.Context, d time.Duration) error
	Log        *slog.Logger
}

// DefaultPolicy returns the pacing used for every upstream call: Retry-After when
// the server sends one, exponential backoff with jitter otherwise.
func DefaultPolicy(label string) Policy {
	return Policy{
		Label:       label,
		MaxAttempts: DefaultMaxAttempts,
		MinSpacing:  DefaultMinSpacing,
		Delay: FirstOf(
			RetryAfterDelay{},
			ExponentialJitter{Base: DefaultBaseDelay, Max: DefaultMaxDelay},
		),
	}
}

// Retry runs work until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Attempts are strictly sequential.
func Retry[T any](ctx context.Context, p Policy, work func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	delay := p.Delay
	if delay == nil {
		delay = ExponentialJitter{Base: DefaultBaseDelay, Max: DefaultMaxDelay}
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := sleep(ctx, p.MinSpacing); err != nil {
			return zero, err
		}

		v, err := work(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, err
		}
		if !IsRetryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		d, _ := delay.Delay(attempt, err)
		args := []any{"stage", p.Label, "attempt", attempt, "max_attempts", maxAttempts, "delay_ms", d.Milliseconds()}
		var se *StatusError
		if errors.As(err, &se) {
			args = append(args, "status", se.Status)
		} else {
			args = append(args, "error", err.Error())
		}
		log.Warn("attempt failed, retrying", args...)

		if err := sleep(ctx, d); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrAttemptsExhausted, lastErr)
}

// ParseRetryAfter reads a Retry-After value given either as seconds or as an
// HTTP-date. Dates in the past yield zero.
func ParseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(header)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
