// Package retrylimit retries flaky remote calls behind a request rate that
// shrinks when the remote pushes back and grows again once it recovers.
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5)
//	video, err := retrylimit.Do(ctx, lim, retrylimit.DefaultRetryConfig(), func() (*Video, error) {
//		return client.GetVideoContext(ctx, id)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// The rate only climbs again after this long without being throttled.
const recoveryWindow = 10 * time.Second

// AdaptiveLimiter is a token bucket whose rate moves between min and max:
// up by stepUp after a success, multiplied by stepDown when throttled.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	throttled time.Time
}

func NewAdaptiveLimiter(initial, lo, hi, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	initial = max(initial, 1)
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burstFor(initial)),
		min:      max(lo, 1),
		max:      hi,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.throttled) > recoveryWindow {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.throttled = time.Now()
	a.setLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit reports the rate in requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) {
	l = min(max(l, a.min), a.max)
	if l == a.limiter.Limit() {
		return
	}
	a.limiter.SetLimit(l)
	a.limiter.SetBurst(burstFor(l))
}

func burstFor(l rate.Limit) int { return max(1, int(l)) }

// HTTPError is implemented by errors that carry a response status.
type HTTPError interface {
	error
	StatusCode() int
}

// StatusError reports an unexpected response status for URL.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) StatusCode() int { return e.Code }

// FatalError stops the retry loop at once.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as permanent. Fatal(nil) is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func statusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return 0
}

func throttled(err error) bool { return statusOf(err) == http.StatusTooManyRequests }

func serverError(err error) bool {
	code := statusOf(err)
	return code >= 500 && code < 600
}

// DefaultClassifier slows the limiter down on 429 and 5xx responses.
func DefaultClassifier(err error) bool {
	return throttled(err) || serverError(err)
}

type RetryConfig struct {
	// MaxAttempts of zero means 100.
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	// Jitter stretches each backoff by up to a quarter.
	Jitter bool
	// ErrorClassifier decides which failures lower the limiter's rate.
	ErrorClassifier func(error) bool
	Logger          *zap.Logger
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     100,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		RateLimitDelay:  100 * time.Millisecond,
		Multiplier:      2,
		Jitter:          true,
		ErrorClassifier: DefaultClassifier,
	}
}

// WithRetryConfig calls fn until it succeeds, returns a FatalError, ctx ends
// or the attempts run out. A 429 waits RateLimitDelay; other failures back
// off exponentially up to MaxDelay. lim may be nil.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 100
	}
	if cfg.ErrorClassifier == nil {
		cfg.ErrorClassifier = DefaultClassifier
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	backoff := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		if err = fn(); err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Debug("Call succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}

		if lim != nil && cfg.ErrorClassifier(err) {
			lim.RateLimited()
		}

		pause := cfg.RateLimitDelay
		if !throttled(err) {
			pause = backoff
			if cfg.Jitter && pause > 0 {
				pause += rand.N(pause/4 + 1)
			}
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
			if cfg.MaxDelay > 0 {
				backoff = min(backoff, cfg.MaxDelay)
			}
		}
		log.Debug("Call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("pause", pause),
			zap.Error(err))

		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, err)
}

// Do runs fn through WithRetryConfig and hands back its value. A fatal
// error is returned unwrapped.
func Do[T any](ctx context.Context, lim *AdaptiveLimiter, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var out T
	err := WithRetryConfig(ctx, func() error {
		v, err := fn()
		if err == nil {
			out = v
		}
		return err
	}, lim, cfg)

	var fatal *FatalError
	if errors.As(err, &fatal) {
		return out, fatal.Err
	}
	return out, err
}
