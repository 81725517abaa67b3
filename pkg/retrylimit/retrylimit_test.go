package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig(max int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    max,
		InitialDelay:   time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		RateLimitDelay: time.Millisecond,
		Multiplier:     2,
	}
}

func TestDoReturnsValueAfterRetries(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), nil, fastConfig(5), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do = %q, %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnFatal(t *testing.T) {
	notFound := errors.New("video unavailable")
	calls := 0
	_, err := Do(context.Background(), nil, fastConfig(5), func() (int, error) {
		calls++
		return 0, Fatal(notFound)
	})
	if !errors.Is(err, notFound) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Do(context.Background(), nil, fastConfig(2), func() (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestRateLimitedLowersLimit(t *testing.T) {
	lim := NewAdaptiveLimiter(100, 1, 100, 1, 0.5)
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &StatusError{Code: http.StatusTooManyRequests, URL: "https://example.com"}
		}
		return nil
	}, lim, fastConfig(3))
	if err != nil {
		t.Fatal(err)
	}
	if got := lim.CurrentLimit(); got >= 100 {
		t.Fatalf("limit = %v, want lowered", got)
	}
}

func TestContextCancelStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetryConfig(ctx, func() error { return errors.New("never") }, nil, fastConfig(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestClassifier(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{Code: 429}, true},
		{&StatusError{Code: 503}, true},
		{&StatusError{Code: 404}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := DefaultClassifier(tt.err); got != tt.want {
			t.Errorf("DefaultClassifier(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should be nil")
	}
}
