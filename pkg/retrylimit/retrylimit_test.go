package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string   { return http.StatusText(int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestWithRetryConfig_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return statusErr(http.StatusInternalServerError)
		}
		return nil
	}, nil, fastConfig())

	if err != nil {
		t.Fatalf("WithRetryConfig() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryConfig_FatalStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("forbidden")
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return &FatalError{Err: cause}
	}, nil, fastConfig())

	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want %v", err, cause)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetryConfig_GivesUp(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cause := errors.New("nope")

	err := WithRetryConfig(context.Background(), func() error { return cause }, nil, cfg)
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapped %v", err, cause)
	}
}

func TestAdaptiveLimiter_BacksOffOnRateLimit(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)

	_ = WithRetryConfig(context.Background(), func() error {
		return &FatalError{Err: statusErr(http.StatusForbidden)}
	}, lim, fastConfig())
	if got := lim.CurrentLimit(); got != 4 {
		t.Errorf("limit after fatal error = %v, want unchanged 4", got)
	}

	calls := 0
	_ = WithRetryConfig(context.Background(), func() error {
		calls++
		if calls == 1 {
			return statusErr(http.StatusTooManyRequests)
		}
		return nil
	}, lim, fastConfig())
	if got := lim.CurrentLimit(); got != 2 {
		t.Errorf("limit after 429 = %v, want 2", got)
	}

	lim.RateLimited()
	lim.RateLimited()
	if got := lim.CurrentLimit(); got != 1 {
		t.Errorf("limit = %v, want clamped to min 1", got)
	}
}
