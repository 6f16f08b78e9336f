package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickConfig(max int) *Config {
	return &Config{
		MaxAttempts: max,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &errs.Error{Type: errs.ErrorTypeServerError, Code: 503, Message: "unavailable"}
		}
		return nil
	}, quickConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	cause := &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return cause
	}, quickConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, cause)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404, Message: "no archive"}
	}, quickConfig(5))

	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := quickConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: 50 * time.Millisecond}
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("flaky")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestDoRetriesRequestTimeouts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			// an http.Client timeout matches context.DeadlineExceeded
			return errs.Wrap(errs.ErrorTypeNetwork, fmt.Errorf("client timeout: %w", context.DeadlineExceeded), "GET /zipfiles/65/2016.01.zip")
		}
		return nil
	}, quickConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	timeout := errs.Wrap(errs.ErrorTypeNetwork, context.DeadlineExceeded, "GET")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), false},
		{"network timeout", timeout, true},
		{"not found", &errs.Error{Type: errs.ErrorTypeNotFound}, false},
		{"untyped", errors.New("flaky"), true},
	}
	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("DefaultRetryIf(%s) = %v, expected %v", tt.name, got, tt.want)
		}
	}
}

func TestDoUsesPolicyPerErrorType(t *testing.T) {
	rateLimited := &ConstantBackoff{Delay: 2 * time.Millisecond}
	policy := &ErrorTypeBackoff{
		NetworkErrorBackoff: &ConstantBackoff{Delay: time.Millisecond},
		RateLimitBackoff:    rateLimited,
		ServerErrorBackoff:  &ConstantBackoff{Delay: time.Millisecond},
		DefaultBackoff:      &ConstantBackoff{Delay: time.Millisecond},
	}

	var delays []time.Duration
	cfg := quickConfig(2)
	cfg.Policy = policy
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), func(ctx context.Context) error {
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429}
	}, cfg)

	assert.Equal(t, []time.Duration{2 * time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestErrorTypeBackoffDefaults(t *testing.T) {
	etb := NewErrorTypeBackoff()

	eb, ok := etb.ForType(errs.ErrorTypeRateLimit).(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, eb.BaseDelay)
	assert.Same(t, etb.DefaultBackoff, etb.ForType(errs.ErrorTypeParsing))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	body, err := DoWithResult(context.Background(), func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []byte("ok"), nil
	}, quickConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}
