package studio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetrySucceedsAfterRateLimits(t *testing.T) {
	var delays []time.Duration
	r := Retry{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := r.run(context.Background(), discardLogger(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("http 429: slow down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestRetryStopsOnOtherErrors(t *testing.T) {
	slept := 0
	r := Retry{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(context.Context, time.Duration) error { slept++; return nil },
	}

	calls := 0
	wantErr := errors.New("invalid argument")
	err := r.run(context.Background(), discardLogger(), func(context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, slept)
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	r := Retry{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	calls := 0
	last := errors.New("quota exceeded for today")
	err := r.run(context.Background(), discardLogger(), func(context.Context) error {
		calls++
		return last
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, last, err)
}

func TestRetryZeroValueUsesDefaults(t *testing.T) {
	var delays []time.Duration
	r := Retry{Sleep: func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}}

	calls := 0
	_ = r.run(context.Background(), discardLogger(), func(context.Context) error {
		calls++
		return errors.New("RESOURCE_EXHAUSTED")
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestRetryHonorsContextDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := Retry{MaxAttempts: 3, BaseDelay: time.Minute}

	calls := 0
	err := r.run(ctx, discardLogger(), func(context.Context) error {
		calls++
		return errors.New("429")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status code in text", errors.New("googleapi: Error 429: too many requests"), true},
		{"quota substring", errors.New("Quota exceeded for quota metric"), true},
		{"resource exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), true},
		{"structured 429", genai.APIError{Code: 429, Message: "slow down"}, true},
		{"structured status", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, true},
		{"plain failure", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRateLimited(tc.err))
		})
	}
}

func TestPermissionClassification(t *testing.T) {
	assert.True(t, isPermissionDenied(errors.New("googleapi: Error 403: PERMISSION_DENIED")))
	assert.True(t, isPermissionDenied(genai.APIError{Code: 403, Message: "no access"}))
	assert.False(t, isPermissionDenied(errors.New("googleapi: Error 500: internal")))
	assert.False(t, isPermissionDenied(nil))
}
