package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/idguard/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("transient")

	tests := []struct {
		failUntil    int
		err          error
		wantErr      error
		name         string
		wantAttempts int
	}{
		{name: "first try", failUntil: 0, wantAttempts: 1},
		{name: "recovers", failUntil: 2, err: transient, wantAttempts: 3},
		{name: "exhausted", failUntil: 10, err: transient, wantAttempts: 3, wantErr: ErrMaxRetries},
		{
			name:         "not retryable",
			failUntil:    10,
			err:          &RetryableError{Err: transient, Retryable: false},
			wantAttempts: 1,
			wantErr:      transient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := WithRetry(context.Background(), func(attempt int) error {
				attempts = attempt
				if attempt <= tt.failUntil {
					return tt.err
				}
				return nil
			}, fastRetry(3))

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithRetry(ctx, func(int) error {
		called = true
		return nil
	}, fastRetry(3))

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("timeout")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
}

func TestUserError(t *testing.T) {
	err := NewUserError("configuration is incomplete", ErrMissingConfig)

	assert.Equal(t, "configuration is incomplete: missing configuration", err.Error())
	assert.ErrorIs(t, err, ErrMissingConfig)

	var ue *UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "configuration is incomplete", ue.UserMessage)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelInfo, "json")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Fetched batch", "batch", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"batch":2`)

	_, err = NewLogger(&buf, slog.LevelInfo, "xml")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
