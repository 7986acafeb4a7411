package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"appscanner/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingRetryLogger struct {
	messages []string
}

func (c *capturingRetryLogger) Printf(format string, v ...interface{}) {
	c.messages = append(c.messages, format)
}

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: []ErrorCode{ErrCodeBusy},
	}
}

func TestWithRetry_SucceedsAfterBusy(t *testing.T) {
	logger := &capturingRetryLogger{}
	SetRetryLogger(logger)
	t.Cleanup(func() { SetRetryLogger(nil) })

	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return New("insert", errors.New("database is locked"), ErrCodeBusy)
		}
		return nil
	}, "insert")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, logger.messages, 3)
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		return New("insert", errors.New("bad"), ErrCodeConstraint)
	}, "insert")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_Exhausts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		return New("insert", errors.New("locked"), ErrCodeBusy)
	}, "insert")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.True(t, IsBusy(err))
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	err := WithRetry(ctx, cfg, func() error {
		return New("insert", errors.New("locked"), ErrCodeBusy)
	}, "insert")

	require.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelay_Capped(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 150 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(0, cfg))
	assert.Equal(t, 150*time.Millisecond, calculateDelay(3, cfg))
}

func TestLoggerBridge_ForwardsToLogger(t *testing.T) {
	logger := &testutils.RecordingLogger{}
	bridge := NewLoggerBridge(logger)

	bridge.Printf("attempt %d failed", 2)

	calls := logger.Calls("INFO")
	require.Len(t, calls, 1)
	assert.Equal(t, "attempt 2 failed", calls[0].Msg)
}
