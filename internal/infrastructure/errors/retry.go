package errors

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// RetryLogger defines the interface for logging retry operations
type RetryLogger interface {
	Printf(format string, v ...interface{})
}

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts     int           // Maximum number of attempts
	InitialDelay    time.Duration // Initial delay between retries
	MaxDelay        time.Duration // Maximum delay between retries
	BackoffFactor   float64       // Exponential backoff factor
	Jitter          bool          // Whether to add jitter to delays
	RetryableErrors []ErrorCode   // Specific error codes to retry
}

var retryLogger RetryLogger

// DefaultRetryConfig suits journal writes: a few quick attempts on lock contention
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		RetryableErrors: []ErrorCode{
			ErrCodeBusy,
			ErrCodeConnection,
			ErrCodeTimeout,
		},
	}
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// SetRetryLogger sets the package-level logger for retry operations
func SetRetryLogger(logger RetryLogger) {
	retryLogger = logger
}

func logRetryMessage(format string, v ...interface{}) {
	if retryLogger != nil {
		retryLogger.Printf(format, v...)
	}
}

// WithRetry runs operation until it succeeds, returns a non-retryable error,
// exhausts MaxAttempts or ctx is done.
func WithRetry(ctx context.Context, config *RetryConfig, operation RetryableOperation, operationName string) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				logRetryMessage("Operation '%s' succeeded after %d attempts", operationName, attempt+1)
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err, config) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateDelay(attempt, config)
		logRetryMessage("Operation '%s' failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt+1, config.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation '%s' cancelled during retry: %w", operationName, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation '%s' failed after %d attempts: %w", operationName, config.MaxAttempts, lastErr)
}

func shouldRetry(err error, config *RetryConfig) bool {
	var bridgeErr *BridgeError
	if !errors.As(err, &bridgeErr) {
		return false
	}
	if !bridgeErr.IsRetryable() {
		return false
	}
	return slices.Contains(config.RetryableErrors, bridgeErr.Code)
}

func calculateDelay(attempt int, config *RetryConfig) time.Duration {
	multiplier := 1.0
	for range attempt {
		multiplier *= config.BackoffFactor
	}

	delay := time.Duration(float64(config.InitialDelay) * multiplier)

	// up to 25% jitter, applied before the cap
	if config.Jitter && delay > 0 {
		jitterAmount := time.Duration(float64(delay) * 0.25)
		if jitterAmount > 0 {
			delay += time.Duration(time.Now().UnixNano() % int64(jitterAmount))
		}
	}

	return min(delay, config.MaxDelay)
}
