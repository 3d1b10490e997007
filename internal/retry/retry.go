// Package retry provides exponential backoff retry for transient failures.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/stream-indexer/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns a default retry configuration.
// Pattern: 500ms, 1s, 2s, capped at 10s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// WithExponentialBackoff executes fn with exponential backoff, returning the
// last error once attempts are exhausted or the context is cancelled.
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) error {
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= config.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := calculateDelay(config, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// WithRetry executes fn with the default retry configuration
func WithRetry(ctx context.Context, fn RetryFunc) error {
	return WithExponentialBackoff(ctx, DefaultRetryConfig(), fn)
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
