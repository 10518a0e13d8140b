// Package resilience classifies application failures into a fixed taxonomy and
// retries operations with exponential backoff.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 1s.
	InitialDelay time.Duration

	// Multiplier scales the delay after each retry. Default: 2.0.
	Multiplier float64

	// MaxDelay caps the delay. Zero leaves it uncapped.
	MaxDelay time.Duration

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%). Default: 0.
	JitterFraction float64

	// ShouldRetry limits which errors are retried. If nil, every error is.
	// Errors it rejects are returned on first occurrence without delay.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the attempt that just
	// failed, its error and the delay about to be slept.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Operation names the retried call in log lines.
	Operation string

	// Log receives one line per attempt and failure. Nil disables logging.
	Log *zap.Logger
}

// DefaultRetryConfig mirrors the configuration defaults: 3 attempts, 1s, x2.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}
}

// Do executes fn, retrying failures accepted by ShouldRetry with exponential
// backoff. The last error is returned unchanged once attempts are exhausted.
// Context cancellation stops retries immediately.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is like Do but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)
	log := cfg.Log.With(zap.String("operation", cfg.Operation))

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		log.Info("attempt", zap.Int("attempt", attempt), zap.Int("max_attempts", cfg.MaxAttempts))

		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !cfg.ShouldRetry(err) {
			log.Warn("attempt failed, not retryable", zap.Int("attempt", attempt), zap.Error(err))
			return zero, err
		}
		log.Warn("attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, err
		}

		if attempt == cfg.MaxAttempts {
			log.Error("all attempts failed", zap.Int("max_attempts", cfg.MaxAttempts))
			break
		}

		delay := computeBackoff(attempt-1, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.Info("retrying", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = func(error) bool { return true }
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return cfg
}

// computeBackoff returns InitialDelay * Multiplier^retry, where retry counts
// from zero for the sleep after the first failed attempt.
func computeBackoff(retry int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(retry))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// Apply jitter: ±JitterFraction of delay.
	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
