// Package resilience implements the retry discipline for model-backend and
// network calls: a fixed number of attempts with a fixed inter-attempt delay.
// Exhausted retries surface the last error; callers degrade the affected
// field rather than aborting the pipeline.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config controls retry behavior.
type Config struct {
	// Attempts is the total number of attempts including the first try.
	// A value of 1 means no retries. Default: 3.
	Attempts int

	// Delay is the fixed pause between consecutive attempts. Default: 3s.
	Delay time.Duration

	// OnRetry is called before each retry sleep with the attempt number
	// and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns the standard retry configuration for enrichment
// calls: three attempts, three seconds apart.
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Delay <= 0 {
		c.Delay = 3 * time.Second
	}
	return c
}

// Do executes fn until it succeeds or attempts are exhausted. Context
// cancellation stops retrying immediately and returns the last error.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if attempt >= cfg.Attempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// Logger returns an OnRetry callback that logs each retry attempt.
func Logger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
