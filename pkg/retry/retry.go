package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 500 * time.Millisecond
)

type Operation func() error

type ExponentialConfig struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	// MaxAttempts caps the number of calls when > 0.
	MaxAttempts uint64
	OnRetry     func(error, time.Duration)
}

// Permanent stops retrying and returns err unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Exponential calls fn with exponential backoff until it succeeds, returns a
// Permanent error, runs out of attempts or time, or ctx is done.
func Exponential(ctx context.Context, fn Operation, cfg ExponentialConfig) error {
	if cfg.InitialInterval <= 0 {
		return errors.New("initial interval must be > 0")
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	if cfg.MaxElapsedTime > 0 {
		exp.MaxElapsedTime = cfg.MaxElapsedTime
	}
	var bo backoff.BackOff = exp
	if cfg.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, cfg.MaxAttempts-1)
	}

	return backoff.RetryNotify(backoff.Operation(fn), backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		if cfg.OnRetry != nil {
			cfg.OnRetry(err, next)
		}
	})
}

// Constant calls fn up to attempts times, interval apart.
func Constant(ctx context.Context, fn Operation, interval time.Duration, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if i < attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: last error: %w", ctx.Err(), err)
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
