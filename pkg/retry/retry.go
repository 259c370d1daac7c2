package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"leadcolor/internal/config"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) IsFatal() bool { return true }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// Policy describes an exponential backoff. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	// Jitter is passed to backoff as the randomization factor; zero gives exact delays.
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// ConstantPolicy retries attempts times with a fixed delay between calls.
func ConstantPolicy(attempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: delay,
		MaxInterval:     delay,
		Multiplier:      1,
	}
}

// Overlay replaces the fields of base that cfg sets.
func Overlay(base Policy, cfg config.RetryConfig) Policy {
	if cfg.MaxAttempts > 0 {
		base.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		base.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		base.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		base.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		base.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return base
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback runs fn until it succeeds, returns a fatal error, the
// policy is exhausted or ctx is done. onRetry fires before each sleep.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}

	b := backoff.WithMaxRetries(
		backoff.WithContext(newBackOff(policy), ctx),
		uint64(policy.MaxAttempts-1),
	)

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempt := 0
	notify := func(err error, next time.Duration) {
		attempt++
		if onRetry != nil {
			onRetry(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(ctxErr, err)
	}
	return err
}

func isFatal(err error) bool {
	var fatalErr FatalError
	if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
		return true
	}
	var retryableErr RetryableError
	if errors.As(err, &retryableErr) {
		return !retryableErr.IsRetryable()
	}
	return false
}
