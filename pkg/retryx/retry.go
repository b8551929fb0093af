// Package retryx runs an operation again while its error is classified as transient.
package retryx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
)

// TransientPredicate reports whether err is transient.
// Returning true allows another attempt, returning false stops retrying.
type TransientPredicate func(err error) bool

// OnRetryFunc is called before every retry with the number of failed attempts so far,
// the error of the last attempt and the delay about to be waited.
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Policy is the retry configuration of one operation.
//
// With MaxRetries = R and a predicate that always returns true, an operation that keeps failing
// runs exactly R+1 times. A nil IsTransient never retries. A nil NewBackOff retries without delay.
type Policy struct {
	MaxRetries  int
	IsTransient TransientPredicate
	NewBackOff  func() backoff.BackOff
	OnRetry     OnRetryFunc
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxRetries sets the number of retries after the first attempt. Negative values are treated as 0.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n < 0 {
			n = 0
		}
		p.MaxRetries = n
	}
}

// WithTransientPredicate sets the predicate deciding whether an error is retried.
func WithTransientPredicate(fn TransientPredicate) Option {
	return func(p *Policy) {
		p.IsTransient = fn
	}
}

// WithBackOff sets the factory of the delay between attempts. A new BackOff is created for every operation.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(p *Policy) {
		p.NewBackOff = fn
	}
}

// WithOnRetry sets a hook called before every retry.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(p *Policy) {
		p.OnRetry = fn
	}
}

// NewPolicy creates a Policy. With no options it never retries.
func NewPolicy(opts ...Option) Policy {
	var p Policy
	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// Do runs op until it succeeds, fails with a non-transient error, or MaxRetries is exhausted.
//
// Usage errors are returned as they are. When ctx is done after a failed attempt, Do returns
// a CancellationError carrying the context error and the error of that attempt, and never
// starts another attempt. Backoff waits are interrupted by ctx as well.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// DoValue is Do for operations returning a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var b backoff.BackOff
	if p.NewBackOff != nil {
		b = p.NewBackOff()
		b.Reset()
	}

	count := 0
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if errorx.IsUsageError(err) {
			return result, err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, errorx.NewCancellationError(ctxErr, err)
		}

		count++
		if count > p.MaxRetries || p.IsTransient == nil || !p.IsTransient(err) {
			return result, err
		}

		var delay time.Duration
		if b != nil {
			delay = b.NextBackOff()
			if delay == backoff.Stop {
				return result, err
			}
		}

		if p.OnRetry != nil {
			p.OnRetry(count, err, delay)
		}

		if delay > 0 {
			if waitErr := wait(ctx, delay); waitErr != nil {
				return result, errorx.NewCancellationError(waitErr, err)
			}
		}
	}
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExponentialBackOff returns a factory of exponential backoffs. Zero values keep the library defaults;
// a zero maxElapsed means no elapsed time limit, since MaxRetries already bounds the attempts.
func ExponentialBackOff(initial, maxInterval time.Duration, multiplier float64, maxElapsed time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		if initial > 0 {
			b.InitialInterval = initial
		}
		if maxInterval > 0 {
			b.MaxInterval = maxInterval
		}
		if multiplier > 0 {
			b.Multiplier = multiplier
		}
		b.MaxElapsedTime = maxElapsed
		b.Reset()

		return b
	}
}
