package dbcmd

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marcodd23/go-micro-dbcmd/pkg/configx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/retryx"
)

// Options are the defaults a Client starts from, and returns to after every PushCommand and execution.
type Options struct {
	IsolationLevel dbx.IsolationLevel
	RetryCount     int
	IsTransient    retryx.TransientPredicate
	NewBackOff     func() backoff.BackOff
	CommandTimeout time.Duration
	CommandKind    dbx.CommandKind
}

// Option configures a Client.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		IsolationLevel: dbx.ReadCommitted,
		CommandTimeout: dbx.DefaultCommandTimeout,
		CommandKind:    dbx.CommandText,
	}
}

// WithIsolationLevel sets the default transaction isolation level.
func WithIsolationLevel(level dbx.IsolationLevel) Option {
	return func(o *Options) { o.IsolationLevel = level }
}

// WithRetryCount sets how many times a failed transaction is retried. Negative values are treated as 0.
func WithRetryCount(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.RetryCount = n
	}
}

// WithTransientPredicate sets the predicate deciding whether a failed transaction is retried.
// Without it the provider's dbx.TransientClassifier is used, if it implements one.
func WithTransientPredicate(fn retryx.TransientPredicate) Option {
	return func(o *Options) { o.IsTransient = fn }
}

// WithBackOff sets the delay between two attempts.
// Without it the provider's dbx.BackOffProvider is used, if it implements one.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *Options) { o.NewBackOff = fn }
}

// WithCommandTimeout sets the default timeout of every command. Non-positive values are ignored.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CommandTimeout = d
		}
	}
}

// WithCommandType sets the default kind of every command.
func WithCommandType(kind dbx.CommandKind) Option {
	return func(o *Options) { o.CommandKind = kind }
}

// OptionsFromConfig converts the executor configuration into Client options.
// A nil configuration yields no options.
func OptionsFromConfig(cfg *configx.ExecutorConfig) ([]Option, error) {
	if cfg == nil {
		return nil, nil
	}

	level, err := dbx.ParseIsolationLevel(cfg.IsolationLevel)
	if err != nil {
		return nil, errorx.NewGeneralErrorWrapper(err, "invalid executor configuration")
	}

	opts := []Option{
		WithIsolationLevel(level),
		WithRetryCount(cfg.RetryCount),
		WithCommandTimeout(cfg.CommandTimeout),
	}

	if b := cfg.Backoff; b != nil {
		opts = append(opts, WithBackOff(retryx.ExponentialBackOff(b.InitialInterval, b.MaxInterval, b.Multiplier, b.MaxElapsedTime)))
	}

	return opts, nil
}
