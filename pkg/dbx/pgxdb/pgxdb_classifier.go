package pgxdb

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcodd23/go-micro-dbcmd/pkg/configx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/retryx"
)

// ErrorKind is the structured classification of a PostgreSQL error.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnection
	KindSerialization
	KindDeadlock
	KindLockNotAvailable
	KindInsufficientResources
	KindOperatorIntervention
	KindTimeout
	KindNetwork
	KindConstraint
	KindSyntax
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSerialization:
		return "serialization"
	case KindDeadlock:
		return "deadlock"
	case KindLockNotAvailable:
		return "lock-not-available"
	case KindInsufficientResources:
		return "insufficient-resources"
	case KindOperatorIntervention:
		return "operator-intervention"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindConstraint:
		return "constraint"
	case KindSyntax:
		return "syntax"
	default:
		return "unknown"
	}
}

// IsTransient reports whether errors of this kind are worth retrying.
func (k ErrorKind) IsTransient() bool {
	switch k {
	case KindConnection, KindSerialization, KindDeadlock, KindLockNotAvailable,
		KindInsufficientResources, KindOperatorIntervention, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
	pgCodeQueryCanceled        = "57014"
)

// ClassifyError maps err to an ErrorKind. Wrapped errors are inspected through errors.As.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgCode(pgErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return KindTimeout
	}

	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	if isNetworkError(err) {
		return KindNetwork
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}

	return KindUnknown
}

func classifyPgCode(code string) ErrorKind {
	switch code {
	case pgCodeSerializationFailure:
		return KindSerialization
	case pgCodeDeadlockDetected:
		return KindDeadlock
	case pgCodeLockNotAvailable:
		return KindLockNotAvailable
	case pgCodeQueryCanceled:
		return KindTimeout
	}

	switch {
	// Class 08 - Connection Exception
	case strings.HasPrefix(code, "08"):
		return KindConnection
	// Class 53 - Insufficient Resources
	case strings.HasPrefix(code, "53"):
		return KindInsufficientResources
	// Class 57 - Operator Intervention
	case strings.HasPrefix(code, "57"):
		return KindOperatorIntervention
	// Class 23 - Integrity Constraint Violation
	case strings.HasPrefix(code, "23"):
		return KindConstraint
	// Class 42 - Syntax Error or Access Rule Violation
	case strings.HasPrefix(code, "42"):
		return KindSyntax
	}

	return KindUnknown
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}

		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}

	return false
}

// IsTransientError is the PostgreSQL retryx.TransientPredicate: true means the error is worth retrying.
func IsTransientError(err error) bool {
	return ClassifyError(err).IsTransient()
}

// Default exponential delay between attempts, used when no BackoffConfig is given.
var (
	DefaultInitialInterval = backoff.DefaultInitialInterval
	DefaultMaxInterval     = 10 * time.Second
	DefaultMultiplier      = backoff.DefaultMultiplier
)

// DefaultBackOff returns the factory of the exponential delay between two attempts,
// configured by cfg or by the defaults when cfg is nil.
func DefaultBackOff(cfg *configx.BackoffConfig) func() backoff.BackOff {
	if cfg == nil {
		return retryx.ExponentialBackOff(DefaultInitialInterval, DefaultMaxInterval, DefaultMultiplier, 0)
	}

	return retryx.ExponentialBackOff(cfg.InitialInterval, cfg.MaxInterval, cfg.Multiplier, cfg.MaxElapsedTime)
}

// NewRetryPolicy returns the PostgreSQL retry policy: IsTransientError as predicate and
// DefaultBackOff(cfg) between attempts.
func NewRetryPolicy(maxRetries int, cfg *configx.BackoffConfig, opts ...retryx.Option) retryx.Policy {
	base := []retryx.Option{
		retryx.WithMaxRetries(maxRetries),
		retryx.WithTransientPredicate(IsTransientError),
		retryx.WithBackOff(DefaultBackOff(cfg)),
	}

	return retryx.NewPolicy(append(base, opts...)...)
}
