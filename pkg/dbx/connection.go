package dbx

import (
	"context"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
)

// IsolationLevel is the transaction isolation level. The zero value is ReadCommitted.
type IsolationLevel int

const (
	ReadCommitted IsolationLevel = iota
	ReadUncommitted
	RepeatableRead
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "read-uncommitted"
	case RepeatableRead:
		return "repeatable-read"
	case Serializable:
		return "serializable"
	default:
		return "read-committed"
	}
}

// ParseIsolationLevel parses the names produced by IsolationLevel.String.
// Spaces and underscores are accepted in place of dashes; an empty string is ReadCommitted.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)

	switch normalized {
	case "", "read-committed":
		return ReadCommitted, nil
	case "read-uncommitted":
		return ReadUncommitted, nil
	case "repeatable-read":
		return RepeatableRead, nil
	case "serializable":
		return Serializable, nil
	default:
		return ReadCommitted, errorx.NewUsageError("unknown isolation level '%s'", s)
	}
}

// ConnectionProvider creates connections. Every call returns a fresh, unopened handle;
// handles are never reused across executions.
type ConnectionProvider interface {
	NewConnection() (Connection, error)
}

// TransientClassifier is implemented by providers that know which of their errors are worth retrying.
// Executors fall back to it when no predicate is configured.
type TransientClassifier interface {
	IsTransient(err error) bool
}

// BackOffProvider is implemented by providers with a default delay between two attempts.
// Executors fall back to it when no backoff is configured.
type BackOffProvider interface {
	NewBackOff() backoff.BackOff
}

// Connection is a single physical connection, scoped to one transactional attempt.
type Connection interface {
	// Open acquires the underlying connection.
	Open(ctx context.Context) error
	// BeginTx starts a transaction on the open connection.
	BeginTx(ctx context.Context, level IsolationLevel) (Transaction, error)
	// Close releases the connection. It is safe to call more than once, and on a handle never opened.
	Close(ctx context.Context) error
}

// Transaction runs commands inside one database transaction.
// Implementations apply each command's own timeout.
type Transaction interface {
	Query(ctx context.Context, cmd Command) (Rows, error)
	Exec(ctx context.Context, cmd Command) (ExecResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ExecResult is the outcome of a non-query command.
type ExecResult struct {
	RowsAffected int64
	// Outputs holds the values of the first returned row by column name.
	// It is only filled when the command has output parameters.
	Outputs map[string]any
}

// Row is the view of the current row handed to a RowMapper.
type Row interface {
	Columns() []string
	Values() ([]any, error)
	Scan(dest ...any) error
}

// Rows is a forward-only cursor over a command result.
type Rows interface {
	Row
	Next() bool
	Err() error
	Close()
}
