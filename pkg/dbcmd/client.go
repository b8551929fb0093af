// Package dbcmd queues parameterized commands and executes them in a single, retried transaction.
package dbcmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/retryx"
)

// noCopy makes go vet report copies of a Client.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Client builds commands and executes them in one transaction.
//
// The fluent setters only mutate the pending command and never touch the database.
// Invalid input is recorded and returned by the next execution, which still resets the Client.
// A Client belongs to one operation at a time: a second execution started while one is in
// flight fails with a usage error.
type Client struct {
	noCopy noCopy

	provider dbx.ConnectionProvider
	defaults Options

	text    string
	kind    dbx.CommandKind
	timeout time.Duration
	params  *dbx.ParameterSet
	queue   dbx.CommandQueue

	retryCount int
	isolation  dbx.IsolationLevel
	err        error

	inUse  atomic.Bool
	closed atomic.Bool
}

// Result is the outcome of an asynchronous execution.
type Result[T any] struct {
	Value T
	Err   error
}

// NewClient creates a Client bound to provider.
func NewClient(provider dbx.ConnectionProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, errorx.NewUsageError("connection provider cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		provider:   provider,
		defaults:   o,
		retryCount: o.RetryCount,
		isolation:  o.IsolationLevel,
	}
	c.resetCommand()

	return c, nil
}

// SetCommandText sets the text of the pending command.
func (c *Client) SetCommandText(text string) *Client {
	c.text = text
	return c
}

// SetCommandType sets the kind of the pending command.
func (c *Client) SetCommandType(kind dbx.CommandKind) *Client {
	if kind != dbx.CommandText && kind != dbx.CommandStoredProcedure {
		c.fail(errorx.NewUsageError("unknown command kind %d", int(kind)))
		return c
	}

	c.kind = kind

	return c
}

// SetCommandTimeout sets the timeout of the pending command.
func (c *Client) SetCommandTimeout(timeout time.Duration) *Client {
	if timeout <= 0 {
		c.fail(errorx.NewUsageError("command timeout must be positive, got %s", timeout))
		return c
	}

	c.timeout = timeout

	return c
}

// SetRetryCount sets how many times the whole transaction is retried on a transient error.
func (c *Client) SetRetryCount(n int) *Client {
	if n < 0 {
		c.fail(errorx.NewUsageError("retry count cannot be negative, got %d", n))
		return c
	}

	c.retryCount = n

	return c
}

// SetIsolationLevel sets the isolation level of the transaction.
func (c *Client) SetIsolationLevel(level dbx.IsolationLevel) *Client {
	c.isolation = level
	return c
}

// AddDbParameter adds a typed parameter to the pending command. A nil parameter is ignored.
func (c *Client) AddDbParameter(p *dbx.Parameter) *Client {
	c.params.Add(p)
	return c
}

// AddDbParameters adds typed parameters to the pending command.
func (c *Client) AddDbParameters(params ...*dbx.Parameter) *Client {
	for _, p := range params {
		c.params.Add(p)
	}

	return c
}

// AddNamedParameter binds a single named value to the pending command.
func (c *Client) AddNamedParameter(name string, value any) *Client {
	if dbx.NormalizeName(name) == "" {
		c.fail(errorx.NewUsageError("parameter name cannot be empty"))
		return c
	}

	c.params.AddNamed(name, value)

	return c
}

// AddNamedParameters binds every bindable field of obj as a named parameter.
// See dbx.NamedParametersOf for the accepted values.
func (c *Client) AddNamedParameters(obj any, crud dbx.CrudKind) *Client {
	named, err := dbx.NamedParametersOf(obj, crud)
	if err != nil {
		c.fail(err)
		return c
	}

	for name, value := range named {
		c.params.AddNamed(name, value)
	}

	return c
}

// PushCommand moves the pending command to the queue and starts a new one.
// Text, parameters, kind and timeout are reset; retry count and isolation level are kept.
func (c *Client) PushCommand() *Client {
	if c.text == "" {
		c.fail(errorx.NewUsageError("cannot push a command without text"))
		c.resetCommand()
		return c
	}

	cmd, err := dbx.NewCommand(c.text, c.kind, c.timeout, c.params)
	if err != nil {
		c.fail(err)
	} else {
		c.queue.Push(cmd)
	}

	c.resetCommand()

	return c
}

// Err returns the first invalid input recorded since the last execution.
func (c *Client) Err() error {
	return c.err
}

// Commands returns the queued commands.
func (c *Client) Commands() []dbx.Command {
	return c.queue.Commands()
}

// Parameters returns a snapshot of the pending command parameters.
func (c *Client) Parameters() *dbx.ParameterSet {
	return c.params.Clone()
}

// Close clears the Client. Executions on a closed Client fail with a usage error.
func (c *Client) Close() error {
	c.closed.Store(true)
	c.queue.Clear()
	c.resetCommand()
	c.err = nil

	return nil
}

func (c *Client) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) resetCommand() {
	c.text = ""
	c.kind = c.defaults.CommandKind
	c.timeout = c.defaults.CommandTimeout
	c.params = dbx.NewParameterSet()
}

// execution is the state drained from a Client for one call.
type execution struct {
	executor txExecutor
	commands []dbx.Command
	outputs  dbx.OutputSnapshot
	policy   retryx.Policy
	release  func()
}

// prepare claims the Client, drains its state and validates it, before any provider interaction.
// On success the caller must call release once the execution is over.
func (c *Client) prepare(singleResult bool) (*execution, error) {
	if !c.inUse.CompareAndSwap(false, true) {
		return nil, errorx.NewUsageError("client is already executing; use one client per operation")
	}

	release := func() { c.inUse.Store(false) }

	if c.closed.Load() {
		release()
		return nil, errorx.NewUsageError("client is closed")
	}

	if c.text != "" {
		c.PushCommand()
	}

	deferred := c.err
	commands := c.queue.Drain()
	c.resetCommand()
	c.err = nil

	switch {
	case deferred != nil:
		release()
		return nil, deferred
	case len(commands) == 0:
		release()
		return nil, errorx.NewUsageError("no command to execute")
	case singleResult && len(commands) > 1:
		release()
		return nil, errorx.NewUsageError("query requires exactly one command, got %d", len(commands))
	}

	return &execution{
		executor: txExecutor{provider: c.provider, isolation: c.isolation},
		commands: commands,
		outputs:  dbx.SnapshotOutputParameters(commands),
		policy:   c.retryPolicy(),
		release:  release,
	}, nil
}

func (c *Client) retryPolicy() retryx.Policy {
	predicate := c.defaults.IsTransient
	if predicate == nil {
		if classifier, ok := c.provider.(dbx.TransientClassifier); ok {
			predicate = classifier.IsTransient
		}
	}

	newBackOff := c.defaults.NewBackOff
	if newBackOff == nil {
		if p, ok := c.provider.(dbx.BackOffProvider); ok {
			newBackOff = p.NewBackOff
		}
	}

	maxRetries := c.retryCount

	return retryx.NewPolicy(
		retryx.WithMaxRetries(maxRetries),
		retryx.WithTransientPredicate(predicate),
		retryx.WithBackOff(newBackOff),
		retryx.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logx.GetLogger().LogWarning(context.Background(),
				fmt.Sprintf("transient error, retrying transaction (retry %d of %d) in %s", attempt, maxRetries, delay), err)
		}),
	)
}

// attempt runs one transactional attempt. When it does not commit, output parameters get back
// the values they had before the execution, so a retry sends the same inputs again.
func (ex *execution) attempt(ctx context.Context, step commandStep) error {
	committed := false
	defer func() {
		if !committed {
			ex.outputs.Restore()
		}
	}()

	err := ex.executor.run(ctx, ex.commands, step)
	committed = err == nil

	return err
}

func (ex *execution) nonQuery(ctx context.Context) (int64, error) {
	defer ex.release()

	return retryx.DoValue(ctx, ex.policy, func(ctx context.Context) (int64, error) {
		var rowsAffected int64
		err := ex.attempt(ctx, execStep(&rowsAffected))

		return rowsAffected, err
	})
}

func runQuery[T any](ctx context.Context, ex *execution, mapper dbx.RowMapper[T]) ([]T, error) {
	defer ex.release()

	return retryx.DoValue(ctx, ex.policy, func(ctx context.Context) ([]T, error) {
		var results []T
		err := ex.attempt(ctx, queryStep(mapper, &results))

		return results, err
	})
}

// ExecuteNonQuery runs every queued command in one transaction and returns the affected-row count
// of the last command.
func (c *Client) ExecuteNonQuery(ctx context.Context) (int64, error) {
	ex, err := c.prepare(false)
	if err != nil {
		return 0, err
	}

	return ex.nonQuery(ctx)
}

// ExecuteNonQueryAsync is ExecuteNonQuery on a new goroutine. The Client is drained before it returns.
func (c *Client) ExecuteNonQueryAsync(ctx context.Context) <-chan Result[int64] {
	out := make(chan Result[int64], 1)

	ex, err := c.prepare(false)
	if err != nil {
		out <- Result[int64]{Err: err}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		n, err := ex.nonQuery(ctx)
		out <- Result[int64]{Value: n, Err: err}
	}()

	return out
}

// ExecuteQuery runs the single queued command and returns its rows as records.
func (c *Client) ExecuteQuery(ctx context.Context) ([]dbx.Record, error) {
	return Query(ctx, c, dbx.MapRecord)
}

// ExecuteQueryAsync is ExecuteQuery on a new goroutine.
func (c *Client) ExecuteQueryAsync(ctx context.Context) <-chan Result[[]dbx.Record] {
	return QueryAsync(ctx, c, dbx.MapRecord)
}

// Query runs the single queued command and maps every returned row with mapper.
// Rows are fully read before the transaction commits.
func Query[T any](ctx context.Context, c *Client, mapper dbx.RowMapper[T]) ([]T, error) {
	ex, err := c.prepare(true)
	if err != nil {
		return nil, err
	}

	if mapper == nil {
		ex.release()
		return nil, errorx.NewUsageError("row mapper cannot be nil")
	}

	return runQuery(ctx, ex, mapper)
}

// QueryAsync is Query on a new goroutine. The Client is drained before it returns.
func QueryAsync[T any](ctx context.Context, c *Client, mapper dbx.RowMapper[T]) <-chan Result[[]T] {
	out := make(chan Result[[]T], 1)

	ex, err := c.prepare(true)
	if err == nil && mapper == nil {
		ex.release()
		err = errorx.NewUsageError("row mapper cannot be nil")
	}

	if err != nil {
		out <- Result[[]T]{Err: err}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		rows, err := runQuery(ctx, ex, mapper)
		out <- Result[[]T]{Value: rows, Err: err}
	}()

	return out
}

// QueryAs maps every row as the concrete type T and returns it as the declared type R.
func QueryAs[T, R any](ctx context.Context, c *Client, mapper dbx.RowMapper[T]) ([]R, error) {
	if mapper == nil {
		return Query[R](ctx, c, nil)
	}

	return Query(ctx, c, dbx.Cast[T, R](mapper))
}

// QueryAsAsync is QueryAs on a new goroutine.
func QueryAsAsync[T, R any](ctx context.Context, c *Client, mapper dbx.RowMapper[T]) <-chan Result[[]R] {
	if mapper == nil {
		return QueryAsync[R](ctx, c, nil)
	}

	return QueryAsync(ctx, c, dbx.Cast[T, R](mapper))
}
