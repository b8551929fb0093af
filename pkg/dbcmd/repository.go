package dbcmd

import (
	"context"

	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
)

// ClientFactory creates a new Client for every repository call.
type ClientFactory func() (*Client, error)

// NewClientFactory returns a factory of Clients bound to provider and configured with opts.
func NewClientFactory(provider dbx.ConnectionProvider, opts ...Option) ClientFactory {
	return func() (*Client, error) {
		return NewClient(provider, opts...)
	}
}

// DbAction is a unit of work run with a dedicated Client.
type DbAction func(ctx context.Context, client *Client) error

// NonQuerySpec queues one or more non-query commands on a Client.
type NonQuerySpec func(client *Client) *Client

// QuerySpec builds a single query command and maps its rows.
type QuerySpec[T any] struct {
	Build  func(client *Client) *Client
	Mapper dbx.RowMapper[T]
}

// Repository runs actions, each with its own Client that is always closed afterwards.
type Repository struct {
	factory ClientFactory
}

// NewRepository creates a Repository from a ClientFactory.
func NewRepository(factory ClientFactory) (*Repository, error) {
	if factory == nil {
		return nil, errorx.NewUsageError("client factory cannot be nil")
	}

	return &Repository{factory: factory}, nil
}

func (r *Repository) newClient() (*Client, error) {
	client, err := r.factory()
	if err != nil {
		return nil, errorx.NewGeneralErrorWrapper(err, "error creating database client")
	}

	return client, nil
}

func closeClient(ctx context.Context, client *Client) {
	if err := client.Close(); err != nil {
		logx.GetLogger().LogWarning(ctx, "error closing database client", err)
	}
}

// ExecuteDbAction runs action with a new Client and returns its error.
func (r *Repository) ExecuteDbAction(ctx context.Context, action DbAction) error {
	if action == nil {
		return errorx.NewUsageError("db action cannot be nil")
	}

	client, err := r.newClient()
	if err != nil {
		return err
	}
	defer closeClient(ctx, client)

	return action(ctx, client)
}

// ExecuteDbActionAsync is ExecuteDbAction on a new goroutine.
func (r *Repository) ExecuteDbActionAsync(ctx context.Context, action DbAction) <-chan error {
	out := make(chan error, 1)

	go func() {
		defer close(out)
		out <- r.ExecuteDbAction(ctx, action)
	}()

	return out
}

// ExecuteDbActionWithResult runs action with a new Client and returns its result.
func ExecuteDbActionWithResult[T any](ctx context.Context, r *Repository, action func(ctx context.Context, client *Client) (T, error)) (T, error) {
	var zero T

	if action == nil {
		return zero, errorx.NewUsageError("db action cannot be nil")
	}

	client, err := r.newClient()
	if err != nil {
		return zero, err
	}
	defer closeClient(ctx, client)

	return action(ctx, client)
}

// ExecuteDbActionWithResultAsync is ExecuteDbActionWithResult on a new goroutine.
func ExecuteDbActionWithResultAsync[T any](ctx context.Context, r *Repository, action func(ctx context.Context, client *Client) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)

	go func() {
		defer close(out)
		v, err := ExecuteDbActionWithResult(ctx, r, action)
		out <- Result[T]{Value: v, Err: err}
	}()

	return out
}

// ExecuteNonQuerySpec queues the commands built by spec and executes them in one transaction.
func (r *Repository) ExecuteNonQuerySpec(ctx context.Context, spec NonQuerySpec) (int64, error) {
	if spec == nil {
		return 0, errorx.NewUsageError("non-query spec cannot be nil")
	}

	return ExecuteDbActionWithResult(ctx, r, func(ctx context.Context, client *Client) (int64, error) {
		return spec(client).ExecuteNonQuery(ctx)
	})
}

// ExecuteQuerySpec builds the query of spec and maps its rows.
func ExecuteQuerySpec[T any](ctx context.Context, r *Repository, spec QuerySpec[T]) ([]T, error) {
	if spec.Build == nil {
		return nil, errorx.NewUsageError("query spec has no builder")
	}

	return ExecuteDbActionWithResult(ctx, r, func(ctx context.Context, client *Client) ([]T, error) {
		return Query(ctx, spec.Build(client), spec.Mapper)
	})
}
