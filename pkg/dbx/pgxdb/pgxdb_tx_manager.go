package pgxdb

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/pkg/errors"
)

//###################################
//#   Postgres Connection / TX      #
//###################################

// pgConnection - one pooled connection, acquired on Open and released on Close.
// It implements dbx.Connection.
type pgConnection struct {
	pool     *pgxpool.Pool
	prepared map[string]struct{}
	conn     *pgxpool.Conn
}

// Open - acquires the connection from the pool.
func (c *pgConnection) Open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)
		return errorx.NewDatabaseErrorWrapper(err, "error acquiring connection from pool")
	}

	c.conn = conn

	return nil
}

// BeginTx - starts a transaction at the given isolation level.
func (c *pgConnection) BeginTx(ctx context.Context, level dbx.IsolationLevel) (dbx.Transaction, error) {
	if c.conn == nil {
		return nil, errorx.NewUsageError("connection is not open")
	}

	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: toPgxIsoLevel(level)})
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error starting transaction")
	}

	return &pgTransaction{tx: tx, prepared: c.prepared}, nil
}

// Close - releases the connection to the pool. Safe to call more than once.
func (c *pgConnection) Close(_ context.Context) error {
	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
	}

	return nil
}

func toPgxIsoLevel(level dbx.IsolationLevel) pgx.TxIsoLevel {
	switch level {
	case dbx.ReadUncommitted:
		return pgx.ReadUncommitted
	case dbx.RepeatableRead:
		return pgx.RepeatableRead
	case dbx.Serializable:
		return pgx.Serializable
	default:
		return pgx.ReadCommitted
	}
}

// pgTransaction - a PostgreSQL transaction. It implements dbx.Transaction.
type pgTransaction struct {
	tx       pgx.Tx
	prepared map[string]struct{}
}

func (t *pgTransaction) render(cmd dbx.Command) (string, []any, error) {
	_, isPrepared := t.prepared[cmd.Text()]

	return renderCommand(cmd, isPrepared || usesPositionalPlaceholders(cmd.Text()))
}

// Query - executes a command returning rows. The command timeout stays active until the rows are closed.
func (t *pgTransaction) Query(ctx context.Context, cmd dbx.Command) (dbx.Rows, error) {
	sql, args, err := t.render(cmd)
	if err != nil {
		return nil, err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, cmd.Timeout())

	rows, err := t.tx.Query(cmdCtx, sql, args...)
	if err != nil {
		cancel()
		return nil, errorx.NewDatabaseErrorWrapper(err, "error executing query '%s'", sql)
	}

	return &pgRows{rows: rows, cancel: cancel}, nil
}

// Exec - executes a non-query command. When the command has output parameters
// the first returned row is read into ExecResult.Outputs.
func (t *pgTransaction) Exec(ctx context.Context, cmd dbx.Command) (dbx.ExecResult, error) {
	sql, args, err := t.render(cmd)
	if err != nil {
		return dbx.ExecResult{}, err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, cmd.Timeout())
	defer cancel()

	if !cmd.Parameters().HasOutputParameters() {
		tag, err := t.tx.Exec(cmdCtx, sql, args...)
		if err != nil {
			return dbx.ExecResult{}, errorx.NewDatabaseErrorWrapper(err, "error executing command '%s'", sql)
		}

		return dbx.ExecResult{RowsAffected: tag.RowsAffected()}, nil
	}

	rows, err := t.tx.Query(cmdCtx, sql, args...)
	if err != nil {
		return dbx.ExecResult{}, errorx.NewDatabaseErrorWrapper(err, "error executing command '%s'", sql)
	}
	defer rows.Close()

	outputs, err := firstRowOutputs(rows)
	if err != nil {
		return dbx.ExecResult{}, errorx.NewDatabaseErrorWrapper(err, "error reading outputs of command '%s'", sql)
	}

	return dbx.ExecResult{RowsAffected: rows.CommandTag().RowsAffected(), Outputs: outputs}, nil
}

func firstRowOutputs(rows pgx.Rows) (map[string]any, error) {
	outputs := make(map[string]any)

	if rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.WithStack(err)
		}

		for i, fd := range rows.FieldDescriptions() {
			outputs[fd.Name] = values[i]
		}
	}

	// Closing drains the result, so the command tag is available afterwards
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	return outputs, nil
}

// Commit - commits the transaction.
func (t *pgTransaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		logx.GetLogger().LogError(ctx, "error during transaction commit", err)
		return errorx.NewDatabaseErrorWrapper(err, "error during transaction commit")
	}

	return nil
}

// Rollback - rolls back the transaction. Rolling back a closed transaction is a no-op.
func (t *pgTransaction) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logx.GetLogger().LogError(ctx, "error Rolling Back transaction", err)
		return errorx.NewDatabaseErrorWrapper(err, "error rolling back transaction")
	}

	logx.GetLogger().LogDebug(ctx, "Rollback transaction")

	return nil
}

// pgRows - adapts pgx.Rows to dbx.Rows.
type pgRows struct {
	rows   pgx.Rows
	cancel context.CancelFunc
}

func (r *pgRows) Next() bool { return r.rows.Next() }

func (r *pgRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return errors.Wrap(err, "error scanning row")
	}

	return nil
}

func (r *pgRows) Values() ([]any, error) { return r.rows.Values() }

func (r *pgRows) Columns() []string {
	fds := r.rows.FieldDescriptions()
	columns := make([]string, len(fds))
	for i, fd := range fds {
		columns[i] = fd.Name
	}

	return columns
}

func (r *pgRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error reading rows")
	}

	return nil
}

// Close - closes the rows and releases the command timeout.
func (r *pgRows) Close() {
	r.rows.Close()
	r.cancel()
}
