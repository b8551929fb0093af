package dbcmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/pkg/errors"
)

// commandStep runs one command inside the open transaction.
type commandStep func(ctx context.Context, tx dbx.Transaction, cmd dbx.Command) error

// txExecutor runs one transactional attempt: open, begin, run every command in order, commit, close.
type txExecutor struct {
	provider  dbx.ConnectionProvider
	isolation dbx.IsolationLevel
}

// run performs a single attempt. Any command error rolls the transaction back; a failed commit
// is rolled back too. The connection is closed on every exit path, panics included.
func (e txExecutor) run(ctx context.Context, commands []dbx.Command, step commandStep) (err error) {
	ctx = logx.WithExecutionID(ctx, uuid.NewString())

	conn, err := e.provider.NewConnection()
	if err != nil {
		return errors.Wrap(err, "error creating connection")
	}

	defer func() {
		if closeErr := conn.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logx.GetLogger().LogWarning(ctx, "error closing connection", closeErr)
		}
	}()

	if err = conn.Open(ctx); err != nil {
		return errors.Wrap(err, "error opening connection")
	}

	tx, err := conn.BeginTx(ctx, e.isolation)
	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			e.rollback(ctx, tx)
			panic(p)
		} else if err != nil && !committed {
			e.rollback(ctx, tx)
		}
	}()

	for i, cmd := range commands {
		if err = step(ctx, tx, cmd); err != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("error executing command %d of %d", i+1, len(commands)), err)
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "error committing transaction")
	}

	committed = true
	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("transaction committed, %d command(s)", len(commands)))

	return nil
}

// rollback uses a context that survives the caller's cancellation, so the transaction is always released.
func (e txExecutor) rollback(ctx context.Context, tx dbx.Transaction) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		logx.GetLogger().LogError(ctx, "error rolling back transaction", err)
	}
}

// execStep runs a non-query command, extracts its outputs and records the affected rows.
func execStep(rowsAffected *int64) commandStep {
	return func(ctx context.Context, tx dbx.Transaction, cmd dbx.Command) error {
		res, err := tx.Exec(ctx, cmd)
		if err != nil {
			return err
		}

		if cmd.Parameters().HasOutputParameters() {
			if err := cmd.Parameters().ExtractOutputParameters(res.Outputs); err != nil {
				return err
			}
		}

		*rowsAffected = res.RowsAffected

		return nil
	}
}

// queryStep runs a query command and maps every row before the transaction commits.
// When the command has output parameters they are read from the first row.
func queryStep[T any](mapper dbx.RowMapper[T], results *[]T) commandStep {
	return func(ctx context.Context, tx dbx.Transaction, cmd dbx.Command) error {
		rows, err := tx.Query(ctx, cmd)
		if err != nil {
			return err
		}
		defer rows.Close()

		params := cmd.Parameters()
		wantOutputs := params.HasOutputParameters()

		var (
			mapped []T
			first  dbx.Record
		)

		for rows.Next() {
			if wantOutputs && first == nil {
				if first, err = dbx.MapRecord(rows); err != nil {
					return err
				}
			}

			item, err := mapper(rows)
			if err != nil {
				return errors.Wrap(err, "error mapping row")
			}

			mapped = append(mapped, item)
		}

		if err := rows.Err(); err != nil {
			return err
		}

		if wantOutputs {
			if err := params.ExtractOutputParameters(first); err != nil {
				return err
			}
		}

		*results = mapped

		return nil
	}
}
