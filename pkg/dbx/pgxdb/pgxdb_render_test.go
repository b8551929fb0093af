package pgxdb

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(t *testing.T, text string, kind dbx.CommandKind, ps *dbx.ParameterSet) dbx.Command {
	t.Helper()

	cmd, err := dbx.NewCommand(text, kind, time.Second, ps)
	require.NoError(t, err)

	return cmd
}

func TestRenderTextCommandUsesNamedArgs(t *testing.T) {
	ps := dbx.NewParameterSet()
	ps.AddNamed("x", 5)
	ps.Add(dbx.NewParameter("doc", map[string]any{"a": 1}, dbx.DbTypeJSON))

	sql, args, err := renderCommand(newTestCommand(t, "UPDATE t SET x=@x, doc=@doc", dbx.CommandText, ps), false)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE t SET x=@x, doc=@doc", sql)
	require.Len(t, args, 1)
	assert.Equal(t, pgx.NamedArgs{"x": 5, "doc": `{"a":1}`}, args[0])
}

func TestRenderPositionalCommand(t *testing.T) {
	ps := dbx.NewParameterSet()
	ps.Add(dbx.NewParameter("age", 30, dbx.DbTypeInt32))
	ps.Add(dbx.NewParameter("name", "ada", dbx.DbTypeString))

	sql, args, err := renderCommand(newTestCommand(t, "updateAge", dbx.CommandText, ps), true)
	require.NoError(t, err)
	assert.Equal(t, "updateAge", sql)
	assert.Equal(t, []any{30, "ada"}, args)

	ps.AddNamed("extra", 1)
	_, _, err = renderCommand(newTestCommand(t, "updateAge", dbx.CommandText, ps), true)
	assert.True(t, errorx.IsUsageError(err))
}

func TestRenderStoredProcedure(t *testing.T) {
	ps := dbx.NewParameterSet()
	ps.Add(dbx.NewParameter("account_id", int64(1), dbx.DbTypeInt64))
	ps.Add(dbx.NewInputOutputParameter("balance", int64(10), dbx.DbTypeInt64))
	ps.Add(dbx.NewOutputParameter("status", dbx.DbTypeString))
	ps.AddNamed("z_note", "n")
	ps.AddNamed("amount", 5)

	sql, args, err := renderCommand(newTestCommand(t, "billing.apply_credit", dbx.CommandStoredProcedure, ps), false)
	require.NoError(t, err)

	assert.Equal(t,
		`CALL "billing"."apply_credit"("account_id" => @account_id, "balance" => @balance, "status" => NULL, "amount" => @amount, "z_note" => @z_note)`,
		sql)
	require.Len(t, args, 1)
	assert.Equal(t, pgx.NamedArgs{"account_id": int64(1), "balance": int64(10), "amount": 5, "z_note": "n"}, args[0])
}

func TestRenderRejectsInvalidNames(t *testing.T) {
	_, _, err := renderCommand(newTestCommand(t, "a.b.c", dbx.CommandStoredProcedure, nil), false)
	assert.True(t, errorx.IsUsageError(err))

	_, _, err = renderCommand(newTestCommand(t, "schema.", dbx.CommandStoredProcedure, nil), false)
	assert.True(t, errorx.IsUsageError(err))

	ps := dbx.NewParameterSet()
	ps.AddNamed("bad name", 1)
	_, _, err = renderCommand(newTestCommand(t, "SELECT @x", dbx.CommandText, ps), false)
	assert.True(t, errorx.IsUsageError(err))
}

func TestUsesPositionalPlaceholders(t *testing.T) {
	tests := []struct {
		sql        string
		positional bool
	}{
		{"SELECT * FROM t WHERE id = $1", true},
		{"SELECT * FROM t WHERE id=$2 AND name = @name", true},
		{"SELECT $1::int", true},
		{"SELECT * FROM t WHERE id = @id", false},
		{"SELECT * FROM t WHERE price = '$1' AND id = @id", false},
		{"SELECT 'it''s $1' FROM t WHERE id = @id", false},
		{`SELECT "col$1" FROM t WHERE id = @id`, false},
		{"SELECT col$1 FROM t WHERE id = @id", false},
		{"SELECT $$ costs $1 $$ FROM t WHERE id = @id", false},
		{"SELECT $body$ $1 $body$, $2 FROM t", true},
		{"SELECT 1 -- $1\nFROM t WHERE id = @id", false},
		{"SELECT /* $1 */ 1 FROM t WHERE id = @id", false},
		{"SELECT 'unterminated $1", false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.positional, usesPositionalPlaceholders(tt.sql))
		})
	}
}

func TestRenderKeepsNamedArgsWhenDollarIsQuoted(t *testing.T) {
	ps := dbx.NewParameterSet()
	ps.AddNamed("id", 7)

	text := "UPDATE t SET note = 'refund $1' WHERE id = @id"
	sql, args, err := renderCommand(newTestCommand(t, text, dbx.CommandText, ps), usesPositionalPlaceholders(text))
	require.NoError(t, err)

	assert.Equal(t, text, sql)
	assert.Equal(t, []any{pgx.NamedArgs{"id": 7}}, args)
}

func TestToPgxIsoLevel(t *testing.T) {
	assert.Equal(t, pgx.ReadCommitted, toPgxIsoLevel(dbx.ReadCommitted))
	assert.Equal(t, pgx.ReadUncommitted, toPgxIsoLevel(dbx.ReadUncommitted))
	assert.Equal(t, pgx.RepeatableRead, toPgxIsoLevel(dbx.RepeatableRead))
	assert.Equal(t, pgx.Serializable, toPgxIsoLevel(dbx.Serializable))
}
