package dbx_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow is an in-memory dbx.Row.
type fakeRow struct {
	columns []string
	values  []any
}

func (r fakeRow) Columns() []string { return r.columns }

func (r fakeRow) Values() ([]any, error) { return r.values, nil }

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}

	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}

		v := reflect.ValueOf(r.values[i])
		if !v.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("cannot scan %T into %s", r.values[i], target.Type())
		}

		target.Set(v)
	}

	return nil
}

type orderRow struct {
	ID     int64  `db:"id"`
	Status string `db:"status"`
	Total  float64
}

type named interface{ Name() string }

type customer struct {
	FullName string `db:"name"`
}

func (c customer) Name() string { return c.FullName }

func TestMapByName(t *testing.T) {
	row := fakeRow{
		columns: []string{"id", "status", "total", "unknown"},
		values:  []any{int64(1), "paid", 12.5, "discarded"},
	}

	order, err := dbx.MapByName[orderRow]()(row)
	require.NoError(t, err)
	assert.Equal(t, orderRow{ID: 1, Status: "paid", Total: 12.5}, order)

	ptr, err := dbx.MapByName[*orderRow]()(row)
	require.NoError(t, err)
	assert.Equal(t, "paid", ptr.Status)

	_, err = dbx.MapByName[int]()(row)
	assert.True(t, errorx.IsUsageError(err))
}

func TestMapScalarAndRecord(t *testing.T) {
	n, err := dbx.MapScalar[int64]()(fakeRow{columns: []string{"count"}, values: []any{int64(4)}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = dbx.MapScalar[int64]()(fakeRow{columns: []string{"a", "b"}, values: []any{1, 2}})
	assert.True(t, errorx.IsUsageError(err))

	rec, err := dbx.MapRecord(fakeRow{columns: []string{"a", "b"}, values: []any{1, nil}})
	require.NoError(t, err)
	assert.Equal(t, dbx.Record{"a": 1, "b": nil}, rec)
}

func TestCast(t *testing.T) {
	row := fakeRow{columns: []string{"name"}, values: []any{"ada"}}

	n, err := dbx.Cast[customer, named](dbx.MapByName[customer]())(row)
	require.NoError(t, err)
	assert.Equal(t, "ada", n.Name())

	_, err = dbx.Cast[customer, fmt.Stringer](dbx.MapByName[customer]())(row)
	assert.True(t, errorx.IsUsageError(err))

	mapperErr := errors.New("boom")
	_, err = dbx.Cast[customer, named](func(dbx.Row) (customer, error) { return customer{}, mapperErr })(row)
	assert.ErrorIs(t, err, mapperErr)
}
