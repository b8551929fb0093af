package dbx

import (
	"reflect"

	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/pkg/errors"
)

// RowMapper maps the current row to a value of type T.
type RowMapper[T any] func(row Row) (T, error)

// Record is a row keyed by column name.
type Record map[string]any

// MapRecord maps a row to a Record.
func MapRecord(row Row) (Record, error) {
	values, err := row.Values()
	if err != nil {
		return nil, errors.Wrap(err, "error reading row values")
	}

	columns := row.Columns()
	if len(columns) != len(values) {
		return nil, errorx.NewUsageError("row has %d columns but %d values", len(columns), len(values))
	}

	record := make(Record, len(columns))
	for i, col := range columns {
		record[col] = values[i]
	}

	return record, nil
}

// MapScalar maps single-column rows to T.
func MapScalar[T any]() RowMapper[T] {
	return func(row Row) (T, error) {
		var out T
		if n := len(row.Columns()); n != 1 {
			return out, errorx.NewUsageError("scalar mapping expects exactly one column, got %d", n)
		}

		if err := row.Scan(&out); err != nil {
			return out, errors.Wrap(err, "error scanning scalar")
		}

		return out, nil
	}
}

// MapByName maps columns to the fields of struct T by `db` tag, or field name when untagged.
// Columns with no matching field are discarded.
func MapByName[T any]() RowMapper[T] {
	return func(row Row) (T, error) {
		var out T

		target := reflect.ValueOf(&out).Elem()
		isPtr := target.Kind() == reflect.Ptr
		if isPtr {
			target.Set(reflect.New(target.Type().Elem()))
			target = target.Elem()
		}

		table, err := BindingTableOf(target.Type())
		if err != nil {
			return out, err
		}

		columns := row.Columns()
		dest := make([]any, len(columns))
		for i, col := range columns {
			if f, ok := table.FieldByColumn(col); ok {
				dest[i] = target.Field(f.Index).Addr().Interface()
				continue
			}

			var discard any
			dest[i] = &discard
		}

		if err := row.Scan(dest...); err != nil {
			return out, errors.Wrapf(err, "error scanning row into %s", target.Type())
		}

		return out, nil
	}
}

// Cast maps a row as the concrete type T and returns it as the declared type R.
// A T that is not assignable to R is a usage error.
func Cast[T, R any](mapper RowMapper[T]) RowMapper[R] {
	return func(row Row) (R, error) {
		var declared R

		concrete, err := mapper(row)
		if err != nil {
			return declared, err
		}

		out, ok := any(concrete).(R)
		if !ok {
			return declared, errorx.NewUsageError("%T is not assignable to %s",
				concrete, reflect.TypeOf((*R)(nil)).Elem())
		}

		return out, nil
	}
}
