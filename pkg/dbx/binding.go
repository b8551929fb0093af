package dbx

import (
	"reflect"
	"strings"
	"sync"

	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
)

// CrudKind selects which ignore markers apply when an object is bound as named parameters.
type CrudKind int

const (
	CrudNone CrudKind = iota
	CrudInsert
	CrudUpdate
)

// BindTagKey is the struct tag read for column names and ignore markers.
const BindTagKey = "db"

const (
	tagIgnoreInsert = "ignoreinsert"
	tagIgnoreUpdate = "ignoreupdate"
)

// dbNull is the type of the DBNull sentinel.
type dbNull struct{}

// DBNull marks a field value that must be sent as database NULL.
// Bind it through an `any` field, or return it from a ParameterSource.
var DBNull = dbNull{}

// ParameterSource is implemented by types that describe their own named parameters.
// Objects implementing it are bound without reflection.
type ParameterSource interface {
	NamedParameters(crud CrudKind) map[string]any
}

// FieldBinding describes one bindable struct field.
type FieldBinding struct {
	Index        int
	FieldName    string
	Column       string
	IgnoreInsert bool
	IgnoreUpdate bool
}

// Ignored reports whether the field is excluded for the given CrudKind.
func (fb FieldBinding) Ignored(crud CrudKind) bool {
	switch crud {
	case CrudInsert:
		return fb.IgnoreInsert
	case CrudUpdate:
		return fb.IgnoreUpdate
	default:
		return false
	}
}

// BindingTable is the static field metadata of a struct type, built once and reused.
type BindingTable struct {
	Type     reflect.Type
	Fields   []FieldBinding
	byColumn map[string]int
}

// FieldByColumn returns the binding of the given column, matching case-insensitively
// when no exact match exists.
func (bt *BindingTable) FieldByColumn(column string) (FieldBinding, bool) {
	if i, ok := bt.byColumn[column]; ok {
		return bt.Fields[i], true
	}

	for _, f := range bt.Fields {
		if strings.EqualFold(f.Column, column) {
			return f, true
		}
	}

	return FieldBinding{}, false
}

// Columns returns the column names bound for the given CrudKind, in field order.
func (bt *BindingTable) Columns(crud CrudKind) []string {
	columns := make([]string, 0, len(bt.Fields))
	for _, f := range bt.Fields {
		if !f.Ignored(crud) {
			columns = append(columns, f.Column)
		}
	}

	return columns
}

var bindingTables sync.Map // map[reflect.Type]*BindingTable

// BindingTableOf returns the cached BindingTable of a struct type or pointer to struct type.
func BindingTableOf(t reflect.Type) (*BindingTable, error) {
	if t == nil {
		return nil, errorx.NewUsageError("cannot bind a nil type")
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, errorx.NewUsageError("expected a struct type, got %s", t.Kind())
	}

	if cached, ok := bindingTables.Load(t); ok {
		return cached.(*BindingTable), nil
	}

	table := buildBindingTable(t)
	actual, _ := bindingTables.LoadOrStore(t, table)

	return actual.(*BindingTable), nil
}

func buildBindingTable(t reflect.Type) *BindingTable {
	table := &BindingTable{Type: t, byColumn: make(map[string]int)}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if field.PkgPath != "" {
			continue
		}

		tag := field.Tag.Get(BindTagKey)
		if tag == "-" {
			continue
		}

		binding := FieldBinding{Index: i, FieldName: field.Name, Column: field.Name}

		parts := strings.Split(tag, ",")
		if name := strings.TrimSpace(parts[0]); name != "" {
			binding.Column = name
		}

		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case tagIgnoreInsert:
				binding.IgnoreInsert = true
			case tagIgnoreUpdate:
				binding.IgnoreUpdate = true
			}
		}

		table.byColumn[binding.Column] = len(table.Fields)
		table.Fields = append(table.Fields, binding)
	}

	return table
}

// NamedParametersOf returns one name -> value entry per bindable field of obj.
//
// Arguments:
//   - obj: a struct, a pointer to struct, a map[string]any or a ParameterSource.
//   - crud: fields tagged ignoreinsert/ignoreupdate are skipped for CrudInsert/CrudUpdate.
//
// Returns:
//   - map[string]any: column name -> value, with DBNull replaced by nil.
//   - error: a usage error for a nil pointer or an unsupported kind.
//
// Example:
//
//	type Order struct {
//	    ID     int64  `db:"id,ignoreinsert"`
//	    Status string `db:"status"`
//	    Notes  string `db:"-"`
//	}
//	params, _ := NamedParametersOf(Order{ID: 1, Status: "new"}, CrudInsert)
//	// params would be: map[string]any{"status": "new"}
func NamedParametersOf(obj any, crud CrudKind) (map[string]any, error) {
	if obj == nil {
		return nil, errorx.NewUsageError("cannot bind a nil object")
	}

	switch src := obj.(type) {
	case ParameterSource:
		return nullify(src.NamedParameters(crud)), nil
	case map[string]any:
		return nullify(src), nil
	}

	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errorx.NewUsageError("cannot bind a nil %s", v.Type())
		}

		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, errorx.NewUsageError("expected a struct, a map[string]any or a ParameterSource, got %s", v.Type())
	}

	table, err := BindingTableOf(v.Type())
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(table.Fields))
	for _, f := range table.Fields {
		if f.Ignored(crud) {
			continue
		}

		params[f.Column] = nullValue(v.Field(f.Index).Interface())
	}

	return params, nil
}

func nullify(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = nullValue(v)
	}

	return out
}

func nullValue(v any) any {
	if _, ok := v.(dbNull); ok {
		return nil
	}

	return v
}
