package dbx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/utilx/copyx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/utilx/jsonx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/utilx/timex"
	"github.com/spf13/cast"
)

// Direction tells whether a parameter is sent to the backend, read back from it, or both.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionInputOutput
	DirectionReturnValue
)

// IsOutput reports whether the backend produces a value for the parameter.
func (d Direction) IsOutput() bool {
	return d == DirectionOutput || d == DirectionInputOutput || d == DirectionReturnValue
}

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	case DirectionInputOutput:
		return "input-output"
	case DirectionReturnValue:
		return "return-value"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// DbType is the closed set of type tags a parameter can declare.
// Output values are converted to the Go type associated with the tag:
//
//	DbTypeString  -> string
//	DbTypeInt32   -> int32
//	DbTypeInt64   -> int64
//	DbTypeFloat64 -> float64
//	DbTypeBool    -> bool
//	DbTypeBytes   -> []byte
//	DbTypeTime    -> time.Time
//	DbTypeUUID    -> uuid.UUID
//	DbTypeJSON    -> json.RawMessage
type DbType int

const (
	DbTypeUnset DbType = iota
	DbTypeString
	DbTypeInt32
	DbTypeInt64
	DbTypeFloat64
	DbTypeBool
	DbTypeBytes
	DbTypeTime
	DbTypeUUID
	DbTypeJSON
)

var dbTypeNames = map[DbType]string{
	DbTypeUnset:   "unset",
	DbTypeString:  "string",
	DbTypeInt32:   "int32",
	DbTypeInt64:   "int64",
	DbTypeFloat64: "float64",
	DbTypeBool:    "bool",
	DbTypeBytes:   "bytes",
	DbTypeTime:    "time",
	DbTypeUUID:    "uuid",
	DbTypeJSON:    "json",
}

func (t DbType) String() string {
	if name, ok := dbTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("dbtype(%d)", int(t))
}

// IsValid reports whether t is one of the declared type tags, DbTypeUnset excluded.
func (t DbType) IsValid() bool {
	return t > DbTypeUnset && t <= DbTypeJSON
}

// Parameter is a typed parameter with a direction.
// Keep the pointer you add to a command: output values are written back into it.
type Parameter struct {
	Name      string
	Value     any
	Type      DbType
	Direction Direction
}

// NewParameter creates an input parameter.
func NewParameter(name string, value any, dbType DbType) *Parameter {
	return &Parameter{Name: NormalizeName(name), Value: value, Type: dbType, Direction: DirectionInput}
}

// NewOutputParameter creates an output parameter; its value is produced by the backend.
func NewOutputParameter(name string, dbType DbType) *Parameter {
	return &Parameter{Name: NormalizeName(name), Type: dbType, Direction: DirectionOutput}
}

// NewInputOutputParameter creates a parameter that is sent and then overwritten by the backend value.
func NewInputOutputParameter(name string, value any, dbType DbType) *Parameter {
	return &Parameter{Name: NormalizeName(name), Value: value, Type: dbType, Direction: DirectionInputOutput}
}

// NormalizeName strips the placeholder prefix, so "@id", ":id" and "id" name the same parameter.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "@") || strings.HasPrefix(name, ":") {
		return name[1:]
	}

	return name
}

// ParameterSet holds the named and the typed (positional) parameters of one command.
// It is not safe for concurrent use.
type ParameterSet struct {
	named      map[string]any
	positional []*Parameter
}

// NewParameterSet creates an empty ParameterSet.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{named: make(map[string]any)}
}

// AddNamed sets a named value, replacing any value already bound to the same name.
func (ps *ParameterSet) AddNamed(name string, value any) {
	if ps.named == nil {
		ps.named = make(map[string]any)
	}

	ps.named[NormalizeName(name)] = value
}

// Add appends a typed parameter. A nil parameter is ignored.
// A parameter with the name of an existing one replaces it in place.
func (ps *ParameterSet) Add(p *Parameter) {
	if p == nil {
		return
	}

	p.Name = NormalizeName(p.Name)

	for i, existing := range ps.positional {
		if existing.Name == p.Name {
			ps.positional[i] = p
			return
		}
	}

	ps.positional = append(ps.positional, p)
}

// Lookup returns the typed parameter with the given name.
func (ps *ParameterSet) Lookup(name string) (*Parameter, bool) {
	name = NormalizeName(name)
	for _, p := range ps.positional {
		if p.Name == name {
			return p, true
		}
	}

	return nil, false
}

// Named returns a copy of the named values.
func (ps *ParameterSet) Named() map[string]any {
	out := make(map[string]any, len(ps.named))
	for k, v := range ps.named {
		out[k] = v
	}

	return out
}

// Positional returns the typed parameters in insertion order.
func (ps *ParameterSet) Positional() []*Parameter {
	out := make([]*Parameter, len(ps.positional))
	copy(out, ps.positional)

	return out
}

// Len returns the number of distinct parameter names.
func (ps *ParameterSet) Len() int {
	return len(ps.Merge())
}

// IsEmpty reports whether no parameter has been added.
func (ps *ParameterSet) IsEmpty() bool {
	return len(ps.named) == 0 && len(ps.positional) == 0
}

// Clear removes every parameter.
func (ps *ParameterSet) Clear() {
	ps.named = make(map[string]any)
	ps.positional = nil
}

// Clone returns a snapshot of the set. Named values are deep copied, so later changes to a
// bound map or slice do not leak into the snapshot. Typed parameters keep their identity,
// so output values still reach the caller's handle.
func (ps *ParameterSet) Clone() *ParameterSet {
	return &ParameterSet{
		named:      copyx.Clone(ps.Named()),
		positional: ps.Positional(),
	}
}

// Merge combines named and typed parameters into the single name -> value map handed to the backend.
// On a name collision the typed parameter wins.
func (ps *ParameterSet) Merge() map[string]any {
	merged := make(map[string]any, len(ps.named)+len(ps.positional))
	for k, v := range ps.named {
		merged[k] = v
	}

	for _, p := range ps.positional {
		merged[p.Name] = p.Value
	}

	return merged
}

// OutputParameters returns the typed parameters whose value is produced by the backend.
func (ps *ParameterSet) OutputParameters() []*Parameter {
	var out []*Parameter
	for _, p := range ps.positional {
		if p.Direction.IsOutput() {
			out = append(out, p)
		}
	}

	return out
}

// HasOutputParameters reports whether at least one typed parameter has an output direction.
func (ps *ParameterSet) HasOutputParameters() bool {
	for _, p := range ps.positional {
		if p.Direction.IsOutput() {
			return true
		}
	}

	return false
}

// ExtractOutputParameters copies the values returned by the backend into the output parameters,
// converting each one to its declared DbType. Names are matched exactly first, then case-insensitively.
// An undeclared type tag, a value missing from bag, or a failed conversion is a usage error,
// and then no parameter value is updated.
func (ps *ParameterSet) ExtractOutputParameters(bag map[string]any) error {
	outputs := ps.OutputParameters()
	converted := make([]any, len(outputs))

	for i, p := range outputs {
		if !p.Type.IsValid() {
			return errorx.NewUsageError("output parameter '%s' has unsupported type tag %s", p.Name, p.Type)
		}

		raw, ok := lookupCaseInsensitive(bag, p.Name)
		if !ok {
			return errorx.NewUsageError("output parameter '%s' was not returned by the command", p.Name)
		}

		value, err := ConvertValue(raw, p.Type)
		if err != nil {
			return errorx.NewUsageErrorWrapper(err, "output parameter '%s' cannot be converted to %s", p.Name, p.Type)
		}

		converted[i] = value
	}

	for i, p := range outputs {
		p.Value = converted[i]
	}

	return nil
}

func lookupCaseInsensitive(bag map[string]any, name string) (any, bool) {
	if v, ok := bag[name]; ok {
		return v, true
	}

	for k, v := range bag {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}

	return nil, false
}

// ConvertValue converts a backend value to the Go type of the given DbType. A nil value stays nil.
func ConvertValue(value any, dbType DbType) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch dbType {
	case DbTypeString:
		if b, ok := value.([]byte); ok {
			return string(b), nil
		}
		return cast.ToStringE(value)
	case DbTypeInt32:
		return toInt32(value)
	case DbTypeInt64:
		return toInt64(value)
	case DbTypeFloat64:
		return cast.ToFloat64E(value)
	case DbTypeBool:
		return cast.ToBoolE(value)
	case DbTypeBytes:
		switch v := value.(type) {
		case []byte:
			out := make([]byte, len(v))
			copy(out, v)
			return out, nil
		case string:
			return []byte(v), nil
		}
		return nil, fmt.Errorf("unable to cast %#v of type %T to []byte", value, value)
	case DbTypeTime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			return timex.ParseDatabaseTime(v)
		}
		return cast.ToTimeE(value)
	case DbTypeUUID:
		return toUUID(value)
	case DbTypeJSON:
		return jsonx.ToRawMessage(value)
	default:
		return nil, errorx.NewUsageError("unsupported type tag %s", dbType)
	}
}

// toInt64 refuses lossy conversions; strings are parsed in base 10.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case string:
		return parseInt64(v)
	case []byte:
		return parseInt64(string(v))
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
	}

	return cast.ToInt64E(value)
}

func toInt32(value any) (int32, error) {
	n, err := toInt64(value)
	if err != nil {
		return 0, err
	}

	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", n)
	}

	return int32(n), nil
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to cast %q to int64: %w", s, err)
	}

	return n, nil
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v cannot be converted to int64 without loss", f)
	}

	return int64(f), nil
}

func toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	case fmt.Stringer:
		return uuid.Parse(v.String())
	}

	return uuid.Nil, fmt.Errorf("unable to cast %#v of type %T to uuid", value, value)
}
