package pgxdb

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/utilx/jsonx"
)

// pgx named arguments only match [a-zA-Z0-9_].
var validParamName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// renderCommand turns a command into the SQL text and the arguments sent to pgx.
//
// Text commands are sent as they are, with @name placeholders bound through pgx.NamedArgs.
// When positional is set (the text uses $n placeholders or names a prepared statement),
// the typed parameters are bound as $1..$n in the order they were added instead.
// Stored procedures are rendered as CALL schema.proc(p => @p, ...): typed parameters first,
// in the order they were added, then named ones sorted by name. Output-only parameters are
// passed as NULL and read back from the row returned by CALL.
func renderCommand(cmd dbx.Command, positional bool) (string, []any, error) {
	params := cmd.Parameters()

	if positional && cmd.Kind() == dbx.CommandText {
		args, err := positionalArgs(params)
		return cmd.Text(), args, err
	}

	args, err := namedArgs(params)
	if err != nil {
		return "", nil, err
	}

	if cmd.Kind() != dbx.CommandStoredProcedure {
		return cmd.Text(), []any{args}, nil
	}

	ident, err := splitIdentifier(cmd.Text())
	if err != nil {
		return "", nil, err
	}

	var (
		parts []string
		seen  = make(map[string]bool)
	)

	for _, p := range params.Positional() {
		seen[p.Name] = true
		if p.Direction == dbx.DirectionOutput || p.Direction == dbx.DirectionReturnValue {
			parts = append(parts, pgx.Identifier{p.Name}.Sanitize()+" => NULL")
			delete(args, p.Name)
			continue
		}

		parts = append(parts, pgx.Identifier{p.Name}.Sanitize()+" => @"+p.Name)
	}

	named := params.Named()
	names := make([]string, 0, len(named))
	for name := range named {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		parts = append(parts, pgx.Identifier{name}.Sanitize()+" => @"+name)
	}

	return "CALL " + ident.Sanitize() + "(" + strings.Join(parts, ", ") + ")", []any{args}, nil
}

func positionalArgs(params *dbx.ParameterSet) ([]any, error) {
	if len(params.Named()) > 0 {
		return nil, errorx.NewUsageError("named parameters cannot be bound to positional placeholders")
	}

	typed := params.Positional()
	args := make([]any, len(typed))
	for i, p := range typed {
		value, err := encodeValue(p)
		if err != nil {
			return nil, err
		}

		args[i] = value
	}

	return args, nil
}

// usesPositionalPlaceholders reports whether a text command is written with $n placeholders.
// Quoted strings, quoted identifiers, dollar-quoted bodies and comments are skipped.
func usesPositionalPlaceholders(sql string) bool {
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; {
		case c == '\'' || c == '"':
			i = skipPast(sql, i+1, string(c))
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			i = skipPast(sql, i+2, "\n")
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			i = skipPast(sql, i+2, "*/")
		case c == '$':
			if i+1 < len(sql) && isDigit(sql[i+1]) {
				if i == 0 || !isIdentChar(sql[i-1]) {
					return true
				}
				continue
			}

			if tag := dollarQuoteTag.FindString(sql[i:]); tag != "" && (i == 0 || !isIdentChar(sql[i-1])) {
				i = skipPast(sql, i+len(tag), tag)
			}
		}
	}

	return false
}

var dollarQuoteTag = regexp.MustCompile(`^\$([a-zA-Z_][a-zA-Z0-9_]*)?\$`)

// skipPast returns the index of the last byte of the first end found from start, or the end of sql.
func skipPast(sql string, start int, end string) int {
	if start > len(sql) {
		return len(sql)
	}

	idx := strings.Index(sql[start:], end)
	if idx < 0 {
		return len(sql)
	}

	return start + idx + len(end) - 1
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func namedArgs(params *dbx.ParameterSet) (pgx.NamedArgs, error) {
	merged := params.Merge()
	args := make(pgx.NamedArgs, len(merged))

	for name, value := range merged {
		if !validParamName.MatchString(name) {
			return nil, errorx.NewUsageError("invalid parameter name '%s'", name)
		}

		args[name] = value
	}

	for _, p := range params.Positional() {
		value, err := encodeValue(p)
		if err != nil {
			return nil, err
		}

		args[p.Name] = value
	}

	return args, nil
}

// encodeValue encodes JSON typed parameters to their text form; other values are passed to pgx as they are.
func encodeValue(p *dbx.Parameter) (any, error) {
	if p.Type != dbx.DbTypeJSON || p.Value == nil {
		return p.Value, nil
	}

	raw, err := jsonx.ToRawMessage(p.Value)
	if err != nil {
		return nil, errorx.NewUsageErrorWrapper(err, "parameter '%s' is not valid JSON", p.Name)
	}

	return string(raw), nil
}

// splitIdentifier splits a possibly schema qualified name into a pgx.Identifier.
func splitIdentifier(name string) (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")

	for _, part := range parts {
		if part == "" {
			return nil, errorx.NewUsageError("invalid procedure name format: '%s'", name)
		}
	}

	switch len(parts) {
	case 1:
		// Only the procedure name is provided, assume the default schema
		return pgx.Identifier{parts[0]}, nil
	case 2:
		// Schema and procedure are provided
		return pgx.Identifier{parts[0], parts[1]}, nil
	default:
		return nil, errorx.NewUsageError("invalid procedure name format: '%s'", name)
	}
}
