package dbx

import (
	"time"

	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
)

// CommandKind tells the backend how to interpret the command text.
type CommandKind int

const (
	// CommandText - plain SQL text with @name placeholders.
	CommandText CommandKind = iota
	// CommandStoredProcedure - the text is a procedure name; parameters are passed by name.
	CommandStoredProcedure
)

func (k CommandKind) String() string {
	if k == CommandStoredProcedure {
		return "stored-procedure"
	}

	return "text"
}

// DefaultCommandTimeout is applied to every command that does not set its own.
const DefaultCommandTimeout = 30 * time.Second

// Command is one executable statement with its parameters, timeout and kind.
// A Command is immutable once built; its output parameters are the only thing written after execution.
type Command struct {
	text    string
	kind    CommandKind
	timeout time.Duration
	params  *ParameterSet
}

// NewCommand builds a Command. The parameters are snapshotted, so later changes to params do not affect it.
func NewCommand(text string, kind CommandKind, timeout time.Duration, params *ParameterSet) (Command, error) {
	if text == "" {
		return Command{}, errorx.NewUsageError("command text cannot be empty")
	}

	if timeout <= 0 {
		return Command{}, errorx.NewUsageError("command timeout must be positive, got %s", timeout)
	}

	if kind != CommandText && kind != CommandStoredProcedure {
		return Command{}, errorx.NewUsageError("unknown command kind %d", int(kind))
	}

	if params == nil {
		params = NewParameterSet()
	}

	return Command{text: text, kind: kind, timeout: timeout, params: params.Clone()}, nil
}

// Text returns the command text.
func (c Command) Text() string { return c.text }

// Kind returns the command kind.
func (c Command) Kind() CommandKind { return c.kind }

// Timeout returns the command timeout.
func (c Command) Timeout() time.Duration { return c.timeout }

// Parameters returns the parameters snapshotted when the command was built.
func (c Command) Parameters() *ParameterSet {
	if c.params == nil {
		return NewParameterSet()
	}

	return c.params
}

// CommandQueue holds the pending commands of one transactional execution, in execution order.
type CommandQueue struct {
	commands []Command
}

// Push appends a command.
func (q *CommandQueue) Push(cmd Command) {
	q.commands = append(q.commands, cmd)
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	return len(q.commands)
}

// Commands returns a copy of the queued commands.
func (q *CommandQueue) Commands() []Command {
	out := make([]Command, len(q.commands))
	copy(out, q.commands)

	return out
}

// Drain returns the queued commands and empties the queue.
func (q *CommandQueue) Drain() []Command {
	out := q.commands
	q.commands = nil

	return out
}

// Clear empties the queue.
func (q *CommandQueue) Clear() {
	q.commands = nil
}

// OutputSnapshot holds the values the output parameters of a set of commands had before they ran.
type OutputSnapshot struct {
	params []*Parameter
	values []any
}

// SnapshotOutputParameters records the current value of every output parameter of commands.
// A parameter shared by several commands is recorded once.
func SnapshotOutputParameters(commands []Command) OutputSnapshot {
	var (
		s    OutputSnapshot
		seen = make(map[*Parameter]bool)
	)

	for _, cmd := range commands {
		for _, p := range cmd.Parameters().OutputParameters() {
			if seen[p] {
				continue
			}

			seen[p] = true
			s.params = append(s.params, p)
			s.values = append(s.values, p.Value)
		}
	}

	return s
}

// Restore writes the recorded values back, undoing the outputs of a rolled-back attempt.
func (s OutputSnapshot) Restore() {
	for i, p := range s.params {
		p.Value = s.values[i]
	}
}
