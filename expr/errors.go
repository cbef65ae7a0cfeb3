package expr

import (
	"errors"
	"fmt"
)

// Sentinel kinds for compile failures. Use errors.Is against an *Error.
var (
	ErrSyntax            = errors.New("syntax error")
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrUndefinedAtProbe  = errors.New("undefined at probe point")
)

// Error describes the first structural problem found while compiling an
// expression.
type Error struct {
	Kind     error  // one of the Err* sentinels
	Pos      int    // byte offset, -1 when not tied to a position
	Name     string // offending identifier, if any
	Expected int    // arity mismatch only
	Got      int    // arity mismatch only
	Msg      string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func syntaxErrorf(pos int, format string, args ...any) *Error {
	return &Error{Kind: ErrSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func unknownIdentifier(name string, pos int, msg string) *Error {
	return &Error{Kind: ErrUnknownIdentifier, Pos: pos, Name: name, Msg: msg}
}

func arityMismatch(name string, pos, expected, got int) *Error {
	return &Error{
		Kind:     ErrArityMismatch,
		Pos:      pos,
		Name:     name,
		Expected: expected,
		Got:      got,
		Msg:      fmt.Sprintf("function %s expects %d argument(s), got %d", name, expected, got),
	}
}

// EvalError is returned by Program.Eval when the expression has no finite
// value at the requested point.
type EvalError struct {
	X     float64
	Value float64
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expression is undefined at x = %g (evaluates to %g)", e.X, e.Value)
}
