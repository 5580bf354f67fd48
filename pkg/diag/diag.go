// Package diag turns generator failures into positioned diagnostics.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind int

const (
	// Declaration: illegal or duplicate modifiers, declarations out of order.
	Declaration Kind = iota + 1
	// Resolution: unknown types, unresolvable overloads, access denied.
	Resolution
	// Type: operand types incompatible with the requested operation.
	Type
	// ControlFlow: malformed statement nesting supplied by the caller.
	ControlFlow
	// Internal: a generator bug, such as a statement stack discipline violation.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Declaration:
		return "declaration"
	case Resolution:
		return "resolution"
	case Type:
		return "type"
	case ControlFlow:
		return "control-flow"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pos is a source position attributed to a generated instruction.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return "<unknown>"
	case p.File == "":
		return fmt.Sprintf("line %d", p.Line)
	case p.Line == 0:
		return p.File
	default:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
}

// Error is the single error type returned by the generator.
type Error struct {
	Kind    Kind
	Pos     Pos
	Key     Key
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %s", e.Pos, e.Kind, e.Message)
}

// Unwrap exposes the stack-carrying cause of internal faults.
func (e *Error) Unwrap() error { return e.cause }

// New formats the message for key with args.
func New(pos Pos, key Key, args ...interface{}) *Error {
	m, ok := catalog[key]
	if !ok {
		return &Error{Kind: Internal, Pos: pos, Key: key, Message: fmt.Sprintf("unknown message key %q", key)}
	}
	return &Error{Kind: m.kind, Pos: pos, Key: key, Message: fmt.Sprintf(m.format, args...)}
}

// Internalf reports a generator bug. The Go stack at the call site is kept
// in the cause so that %+v on errors.Cause(err) shows where it happened.
func Internalf(pos Pos, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:    Internal,
		Pos:     pos,
		Key:     KeyInternal,
		Message: msg,
		cause:   errors.WithStack(errors.New(msg)),
	}
}

// KindOf returns the Kind of err, or 0 when err is not a diagnostic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInternal reports whether err signals a generator bug rather than a
// malformed program.
func IsInternal(err error) bool { return KindOf(err) == Internal }

// Is reports whether err is a diagnostic with the given key.
func Is(err error, key Key) bool {
	var e *Error
	return errors.As(err, &e) && e.Key == key
}
