// Package errors provides standardized error types for engine operations.
// This package defines Error for consistent error handling across the plan
// builder, optimizer and executor, with operation context and error wrapping
// support.
package errors

import (
	"fmt"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindSchema indicates an invalid schema: unknown or duplicate column
	// names, arity mismatches, incompatible union inputs.
	KindSchema Kind = iota
	// KindType indicates incompatible operand types or an invalid cast with
	// no defined lossy rule.
	KindType
	// KindColumnNotFound indicates expression evaluation against a missing
	// column name. Plan building validates names eagerly, so reaching this
	// at execution time means a hole in validation; it is still checked.
	KindColumnNotFound
	// KindCast indicates a strict cast that hit an unrepresentable value.
	KindCast
	// KindCompute indicates an operator-specific execution failure, e.g.
	// a join key type mismatch.
	KindCompute
	// KindOutOfBounds indicates a slice or index past the data length.
	KindOutOfBounds
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindType:
		return "TypeError"
	case KindColumnNotFound:
		return "ColumnNotFoundError"
	case KindCast:
		return "CastError"
	case KindCompute:
		return "ComputeError"
	case KindOutOfBounds:
		return "OutOfBoundsError"
	default:
		return "Error"
	}
}

// Error represents standardized errors across all engine operations.
type Error struct {
	Kind    Kind   // Error taxonomy kind
	Op      string // Operation name (e.g., "Sort", "Filter", "Join")
	Column  string // Column name if applicable
	Expr    string // Rendered expression context if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s operation failed", e.Kind, e.Op)
	if e.Column != "" {
		msg += fmt.Sprintf(" on column %q", e.Column)
	}
	if e.Expr != "" {
		msg += fmt.Sprintf(" in expression %s", e.Expr)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is. Two engine errors match when
// their kinds match and the target carries no narrower context, so callers
// can test against bare kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	if t.Column != "" && t.Column != e.Column {
		return false
	}
	return true
}

// WithExpr attaches rendered expression context to the error and returns it.
func (e *Error) WithExpr(expr string) *Error {
	e.Expr = expr
	return e
}

// Sentinel values for errors.Is checks against a kind.
var (
	ErrSchema         = &Error{Kind: KindSchema}
	ErrType           = &Error{Kind: KindType}
	ErrColumnNotFound = &Error{Kind: KindColumnNotFound}
	ErrCast           = &Error{Kind: KindCast}
	ErrCompute        = &Error{Kind: KindCompute}
	ErrOutOfBounds    = &Error{Kind: KindOutOfBounds}
)

// NewSchemaError creates an error for schema violations.
func NewSchemaError(op, message string) *Error {
	return &Error{Kind: KindSchema, Op: op, Message: message}
}

// NewDuplicateColumnError creates a schema error for repeated column names.
func NewDuplicateColumnError(op, column string) *Error {
	return &Error{Kind: KindSchema, Op: op, Column: column, Message: "duplicate column name"}
}

// NewColumnNotFoundError creates an error for operations on missing columns.
func NewColumnNotFoundError(op, column string) *Error {
	return &Error{Kind: KindColumnNotFound, Op: op, Column: column, Message: "column does not exist"}
}

// NewTypeError creates an error for incompatible operand types.
func NewTypeError(op, message string) *Error {
	return &Error{Kind: KindType, Op: op, Message: message}
}

// NewCastError creates an error for a strict cast failure.
func NewCastError(op, column, message string) *Error {
	return &Error{Kind: KindCast, Op: op, Column: column, Message: message}
}

// NewComputeError creates an error for operator-specific execution failures.
func NewComputeError(op, message string) *Error {
	return &Error{Kind: KindCompute, Op: op, Message: message}
}

// NewOutOfBoundsError creates an error for out-of-range access.
func NewOutOfBoundsError(op string, index, length int) *Error {
	return &Error{
		Kind:    KindOutOfBounds,
		Op:      op,
		Message: fmt.Sprintf("index %d out of bounds for length %d", index, length),
	}
}

// Wrap attaches operation context to an arbitrary error, preserving an
// existing *Error kind.
func Wrap(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return &Error{Kind: KindCompute, Op: op, Message: err.Error(), Cause: err}
}
