// Package diag declares the error kinds surfaced by lowering,
// optimization and codegen. Every error path in the compiler wraps
// one of these sentinels so callers can classify failures with
// errors.Is across package boundaries.
package diag

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType reports an opcode applied to a type it cannot
	// be specialized for.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrUndefinedFunction reports a call target that was never
	// resolved by the end of IR lowering.
	ErrUndefinedFunction = errors.New("undefined function")
	// ErrTypeMismatch reports an operand type disagreeing with a
	// signature.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrRecursionViolation reports a function found on its own call
	// stack during register coalescing.
	ErrRecursionViolation = errors.New("recursion violation")
	// ErrInvalidCondition reports a condition tree with operands of
	// incompatible types.
	ErrInvalidCondition = errors.New("invalid condition")
	// ErrInternal reports an invariant violation inside a pass. Always
	// fatal, never recovered.
	ErrInternal = errors.New("internal error")
)

// UnsupportedType wraps ErrUnsupportedType with context.
func UnsupportedType(format string, args ...any) error {
	return wrap(ErrUnsupportedType, format, args...)
}

// UndefinedFunction wraps ErrUndefinedFunction with the target name.
func UndefinedFunction(id string) error {
	return fmt.Errorf("%w: %s", ErrUndefinedFunction, id)
}

// TypeMismatch wraps ErrTypeMismatch with context.
func TypeMismatch(format string, args ...any) error {
	return wrap(ErrTypeMismatch, format, args...)
}

// InvalidCondition wraps ErrInvalidCondition with context.
func InvalidCondition(format string, args ...any) error {
	return wrap(ErrInvalidCondition, format, args...)
}

// Internal wraps ErrInternal with context.
func Internal(format string, args ...any) error {
	return wrap(ErrInternal, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
