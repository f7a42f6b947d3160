package units

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; every error returned by
// this package wraps exactly one of them.
var (
	// ErrValidation marks malformed construction input: zero or non-finite
	// scales, unrepresentable powers, malformed equivalencies and name clashes.
	ErrValidation = errors.New("units: invalid input")

	// ErrDimensionMismatch marks units that cannot be converted to each other
	// (or into a requested set of bases).
	ErrDimensionMismatch = errors.New("units: dimension mismatch")

	// ErrUnrecognizedUnit is returned by every operation on a placeholder unit
	// that failed to parse.
	ErrUnrecognizedUnit = errors.New("units: unrecognized unit")

	// ErrScopeOrder is returned when a registry scope is closed out of LIFO order
	// or more than once.
	ErrScopeOrder = errors.New("units: scope closed out of order")
)

// Error codes carried by *Error.
const (
	CodeInvalidScale       = "INVALID_SCALE"
	CodeInvalidPower       = "INVALID_POWER"
	CodeInvalidBase        = "INVALID_BASE"
	CodeInvalidEquivalency = "INVALID_EQUIVALENCY"
	CodeNameConflict       = "NAME_CONFLICT"
	CodeNotConvertible     = "NOT_CONVERTIBLE"
	CodeNotRepresentable   = "NOT_REPRESENTABLE"
	CodeUnrecognized       = "UNRECOGNIZED"
	CodeScopeOrder         = "SCOPE_ORDER"
)

// Error wraps a sentinel with a machine-readable code and structured details.
type Error struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(code, format string, args ...any) error {
	return &Error{Err: ErrValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func unrecognizedError(name string) error {
	return &Error{
		Err:     ErrUnrecognizedUnit,
		Code:    CodeUnrecognized,
		Message: fmt.Sprintf("the unit %q is unrecognized, so all operations on it are invalid", name),
		Details: map[string]any{"unit": name},
	}
}

func mismatchError(code, format string, args ...any) error {
	return &Error{Err: ErrDimensionMismatch, Code: code, Message: fmt.Sprintf(format, args...)}
}

// conversionError builds the user-facing "not convertible" error, attaching
// physical-type labels when the labeler knows them.
func conversionError(from, to Unit, labeler Labeler) error {
	details := map[string]any{
		"from": from.String(),
		"to":   to.String(),
	}
	describe := func(u Unit, key string) string {
		s := fmt.Sprintf("'%s'", u.String())
		if labeler == nil {
			return s
		}
		id, err := u.PhysicalTypeID()
		if err != nil {
			return s
		}
		if label, ok := labeler.Label(id); ok {
			details[key] = label
			return fmt.Sprintf("%s (%s)", s, label)
		}
		return s
	}
	msg := fmt.Sprintf("%s and %s are not convertible", describe(from, "from_type"), describe(to, "to_type"))
	return &Error{Err: ErrDimensionMismatch, Code: CodeNotConvertible, Message: msg, Details: details}
}
