package units

import (
	"strconv"
	"strings"
)

// UnitLike is anything an entry point accepts where a unit is expected: a
// Unit, a Name to be resolved in the current scope, or a Number standing
// for a scaled dimensionless unit.
type UnitLike interface {
	unitLike()
}

// Name is a unit name resolved against the current registry, its aliases
// and finally the stack's Parser.
type Name string

func (Name) unitLike() {}

// Number is a bare scale, coerced to a dimensionless unit.
type Number float64

func (Number) unitLike() {}

// Parser turns unit strings the registry does not know into units.
type Parser interface {
	Parse(s string) (Unit, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(string) (Unit, error)

func (f ParserFunc) Parse(s string) (Unit, error) { return f(s) }

// coerce resolves v against reg. With lenient set, names that cannot be
// resolved become UnrecognizedUnit placeholders instead of errors.
func coerce(v UnitLike, reg *Registry, parser Parser, lenient bool) (Unit, error) {
	switch x := v.(type) {
	case nil:
		return nil, validationError(CodeInvalidBase, "expected a unit, got nil")
	case Unit:
		if isNilUnit(x) {
			return nil, validationError(CodeInvalidBase, "expected a unit, got a nil %T", x)
		}
		return x, nil
	case Number:
		return Dimensionless(float64(x))
	case Name:
		return resolveName(string(x), reg, parser, lenient)
	}
	return nil, validationError(CodeInvalidBase, "unsupported unit-like value %T", v)
}

func resolveName(s string, reg *Registry, parser Parser, lenient bool) (Unit, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return dimensionlessUnscaled, nil
	}
	if u, ok := reg.Resolve(name); ok {
		return u, nil
	}
	if f, err := strconv.ParseFloat(name, 64); err == nil {
		return Dimensionless(f)
	}
	if parser != nil {
		u, err := parser.Parse(name)
		if err == nil && u != nil {
			return u, nil
		}
		if !lenient {
			if err == nil {
				err = unrecognizedError(name)
			}
			return nil, err
		}
	}
	if lenient {
		return NewUnrecognized(name), nil
	}
	return nil, &Error{
		Err:     ErrUnrecognizedUnit,
		Code:    CodeUnrecognized,
		Message: "unit " + strconv.Quote(name) + " is not defined in the current scope",
		Details: map[string]any{"unit": name},
	}
}
