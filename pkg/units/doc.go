// Package units is a dimensional-analysis engine.
//
// A unit is an exact product scale × Π base^power over irreducible units,
// with rational powers. Units can be decomposed into irreducible bases,
// compared, converted (by pure scale or through explicit equivalency rules)
// and re-composed into the simplest products drawn from a vocabulary of
// named units.
//
// The vocabulary, the enabled equivalencies and the aliases live in a
// Registry. A Stack holds registry snapshots; pushing a snapshot returns a
// Scope whose Close pops it again:
//
//	scope, err := stack.AddEnabledUnits(km, mile)
//	if err != nil {
//		return err
//	}
//	defer scope.Close()
//
//	results, err := stack.Compose(units.Name("kph"))
//
// Every error returned by this package wraps one of ErrValidation,
// ErrDimensionMismatch, ErrUnrecognizedUnit or ErrScopeOrder.
package units
