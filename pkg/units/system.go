package units

import (
	"cmp"
	"slices"
	"time"

	"github.com/polisai/polis-units/pkg/telemetry"
)

// ToSystem re-expresses u in a unit system. u is first decomposed into the
// system's bases, then composed over the system's units; results made mostly
// of system bases come first, ties keeping the compose ranking. Without
// bases, the irreducible units among system are used.
func (s *Stack) ToSystem(u UnitLike, system, bases []Unit, opts ...Option) ([]Unit, error) {
	start := time.Now()
	results, err := s.toSystem(u, system, bases, opts)
	s.record(telemetry.OperationToSystem, err, "", start)
	return results, err
}

func (s *Stack) toSystem(v UnitLike, system, bases []Unit, opts []Option) ([]Unit, error) {
	if len(system) == 0 {
		return nil, validationError(CodeInvalidBase, "a unit system needs at least one unit")
	}
	for _, u := range append(append(make([]Unit, 0, len(system)+len(bases)), system...), bases...) {
		if isNilUnit(u) {
			return nil, validationError(CodeInvalidBase, "unit system members must be units, got nil")
		}
		if isUnrecognized(u) {
			return nil, unrecognizedError(u.String())
		}
	}
	if len(bases) == 0 {
		for _, u := range system {
			if _, ok := u.(*IrreducibleUnit); ok {
				bases = append(bases, u)
			}
		}
	}

	u, err := coerce(v, s.Current(), s.parser, false)
	if err != nil {
		return nil, err
	}
	inBases, err := u.Decompose(bases...)
	if err != nil {
		return nil, err
	}

	o := newCallOptions(s.maxDepth, opts)
	o.vocabulary = append(append(make([]Unit, 0, len(o.vocabulary)+len(system)), o.vocabulary...), system...)
	o.hasVocabulary = true
	composed, err := s.compose(inBases, o)
	if err != nil {
		return nil, err
	}
	rankBySystem(composed, bases)
	return composed, nil
}

// rankBySystem orders us by the share of their bases drawn from bases,
// highest first. The sort is stable.
func rankBySystem(us []Unit, bases []Unit) {
	slices.SortStableFunc(us, func(a, b Unit) int {
		return cmp.Compare(systemScore(b, bases), systemScore(a, bases))
	})
}

func systemScore(u Unit, bases []Unit) float64 {
	ub := u.Bases()
	if len(ub) == 0 {
		return 0
	}
	n := 0
	for _, b := range ub {
		if containsUnit(bases, b) {
			n++
		}
	}
	return float64(n) / float64(len(ub))
}
