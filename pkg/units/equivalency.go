package units

import (
	"fmt"
	"sync/atomic"
)

// Transform maps a value expressed in one unit to a value in another.
type Transform func(float64) float64

// Identity is the Transform that returns its input unchanged.
func Identity(v float64) float64 { return v }

// Equivalency is a conversion rule bridging units that are not dimensionally
// interchangeable. A nil To means From may be treated as dimensionless.
type Equivalency struct {
	From     Unit
	To       Unit
	Forward  Transform
	Backward Transform

	id uint64
}

var equivalencySeq atomic.Uint64

// NewEquivalency validates and returns a rule. Either transform may be nil,
// in which case the other is used for both directions; when both are nil
// the rule is the identity bridge.
func NewEquivalency(from, to Unit, forward, backward Transform) (Equivalency, error) {
	switch {
	case forward == nil && backward == nil:
		forward, backward = Identity, Identity
	case forward == nil:
		forward = backward
	case backward == nil:
		backward = forward
	}
	e := Equivalency{From: from, To: to, Forward: forward, Backward: backward}
	if err := e.validate(-1); err != nil {
		return Equivalency{}, err
	}
	e.id = equivalencySeq.Add(1)
	return e, nil
}

// OneSided reports whether the rule bridges From to dimensionless.
func (e Equivalency) OneSided() bool { return e.To == nil }

func (e Equivalency) String() string {
	to := "dimensionless"
	if e.To != nil {
		to = e.To.String()
	}
	from := "<nil>"
	if e.From != nil {
		from = e.From.String()
	}
	return fmt.Sprintf("%s <-> %s", from, to)
}

func (e Equivalency) validate(index int) error {
	where := "equivalency"
	if index >= 0 {
		where = fmt.Sprintf("equivalency entry %d", index)
	}
	if isNilUnit(e.From) || isUnrecognized(e.From) {
		return validationError(CodeInvalidEquivalency, "invalid %s: from side must be a unit", where)
	}
	if e.To != nil && (isNilUnit(e.To) || isUnrecognized(e.To)) {
		return validationError(CodeInvalidEquivalency, "invalid %s: to side must be a unit or absent", where)
	}
	if e.Forward == nil || e.Backward == nil {
		return validationError(CodeInvalidEquivalency, "invalid %s: both transforms must be callable", where)
	}
	return nil
}

// normalized returns e ready for storage, assigning an identity to rules
// built as struct literals.
func (e Equivalency) normalized(index int) (Equivalency, error) {
	if err := e.validate(index); err != nil {
		return Equivalency{}, err
	}
	if e.id == 0 {
		e.id = equivalencySeq.Add(1)
	}
	return e, nil
}

// NormalizeEquivalencies turns loosely shaped rules into Equivalency values.
// Each entry has 2, 3 or 4 elements: (from, to) with identity transforms,
// (from, to, f) with f in both directions, or (from, to, forward, backward).
// The to element may be nil. Transforms may be Transform values or plain
// func(float64) float64.
func NormalizeEquivalencies(raw [][]any) ([]Equivalency, error) {
	out := make([]Equivalency, 0, len(raw))
	for i, entry := range raw {
		var (
			from, to Unit
			fwd, bwd Transform
			ok       bool
		)
		switch len(entry) {
		case 2, 3, 4:
		default:
			return nil, validationError(CodeInvalidEquivalency, "invalid equivalency entry %d: expected 2 to 4 elements, got %d", i, len(entry))
		}
		from, ok = asUnit(entry[0], false)
		if !ok {
			return nil, validationError(CodeInvalidEquivalency, "invalid equivalency entry %d: from side must be a unit", i)
		}
		to, ok = asUnit(entry[1], true)
		if !ok {
			return nil, validationError(CodeInvalidEquivalency, "invalid equivalency entry %d: to side must be a unit or nil", i)
		}
		switch len(entry) {
		case 2:
			fwd, bwd = Identity, Identity
		case 3:
			fwd, ok = asTransform(entry[2])
			bwd = fwd
		case 4:
			var ok2 bool
			fwd, ok = asTransform(entry[2])
			bwd, ok2 = asTransform(entry[3])
			ok = ok && ok2
		}
		if !ok {
			return nil, validationError(CodeInvalidEquivalency, "invalid equivalency entry %d: transforms must be callable", i)
		}
		e, err := Equivalency{From: from, To: to, Forward: fwd, Backward: bwd}.normalized(i)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func asUnit(v any, allowNil bool) (Unit, bool) {
	if v == nil {
		return nil, allowNil
	}
	u, ok := v.(Unit)
	if !ok || isNilUnit(u) {
		return nil, false
	}
	return u, true
}

func asTransform(v any) (Transform, bool) {
	switch f := v.(type) {
	case Transform:
		return f, f != nil
	case func(float64) float64:
		return f, f != nil
	}
	return nil, false
}

// normalizeRules validates rules and assigns identities where missing.
func normalizeRules(rules []Equivalency) ([]Equivalency, error) {
	out := make([]Equivalency, 0, len(rules))
	for i, e := range rules {
		n, err := e.normalized(i)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// unionRules appends the rules of extra not already present in base.
func unionRules(base, extra []Equivalency) []Equivalency {
	seen := make(map[uint64]struct{}, len(base)+len(extra))
	out := make([]Equivalency, 0, len(base)+len(extra))
	for _, set := range [][]Equivalency{base, extra} {
		for _, e := range set {
			if _, dup := seen[e.id]; dup {
				continue
			}
			seen[e.id] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// EquivalencyProvider is implemented by unit-like values that carry their
// own conversion rules. The converter consults them as a last resort.
type EquivalencyProvider interface {
	Equivalencies() []Equivalency
}

// isEquivalent reports whether a converts to b by scale alone or through
// one of the rules. Rule endpoints are matched without further rules.
func isEquivalent(a, b Unit, rules []Equivalency) bool {
	if isUnrecognized(a) || isUnrecognized(b) {
		return false
	}
	if samePhysicalType(a, b) {
		return true
	}
	if len(rules) == 0 {
		return false
	}
	ad, err := a.Decompose()
	if err != nil {
		return false
	}
	bd, err := b.Decompose()
	if err != nil {
		return false
	}
	for _, r := range rules {
		if r.To == nil {
			// is what remains after cancelling expressible in the bridged unit?
			ratio, err := Div(bd, ad)
			if err != nil {
				continue
			}
			if _, err := ratio.Decompose(r.From); err == nil {
				return true
			}
			continue
		}
		if (samePhysicalType(r.From, ad) && samePhysicalType(r.To, bd)) ||
			(samePhysicalType(r.To, ad) && samePhysicalType(r.From, bd)) {
			return true
		}
	}
	return false
}

// applyEquivalencies builds a value converter from a to b through the first
// rule, in order, that bridges them.
func applyEquivalencies(a, b Unit, rules []Equivalency, labeler Labeler) (Converter, error) {
	for _, r := range rules {
		if r.To == nil {
			ad, err := a.Decompose()
			if err != nil {
				continue
			}
			bd, err := b.Decompose()
			if err != nil {
				continue
			}
			ratio, err := Div(bd, ad)
			if err != nil {
				continue
			}
			inFrom, err := ratio.Decompose(r.From)
			if err != nil {
				continue
			}
			return transformConverter(inFrom.Scale(), r.Forward, 1), nil
		}
		if s1, err := scaleTo(r.From, a); err == nil {
			if s2, err := scaleTo(r.To, b); err == nil {
				return transformConverter(s1, r.Forward, s2), nil
			}
		}
		if s1, err := scaleTo(r.To, a); err == nil {
			if s2, err := scaleTo(r.From, b); err == nil {
				return transformConverter(s1, r.Backward, s2), nil
			}
		}
	}
	return Converter{}, conversionError(a, b, labeler)
}
