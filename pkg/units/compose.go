package units

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// composeEntry is a cached sub-search outcome: results, or the failure that
// sibling queries should short-circuit on.
type composeEntry struct {
	results []Unit
	err     error
}

// composer holds the state shared by every level of one search.
type composer struct {
	rules    []Equivalency
	vocab    []Unit
	vocabSet map[Unit]struct{}
	maxDepth int
	cache    map[string]composeEntry

	hits   int
	pruned int
}

func newComposer(vocab []Unit, rules []Equivalency, maxDepth int) *composer {
	set := make(map[Unit]struct{}, len(vocab))
	for _, u := range vocab {
		set[u] = struct{}{}
	}
	return &composer{
		rules:    rules,
		vocab:    vocab,
		vocabSet: set,
		maxDepth: maxDepth,
		cache:    make(map[string]composeEntry),
	}
}

// isFinal reports whether every base of u is a vocabulary unit.
func (c *composer) isFinal(u Unit) bool {
	for _, b := range u.Bases() {
		if _, ok := c.vocabSet[b]; !ok {
			return false
		}
	}
	return true
}

type partialResult struct {
	remaining int
	composed  Unit
	factor    Unit
}

func (c *composer) compose(self Unit, depth int) ([]Unit, error) {
	unit, err := self.Decompose()
	if err != nil {
		return nil, err
	}
	k := unit.key()
	if e, ok := c.cache[k]; ok {
		c.hits++
		return e.results, e.err
	}

	if depth >= c.maxDepth {
		c.cache[k] = composeEntry{results: []Unit{unit}}
		return []Unit{unit}, nil
	}

	forms := c.candidateForms(self, unit)

	var (
		final   [2]unitSet
		partial []partialResult
	)
	if len(unit.Bases()) == 0 {
		final[0].add(unit)
	}

	for _, t := range c.vocab {
		td, err := t.Decompose()
		if err != nil {
			continue
		}
		for _, u := range forms {
			factor, factorDecomposed := t, td
			if len(td.Bases()) == 1 {
				// factor out the matching base at its own power so fractional
				// exponents are found without an exhaustive search
				bases, powers := u.Bases(), u.Powers()
				for i, b := range bases {
					if !samePhysicalType(td, b) {
						continue
					}
					fp, err1 := Pow(t, powers[i])
					fdp, err2 := Pow(td, powers[i])
					if err1 == nil && err2 == nil {
						factor, factorDecomposed = fp, fdp
					}
					break
				}
			}

			q, err := Div(u, factorDecomposed)
			if err != nil {
				continue
			}
			composed, err := q.Decompose()
			if err != nil {
				continue
			}
			factored, err := Mul(composed, factor)
			if err != nil {
				continue
			}
			n := len(composed.Bases())
			if n <= 1 && c.isFinal(factored) {
				final[n].add(factored)
			} else {
				partial = append(partial, partialResult{remaining: n, composed: composed, factor: factor})
			}
		}
	}

	if final[0].len() > 0 || final[1].len() > 0 {
		var results unitSet
		results.addAll(final[0].units)
		results.addAll(final[1].units)
		c.cache[k] = composeEntry{results: results.units}
		return results.units, nil
	}

	slices.SortStableFunc(partial, func(a, b partialResult) int {
		return cmp.Compare(a.remaining, b.remaining)
	})

	var subs []partialResult
	for _, p := range partial {
		list, err := c.compose(p.composed, depth+1)
		if err != nil {
			// a branch that cannot be resolved is dropped, not fatal
			c.pruned++
			continue
		}
		for _, sub := range list {
			subs = append(subs, partialResult{remaining: len(sub.Bases()), composed: sub, factor: p.factor})
		}
	}

	if len(subs) > 0 {
		slices.SortStableFunc(subs, func(a, b partialResult) int {
			return cmp.Compare(a.remaining, b.remaining)
		})
		minRemaining := subs[0].remaining
		var results unitSet
		for _, s := range subs {
			if s.remaining > minRemaining {
				break
			}
			factored, err := Mul(s.composed, s.factor)
			if err != nil {
				continue
			}
			if c.isFinal(factored) {
				results.add(factored)
			}
		}
		if results.len() > 0 {
			c.cache[k] = composeEntry{results: results.units}
			return results.units, nil
		}
	}

	if !c.isFinal(self) {
		err := mismatchError(CodeNotRepresentable, "cannot represent unit %s in terms of the given units", self)
		c.cache[k] = composeEntry{err: err}
		return nil, err
	}
	c.cache[k] = composeEntry{results: []Unit{self}}
	return []Unit{self}, nil
}

// candidateForms lists unit together with its rewrites through every rule
// bridging self's dimension.
func (c *composer) candidateForms(self, unit Unit) []Unit {
	forms := []Unit{unit}
	for _, r := range c.rules {
		var form Unit
		switch {
		case r.To == nil:
			if !samePhysicalType(self, r.From) {
				continue
			}
			d, err := Dimensionless(unit.Scale())
			if err != nil {
				continue
			}
			form = d
		case samePhysicalType(self, r.From):
			form = bridgedForm(unit, r.From, r.To, r.Forward)
		case samePhysicalType(self, r.To):
			form = bridgedForm(unit, r.To, r.From, r.Backward)
		}
		if form != nil {
			forms = append(forms, form)
		}
	}
	return forms
}

// bridgedForm rewrites unit, which shares from's dimension, as a multiple
// of to: fn(1/scale) × to with scale the ratio of from to unit.
func bridgedForm(unit, from, to Unit, fn Transform) Unit {
	fd, err := from.Decompose()
	if err != nil {
		return nil
	}
	scale := fd.Scale() / unit.Scale()
	k := fn(1 / scale)
	scaled, err := Scaled(k, to)
	if err != nil {
		return nil
	}
	d, err := scaled.Decompose()
	if err != nil {
		return nil
	}
	return d
}

// unitSet keeps units in insertion order, deduplicated by structure.
type unitSet struct {
	units []Unit
	seen  map[string]struct{}
}

func (s *unitSet) add(u Unit) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	k := u.key()
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.units = append(s.units, u)
}

func (s *unitSet) addAll(us []Unit) {
	for _, u := range us {
		s.add(u)
	}
}

func (s *unitSet) len() int { return len(s.units) }

// rankUnits orders compose results simplest first: unscaled before scaled,
// net-positive exponents before net-negative, smaller total |power|, then
// smaller |scale|. Rendering breaks the remaining ties.
func rankUnits(us []Unit) {
	type ranked struct {
		u        Unit
		scaled   bool
		negative bool
		absSum   float64
		absScale float64
		text     string
	}
	rs := make([]ranked, len(us))
	for i, u := range us {
		var sum, absSum float64
		for _, p := range u.Powers() {
			f := p.Float64()
			sum += f
			absSum += math.Abs(f)
		}
		rs[i] = ranked{
			u:        u,
			scaled:   !IsEffectivelyUnity(u.Scale()),
			negative: sum < 0,
			absSum:   absSum,
			absScale: math.Abs(u.Scale()),
			text:     u.String(),
		}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		if c := compareBool(a.scaled, b.scaled); c != 0 {
			return c
		}
		if c := compareBool(a.negative, b.negative); c != 0 {
			return c
		}
		if c := cmp.Compare(a.absSum, b.absSum); c != 0 {
			return c
		}
		if c := cmp.Compare(a.absScale, b.absScale); c != 0 {
			return c
		}
		return strings.Compare(a.text, b.text)
	})
	for i := range rs {
		us[i] = rs[i].u
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// hasBasesInCommon reports whether a and b share a base. Two dimensionless
// units count as sharing.
func hasBasesInCommon(a, b Unit) bool {
	ab, bb := a.Bases(), b.Bases()
	if len(ab) == 0 && len(bb) == 0 {
		return true
	}
	for _, x := range ab {
		if containsUnit(bb, x) {
			return true
		}
	}
	return false
}

// hasBasesInCommonWithEquiv extends hasBasesInCommon by one hop through
// the rules.
func hasBasesInCommonWithEquiv(unit, other Unit, rules []Equivalency) bool {
	if hasBasesInCommon(unit, other) {
		return true
	}
	for _, r := range rules {
		var bridged Unit
		switch {
		case r.To == nil:
			if samePhysicalType(unit, r.From) {
				bridged = dimensionlessUnscaled
			}
		case samePhysicalType(unit, r.From):
			bridged = r.To
		case samePhysicalType(unit, r.To):
			bridged = r.From
		}
		if bridged == nil {
			continue
		}
		d, err := bridged.Decompose()
		if err != nil {
			continue
		}
		if hasBasesInCommon(d, other) {
			return true
		}
	}
	return false
}

func isPrefixUnit(u Unit) bool {
	p, ok := u.(interface{ IsPrefix() bool })
	return ok && p.IsPrefix()
}

// filterVocabulary keeps the candidates that can contribute to composing
// decomposed, sorted by name for a deterministic search order.
func filterVocabulary(candidates []Unit, decomposed Unit, rules []Equivalency, includePrefixed bool) []Unit {
	seen := make(map[Unit]struct{}, len(candidates))
	out := make([]Unit, 0, len(candidates))
	for _, t := range candidates {
		if isNilUnit(t) || isUnrecognized(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		if !includePrefixed && isPrefixUnit(t) {
			continue
		}
		td, err := t.Decompose()
		if err != nil {
			continue
		}
		if !hasBasesInCommonWithEquiv(decomposed, td, rules) {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sortUnits(out)
	return out
}

func sortUnits(us []Unit) {
	slices.SortStableFunc(us, func(a, b Unit) int {
		if c := strings.Compare(unitName(a), unitName(b)); c != 0 {
			return c
		}
		return strings.Compare(a.key(), b.key())
	})
}

// unitsWithSamePhysicalType collects the registered units sharing u's
// dimension, directly or through a rule.
func unitsWithSamePhysicalType(u Unit, reg *Registry, rules []Equivalency) []Unit {
	out := reg.UnitsWithPhysicalType(u)
	for _, r := range rules {
		switch {
		case r.To == nil:
			if samePhysicalType(u, r.From) {
				out = append(out, dimensionlessUnscaled)
			}
		default:
			if samePhysicalType(u, r.From) {
				out = append(out, reg.UnitsWithPhysicalType(r.To)...)
			}
			if samePhysicalType(u, r.To) {
				out = append(out, reg.UnitsWithPhysicalType(r.From)...)
			}
		}
	}
	return out
}
