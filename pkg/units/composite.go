package units

import (
	"slices"
	"strconv"
	"strings"
	"sync"
)

// CompositeUnit is scale × Π bases[i]^powers[i] over named bases.
//
// Invariants: the scale is finite and non-zero; bases hold no duplicates;
// no power is zero; bases are sorted by descending power, then by name.
type CompositeUnit struct {
	scale  float64
	bases  []Unit
	powers []Power
	k      string

	decomposeOnce sync.Once
	decomposed    Unit
	decomposeErr  error

	ptype physicalTypeCell
}

var dimensionlessUnscaled = &CompositeUnit{scale: 1, k: "1|"}

// DimensionlessUnscaled returns the unique unit with no bases and a scale of 1.
func DimensionlessUnscaled() *CompositeUnit {
	return dimensionlessUnscaled
}

// NewComposite validates its inputs and builds the canonical unit
// scale × Π bases[i]^powers[i]. Composite bases are flattened and repeated
// bases merged.
func NewComposite(scale float64, bases []Unit, powers []Power) (*CompositeUnit, error) {
	if len(bases) != len(powers) {
		return nil, validationError(CodeInvalidBase, "got %d bases but %d powers", len(bases), len(powers))
	}
	s, err := sanitizeScale(scale)
	if err != nil {
		return nil, err
	}
	for _, b := range bases {
		if isNilUnit(b) {
			return nil, validationError(CodeInvalidBase, "bases must be units, got nil")
		}
		if u, ok := b.(*UnrecognizedUnit); ok {
			return nil, unrecognizedError(u.Name())
		}
	}
	return newComposite(s, bases, powers, false, nil)
}

// newComposite is the unchecked constructor. With decompose set, every base
// is first rewritten into irreducible units (or into targets).
func newComposite(scale float64, bases []Unit, powers []Power, decompose bool, targets []Unit) (*CompositeUnit, error) {
	if !decompose && len(bases) == 1 && powers[0].Sign() >= 0 {
		// one base with a non-negative power is already canonical once the
		// base's own factors are raised to the power
		u, p := bases[0], powers[0]
		var (
			outBases  []Unit
			outPowers []Power
		)
		switch {
		case p.IsZero():
		case p == Int(1):
			scale *= u.Scale()
			outBases = u.Bases()
			outPowers = u.Powers()
		default:
			scale *= scalePow(u.Scale(), p)
			outBases = u.Bases()
			outPowers = make([]Power, 0, len(outBases))
			for _, sub := range u.Powers() {
				np, err := sub.Mul(p)
				if err != nil {
					return nil, err
				}
				outPowers = append(outPowers, np)
			}
		}
		return finishComposite(scale, outBases, outPowers)
	}
	return expandAndGather(scale, bases, powers, decompose, targets)
}

func expandAndGather(scale float64, bases []Unit, powers []Power, decompose bool, targets []Unit) (*CompositeUnit, error) {
	var (
		order []Unit
		acc   = make(map[Unit]Power, len(bases))
	)

	add := func(u Unit, p Power) error {
		if len(targets) > 0 && !containsUnit(targets, u) {
			for _, t := range targets {
				s, err := scaleTo(u, t)
				if err != nil {
					continue
				}
				scale *= scalePow(s, p)
				u = t
				break
			}
		}
		if prev, ok := acc[u]; ok {
			sum, err := prev.Add(p)
			if err != nil {
				return err
			}
			acc[u] = sum
			return nil
		}
		order = append(order, u)
		acc[u] = p
		return nil
	}

	for i, b := range bases {
		p := powers[i]
		if decompose && !containsUnit(targets, b) {
			d, err := b.Decompose(targets...)
			if err != nil {
				return nil, err
			}
			b = d
		}
		if c, ok := b.(*CompositeUnit); ok {
			scale *= scalePow(c.scale, p)
			for j, sub := range c.bases {
				sp, err := c.powers[j].Mul(p)
				if err != nil {
					return nil, err
				}
				if err := add(sub, sp); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(b, p); err != nil {
			return nil, err
		}
	}

	outBases := make([]Unit, 0, len(order))
	for _, u := range order {
		if !acc[u].IsZero() {
			outBases = append(outBases, u)
		}
	}
	slices.SortStableFunc(outBases, func(a, b Unit) int {
		if c := acc[b].Cmp(acc[a]); c != 0 {
			return c
		}
		if c := strings.Compare(unitName(a), unitName(b)); c != 0 {
			return c
		}
		return strings.Compare(a.key(), b.key())
	})
	outPowers := make([]Power, len(outBases))
	for i, u := range outBases {
		outPowers[i] = acc[u].norm()
	}
	return finishComposite(scale, outBases, outPowers)
}

func finishComposite(scale float64, bases []Unit, powers []Power) (*CompositeUnit, error) {
	s, err := sanitizeScale(scale)
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 && s == 1 {
		return dimensionlessUnscaled, nil
	}
	c := &CompositeUnit{
		scale:  s,
		bases:  slices.Clone(bases),
		powers: slices.Clone(powers),
	}
	c.k = compositeKey(s, c.bases, c.powers)
	return c, nil
}

func compositeKey(scale float64, bases []Unit, powers []Power) string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(scale, 'g', -1, 64))
	b.WriteByte('|')
	for i, u := range bases {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u.key())
		b.WriteByte('^')
		b.WriteString(powers[i].String())
	}
	return b.String()
}

func (c *CompositeUnit) Scale() float64  { return c.scale }
func (c *CompositeUnit) Bases() []Unit   { return slices.Clone(c.bases) }
func (c *CompositeUnit) Powers() []Power { return slices.Clone(c.powers) }
func (c *CompositeUnit) key() string     { return c.k }
func (c *CompositeUnit) unitLike()       {}

func (c *CompositeUnit) PhysicalTypeID() (PhysicalTypeID, error) {
	return c.ptype.get(c)
}

// Decompose returns c rewritten over irreducible units (or targets). The
// target-free result is computed once and kept for the lifetime of c.
func (c *CompositeUnit) Decompose(targets ...Unit) (Unit, error) {
	if len(targets) == 0 {
		c.decomposeOnce.Do(func() {
			c.decomposed, c.decomposeErr = c.decompose(nil)
		})
		return c.decomposed, c.decomposeErr
	}
	return c.decompose(targets)
}

func (c *CompositeUnit) decompose(targets []Unit) (Unit, error) {
	if c.isExpressedIn(targets) {
		return c, nil
	}
	d, err := newComposite(c.scale, c.bases, c.powers, true, targets)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// isExpressedIn reports whether every base is irreducible and, when targets
// are given, one of the targets.
func (c *CompositeUnit) isExpressedIn(targets []Unit) bool {
	for _, b := range c.bases {
		if _, ok := b.(*IrreducibleUnit); !ok {
			return false
		}
		if len(targets) > 0 && !containsUnit(targets, b) {
			return false
		}
	}
	return true
}

// IsUnity reports whether c is dimensionless with a scale of exactly 1
// once decomposed.
func (c *CompositeUnit) IsUnity() bool {
	d, err := c.Decompose()
	if err != nil {
		return false
	}
	return len(d.Bases()) == 0 && d.Scale() == 1
}

func (c *CompositeUnit) String() string {
	return formatUnit(c.scale, c.bases, c.powers)
}
