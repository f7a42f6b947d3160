package units

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// Unit is an immutable algebraic unit: Scale() × Π Bases()[i]^Powers()[i].
//
// Named units report themselves as their single base with power 1 and a
// scale of 1. Composite units report their flattened, canonically ordered
// bases. Implementations are pointer types; unit identity is pointer
// identity.
type Unit interface {
	UnitLike

	Scale() float64
	Bases() []Unit
	Powers() []Power

	// Decompose rewrites the unit in terms of irreducible units, or, when
	// targets are given, in terms of the targets only.
	Decompose(targets ...Unit) (Unit, error)

	// PhysicalTypeID returns the scale-free dimensional signature.
	PhysicalTypeID() (PhysicalTypeID, error)

	String() string

	key() string
}

// Named is implemented by units that carry names.
type Named interface {
	Unit
	Name() string
	Names() []string
	Aliases() []string
}

var unitSeq atomic.Uint64

// identity is the arena slot shared by every named unit: a process-unique
// sequence number plus its names.
type identity struct {
	id    uint64
	names []string
	short []string
	long  []string
}

func newIdentity(names []string) (identity, error) {
	if len(names) == 0 {
		return identity{}, validationError(CodeInvalidBase, "a named unit needs at least one name")
	}
	for _, n := range names {
		if n == "" || strings.IndexFunc(n, unicode.IsSpace) >= 0 {
			return identity{}, validationError(CodeInvalidBase, "invalid unit name %q", n)
		}
	}
	return identity{
		id:    unitSeq.Add(1),
		names: append([]string(nil), names...),
		short: []string{names[0]},
		long:  append([]string(nil), names[1:]...),
	}, nil
}

// Name returns the canonical (first) name.
func (i *identity) Name() string { return i.names[0] }

// Names returns every name, canonical first.
func (i *identity) Names() []string { return append([]string(nil), i.names...) }

// Aliases returns all names except the canonical one.
func (i *identity) Aliases() []string { return append([]string(nil), i.names[1:]...) }

// ShortNames returns the names that take symbol prefixes (e.g. "k").
func (i *identity) ShortNames() []string { return append([]string(nil), i.short...) }

// LongNames returns the names that take word prefixes (e.g. "kilo").
func (i *identity) LongNames() []string { return append([]string(nil), i.long...) }

func (i *identity) key() string { return fmt.Sprintf("#%d", i.id) }

func (i *identity) unitLike() {}

type physicalTypeCell struct {
	once sync.Once
	id   PhysicalTypeID
	err  error
}

func (c *physicalTypeCell) get(u Unit) (PhysicalTypeID, error) {
	c.once.Do(func() {
		c.id, c.err = computePhysicalTypeID(u)
	})
	return c.id, c.err
}

// IrreducibleUnit is an atomic unit that every other unit is eventually
// defined in terms of, such as the meter or the second. There is exactly one
// instance per physical base.
type IrreducibleUnit struct {
	identity
	ptype physicalTypeCell
}

// NewIrreducible creates a new atomic unit. The first name is canonical.
func NewIrreducible(names ...string) (*IrreducibleUnit, error) {
	ident, err := newIdentity(names)
	if err != nil {
		return nil, err
	}
	return &IrreducibleUnit{identity: ident}, nil
}

func (u *IrreducibleUnit) Scale() float64  { return 1 }
func (u *IrreducibleUnit) Bases() []Unit   { return []Unit{u} }
func (u *IrreducibleUnit) Powers() []Power { return []Power{Int(1)} }
func (u *IrreducibleUnit) String() string  { return u.Name() }

func (u *IrreducibleUnit) PhysicalTypeID() (PhysicalTypeID, error) {
	return u.ptype.get(u)
}

// Decompose returns u itself, or, when targets are given and u is not among
// them, the first target u is a pure scaling of.
func (u *IrreducibleUnit) Decompose(targets ...Unit) (Unit, error) {
	if len(targets) == 0 || containsUnit(targets, u) {
		return u, nil
	}
	for _, t := range targets {
		scale, err := scaleTo(u, t)
		if err != nil {
			continue
		}
		if IsEffectivelyUnity(scale) {
			return t, nil
		}
		return newComposite(scale, []Unit{t}, []Power{Int(1)}, false, nil)
	}
	return nil, mismatchError(CodeNotConvertible, "unit %s can not be decomposed into the requested bases", u)
}

// NamedUnit binds one or more names to the unit it represents. Prefixed
// variants created by Define are NamedUnits with IsPrefix() == true.
type NamedUnit struct {
	identity
	represents Unit
	prefix     bool
	ptype      physicalTypeCell
}

// NewNamed defines names as an alias-carrying handle for represents.
func NewNamed(names []string, represents Unit) (*NamedUnit, error) {
	ident, err := newIdentity(names)
	if err != nil {
		return nil, err
	}
	if isNilUnit(represents) {
		return nil, validationError(CodeInvalidBase, "named unit %s must represent a unit", names[0])
	}
	if u, ok := represents.(*UnrecognizedUnit); ok {
		return nil, unrecognizedError(u.Name())
	}
	return &NamedUnit{identity: ident, represents: represents}, nil
}

func (u *NamedUnit) Scale() float64  { return 1 }
func (u *NamedUnit) Bases() []Unit   { return []Unit{u} }
func (u *NamedUnit) Powers() []Power { return []Power{Int(1)} }
func (u *NamedUnit) String() string  { return u.Name() }

// Represents returns the unit this name stands for.
func (u *NamedUnit) Represents() Unit { return u.represents }

// IsPrefix reports whether u is a prefixed variant of another unit.
func (u *NamedUnit) IsPrefix() bool { return u.prefix }

func (u *NamedUnit) PhysicalTypeID() (PhysicalTypeID, error) {
	return u.ptype.get(u)
}

func (u *NamedUnit) Decompose(targets ...Unit) (Unit, error) {
	return u.represents.Decompose(targets...)
}

// UnrecognizedUnit is the inert placeholder for a unit string that did not
// parse. It round-trips its name and compares equal to placeholders with the
// same name; every other operation fails with ErrUnrecognizedUnit.
type UnrecognizedUnit struct {
	name string
}

// NewUnrecognized wraps name in a placeholder unit.
func NewUnrecognized(name string) *UnrecognizedUnit {
	return &UnrecognizedUnit{name: name}
}

func (u *UnrecognizedUnit) Name() string      { return u.name }
func (u *UnrecognizedUnit) Names() []string   { return []string{u.name} }
func (u *UnrecognizedUnit) Aliases() []string { return nil }
func (u *UnrecognizedUnit) Scale() float64    { return 1 }
func (u *UnrecognizedUnit) Bases() []Unit     { return []Unit{u} }
func (u *UnrecognizedUnit) Powers() []Power   { return []Power{Int(1)} }
func (u *UnrecognizedUnit) String() string    { return u.name }
func (u *UnrecognizedUnit) key() string       { return "?" + u.name }
func (u *UnrecognizedUnit) unitLike()         {}

func (u *UnrecognizedUnit) Decompose(...Unit) (Unit, error) {
	return nil, unrecognizedError(u.name)
}

func (u *UnrecognizedUnit) PhysicalTypeID() (PhysicalTypeID, error) {
	return "", unrecognizedError(u.name)
}

// isNilUnit reports whether u is nil or a nil pointer behind the interface.
func isNilUnit(u Unit) bool {
	switch v := u.(type) {
	case nil:
		return true
	case *IrreducibleUnit:
		return v == nil
	case *NamedUnit:
		return v == nil
	case *CompositeUnit:
		return v == nil
	case *UnrecognizedUnit:
		return v == nil
	}
	// units defined outside the package embed one of the types above
	return keyPanics(u)
}

func keyPanics(u Unit) (panicked bool) {
	defer func() {
		if recover() != nil {
			panicked = true
		}
	}()
	_ = u.key()
	return false
}

func isUnrecognized(u Unit) bool {
	_, ok := u.(*UnrecognizedUnit)
	return ok
}

func containsUnit(set []Unit, u Unit) bool {
	for _, s := range set {
		if s == u {
			return true
		}
	}
	return false
}

// unitName returns the sort name of a base.
func unitName(u Unit) string {
	if n, ok := u.(Named); ok {
		return n.Name()
	}
	return u.String()
}
