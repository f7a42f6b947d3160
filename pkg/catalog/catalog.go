package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/polisai/polis-units/pkg/config"
	"github.com/polisai/polis-units/pkg/units"
)

// Catalog is a built set of unit tables: a registry of enabled units and
// aliases, named equivalency sets and physical-type labels.
type Catalog struct {
	registry *units.Registry
	types    *PhysicalTypes
	sets     map[string][]units.Equivalency
}

// Build defines the units of every table, in order, on a fresh registry.
func Build(tables ...*Table) (*Catalog, error) {
	c := &Catalog{
		registry: units.NewRegistry(),
		types:    NewPhysicalTypes(),
		sets:     make(map[string][]units.Equivalency),
	}
	for i, t := range tables {
		if t == nil {
			continue
		}
		if err := c.apply(t); err != nil {
			return nil, fmt.Errorf("unit table %d: %w", i, err)
		}
	}
	return c, nil
}

// Load builds the catalog selected by cfg: the builtin table, then the
// configured file.
func Load(cfg config.CatalogConfig) (*Catalog, error) {
	var tables []*Table
	if cfg.UseBuiltin() {
		t, err := Builtin()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if cfg.File != "" {
		t, err := LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return Build(tables...)
}

func (c *Catalog) apply(t *Table) error {
	for i, spec := range t.Units {
		if len(spec.Names) == 0 {
			return fmt.Errorf("unit entry %d has no names", i)
		}
		def, err := c.define(spec)
		if err != nil {
			return fmt.Errorf("unit %s: %w", spec.Names[0], err)
		}
		if err := c.registry.AddEnabledUnits(def.All()...); err != nil {
			return fmt.Errorf("unit %s: %w", spec.Names[0], err)
		}
	}

	setNames := make([]string, 0, len(t.Equivalencies))
	for name := range t.Equivalencies {
		setNames = append(setNames, name)
	}
	sort.Strings(setNames)
	for _, name := range setNames {
		for i, spec := range t.Equivalencies[name] {
			e, err := c.equivalency(spec)
			if err != nil {
				return fmt.Errorf("equivalency set %s entry %d: %w", name, i, err)
			}
			c.sets[name] = append(c.sets[name], e)
		}
	}

	for _, name := range t.Enable {
		rules, ok := c.sets[name]
		if !ok {
			return fmt.Errorf("cannot enable unknown equivalency set %q", name)
		}
		if err := c.registry.AddEnabledEquivalencies(rules...); err != nil {
			return fmt.Errorf("equivalency set %s: %w", name, err)
		}
	}

	if len(t.Aliases) > 0 {
		aliases := make(map[string]units.Unit, len(t.Aliases))
		for alias, target := range t.Aliases {
			u, ok := c.registry.Resolve(target)
			if !ok {
				return fmt.Errorf("alias %s: unknown unit %q", alias, target)
			}
			aliases[alias] = u
		}
		if err := c.registry.AddEnabledAliases(aliases); err != nil {
			return err
		}
	}

	for i, spec := range t.PhysicalTypes {
		if len(spec.Labels) == 0 {
			return fmt.Errorf("physical type entry %d has no labels", i)
		}
		u, err := c.product(nil, spec.Terms)
		if err != nil {
			return fmt.Errorf("physical type %s: %w", spec.Labels[0], err)
		}
		id, err := u.PhysicalTypeID()
		if err != nil {
			return fmt.Errorf("physical type %s: %w", spec.Labels[0], err)
		}
		c.types.Add(id, spec.Labels...)
	}
	return nil
}

func (c *Catalog) define(spec UnitSpec) (units.Definition, error) {
	var opts []units.DefineOption
	for _, name := range spec.Prefixes {
		prefixes, ok := units.PrefixesByName[strings.ToLower(name)]
		if !ok {
			return units.Definition{}, fmt.Errorf("unknown prefix table %q", name)
		}
		opts = append(opts, units.WithPrefixes(prefixes...))
	}
	if len(spec.ExcludePrefixes) > 0 {
		opts = append(opts, units.WithExcludePrefixes(spec.ExcludePrefixes...))
	}

	if spec.Irreducible() {
		return units.Define(spec.Names, nil, opts...)
	}
	represents, err := c.product(spec.Scale, spec.Terms)
	if err != nil {
		return units.Definition{}, err
	}
	return units.Define(spec.Names, represents, opts...)
}

// product builds scale × Π terms. Terms are multiplied in name order so the
// resulting scale does not depend on map iteration order.
func (c *Catalog) product(scale *Factor, terms map[string]Exponent) (units.Unit, error) {
	names := make([]string, 0, len(terms))
	for name := range terms {
		names = append(names, name)
	}
	sort.Strings(names)

	bases := make([]units.Unit, 0, len(names))
	powers := make([]units.Power, 0, len(names))
	for _, name := range names {
		u, ok := c.registry.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("unknown unit %q", name)
		}
		bases = append(bases, u)
		powers = append(powers, terms[name].Power)
	}

	s := 1.0
	if scale != nil {
		s = float64(*scale)
	}
	u, err := units.NewComposite(s, bases, powers)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Catalog) equivalency(spec EquivalencySpec) (units.Equivalency, error) {
	from, ok := c.registry.Resolve(spec.From)
	if !ok {
		return units.Equivalency{}, fmt.Errorf("unknown unit %q", spec.From)
	}
	var to units.Unit
	if spec.To != "" {
		if to, ok = c.registry.Resolve(spec.To); !ok {
			return units.Equivalency{}, fmt.Errorf("unknown unit %q", spec.To)
		}
	}

	k := 1.0
	if spec.Scale != nil {
		k = float64(*spec.Scale)
	}
	offset := float64(spec.Offset)

	switch strings.ToLower(spec.Kind) {
	case "", KindIdentity:
		return units.NewEquivalency(from, to, nil, nil)
	case KindAffine:
		if to == nil {
			return units.Equivalency{}, fmt.Errorf("affine equivalency needs a target unit")
		}
		if k == 0 {
			return units.Equivalency{}, fmt.Errorf("affine equivalency needs a non-zero scale")
		}
		return units.NewEquivalency(from, to,
			func(v float64) float64 { return v*k + offset },
			func(v float64) float64 { return (v - offset) / k },
		)
	case KindReciprocal:
		if to == nil {
			return units.Equivalency{}, fmt.Errorf("reciprocal equivalency needs a target unit")
		}
		if k == 0 {
			return units.Equivalency{}, fmt.Errorf("reciprocal equivalency needs a non-zero scale")
		}
		recip := func(v float64) float64 { return k / v }
		return units.NewEquivalency(from, to, recip, recip)
	}
	return units.Equivalency{}, fmt.Errorf("unknown equivalency kind %q", spec.Kind)
}

// Registry returns the registry holding every defined unit, the enabled
// equivalency sets and the aliases.
func (c *Catalog) Registry() *units.Registry { return c.registry }

// PhysicalTypes returns the physical-type labeler.
func (c *Catalog) PhysicalTypes() *PhysicalTypes { return c.types }

// EquivalencySets returns the names of the defined equivalency sets, sorted.
func (c *Catalog) EquivalencySets() []string {
	out := make([]string, 0, len(c.sets))
	for name := range c.sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Equivalencies returns the rules of the named sets, in order.
func (c *Catalog) Equivalencies(names ...string) ([]units.Equivalency, error) {
	var out []units.Equivalency
	for _, name := range names {
		rules, ok := c.sets[name]
		if !ok {
			return nil, fmt.Errorf("unknown equivalency set %q (known: %s)", name, strings.Join(c.EquivalencySets(), ", "))
		}
		out = append(out, rules...)
	}
	return out, nil
}

// NewStack returns a registry stack based on the catalog, with conversion
// errors labelled by physical type.
func (c *Catalog) NewStack(opts ...units.StackOption) *units.Stack {
	all := append([]units.StackOption{units.WithLabeler(c.types)}, opts...)
	return units.NewStack(c.registry, all...)
}
