package units

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry is one snapshot of the enabled vocabulary: named units,
// equivalencies and aliases. It is safe for concurrent use. Registries held
// by a Stack are only mutated through the Stack, which always works on a
// fresh copy, so ancestor snapshots never change.
type Registry struct {
	mu sync.RWMutex
	id string

	names     map[string]Unit
	all       []Unit
	allSet    map[Unit]struct{}
	nonPrefix []Unit
	byType    map[PhysicalTypeID][]Unit
	rules     []Equivalency
	ruleSet   map[uint64]struct{}
	aliases   map[string]Unit
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{id: uuid.NewString()}
	r.resetUnits()
	r.resetEquivalencies()
	r.resetAliases()
	return r
}

func (r *Registry) resetUnits() {
	r.names = make(map[string]Unit)
	r.all = nil
	r.allSet = make(map[Unit]struct{})
	r.nonPrefix = nil
	r.byType = make(map[PhysicalTypeID][]Unit)
}

func (r *Registry) resetEquivalencies() {
	r.rules = nil
	r.ruleSet = make(map[uint64]struct{})
}

func (r *Registry) resetAliases() {
	r.aliases = make(map[string]Unit)
}

// ID returns the snapshot identifier used in logs.
func (r *Registry) ID() string { return r.id }

// Clone returns an independent copy with a new identifier.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Registry{
		id:        uuid.NewString(),
		names:     make(map[string]Unit, len(r.names)),
		all:       slices.Clone(r.all),
		allSet:    make(map[Unit]struct{}, len(r.allSet)),
		nonPrefix: slices.Clone(r.nonPrefix),
		byType:    make(map[PhysicalTypeID][]Unit, len(r.byType)),
		rules:     slices.Clone(r.rules),
		ruleSet:   make(map[uint64]struct{}, len(r.ruleSet)),
		aliases:   make(map[string]Unit, len(r.aliases)),
	}
	for k, v := range r.names {
		c.names[k] = v
	}
	for k := range r.allSet {
		c.allSet[k] = struct{}{}
	}
	for k, v := range r.byType {
		c.byType[k] = slices.Clone(v)
	}
	for k := range r.ruleSet {
		c.ruleSet[k] = struct{}{}
	}
	for k, v := range r.aliases {
		c.aliases[k] = v
	}
	return c
}

// cloneEquivalenciesOnly returns a new snapshot that carries only r's rules.
func (r *Registry) cloneEquivalenciesOnly() *Registry {
	c := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	c.rules = slices.Clone(r.rules)
	for k := range r.ruleSet {
		c.ruleSet[k] = struct{}{}
	}
	return c
}

type pendingUnit struct {
	unit   Named
	ptype  PhysicalTypeID
	prefix bool
}

// AddEnabledUnits registers units by every one of their names. The batch is
// checked as a whole first: if any name is already bound to a different
// unit, nothing is registered. Registering a name again for an equal unit
// is a no-op.
func (r *Registry) AddEnabledUnits(units ...Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addUnitsLocked(units)
}

// SetEnabledUnits replaces the enabled units with the given ones. On error
// the registry is left unchanged.
func (r *Registry) SetEnabledUnits(units ...Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, all, allSet, nonPrefix, byType := r.names, r.all, r.allSet, r.nonPrefix, r.byType
	r.resetUnits()
	if err := r.addUnitsLocked(units); err != nil {
		r.names, r.all, r.allSet, r.nonPrefix, r.byType = names, all, allSet, nonPrefix, byType
		return err
	}
	return nil
}

func (r *Registry) addUnitsLocked(units []Unit) error {
	pending := make([]pendingUnit, 0, len(units))
	claimed := make(map[string]Unit)

	for _, u := range units {
		if isNilUnit(u) {
			return validationError(CodeInvalidBase, "cannot enable a nil unit")
		}
		if uu, ok := u.(*UnrecognizedUnit); ok {
			return unrecognizedError(uu.Name())
		}
		named, ok := u.(Named)
		if !ok {
			return validationError(CodeInvalidBase, "unit %s has no name and cannot be enabled", u)
		}
		for _, name := range named.Names() {
			if existing, ok := r.names[name]; ok && !Equal(u, existing) {
				return nameConflict(name, existing)
			}
			if other, ok := claimed[name]; ok && !Equal(u, other) {
				return nameConflict(name, other)
			}
			claimed[name] = u
		}
		ptype, err := u.PhysicalTypeID()
		if err != nil {
			return err
		}
		p := pendingUnit{unit: named, ptype: ptype}
		if pu, ok := u.(interface{ IsPrefix() bool }); ok {
			p.prefix = pu.IsPrefix()
		}
		pending = append(pending, p)
	}

	for _, p := range pending {
		for _, name := range p.unit.Names() {
			r.names[name] = p.unit
		}
		if _, dup := r.allSet[p.unit]; dup {
			continue
		}
		r.allSet[p.unit] = struct{}{}
		r.all = append(r.all, p.unit)
		if !p.prefix {
			r.nonPrefix = append(r.nonPrefix, p.unit)
		}
		r.byType[p.ptype] = append(r.byType[p.ptype], p.unit)
	}
	return nil
}

func nameConflict(name string, existing Unit) error {
	return &Error{
		Err:  ErrValidation,
		Code: CodeNameConflict,
		Message: fmt.Sprintf("object with name %q already exists in namespace; "+
			"filter the set of units to avoid name clashes before enabling them", name),
		Details: map[string]any{"name": name, "existing": existing.String()},
	}
}

// AddEnabledEquivalencies validates rules and unions them into the
// enabled set. Rules already present are skipped.
func (r *Registry) AddEnabledEquivalencies(rules ...Equivalency) error {
	normalized, err := normalizeRules(rules)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addRulesLocked(normalized)
	return nil
}

// SetEnabledEquivalencies replaces the enabled rules.
func (r *Registry) SetEnabledEquivalencies(rules ...Equivalency) error {
	normalized, err := normalizeRules(rules)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetEquivalencies()
	r.addRulesLocked(normalized)
	return nil
}

func (r *Registry) addRulesLocked(rules []Equivalency) {
	for _, e := range rules {
		if _, dup := r.ruleSet[e.id]; dup {
			continue
		}
		r.ruleSet[e.id] = struct{}{}
		r.rules = append(r.rules, e)
	}
}

// AddEnabledAliases binds extra names to units. An alias may not rebind a
// registered name or an existing alias to a different unit. Aliases never
// shadow registered names.
func (r *Registry) AddEnabledAliases(aliases map[string]Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addAliasesLocked(aliases)
}

// SetEnabledAliases replaces the alias table. On error the registry is
// left unchanged.
func (r *Registry) SetEnabledAliases(aliases map[string]Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := r.aliases
	r.resetAliases()
	if err := r.addAliasesLocked(aliases); err != nil {
		r.aliases = saved
		return err
	}
	return nil
}

func (r *Registry) addAliasesLocked(aliases map[string]Unit) error {
	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}
	sort.Strings(keys)

	for _, alias := range keys {
		u := aliases[alias]
		if isNilUnit(u) || strings.TrimSpace(alias) == "" {
			return validationError(CodeInvalidBase, "alias %q must name a unit", alias)
		}
		if existing, ok := r.names[alias]; ok && !Equal(u, existing) {
			return &Error{
				Err:     ErrValidation,
				Code:    CodeNameConflict,
				Message: alias + " already means " + existing.String() + ", so cannot be used as an alias for " + u.String(),
				Details: map[string]any{"alias": alias},
			}
		}
		if existing, ok := r.aliases[alias]; ok && !Equal(u, existing) {
			return &Error{
				Err:     ErrValidation,
				Code:    CodeNameConflict,
				Message: alias + " already is an alias for " + existing.String() + ", so cannot be used as an alias for " + u.String(),
				Details: map[string]any{"alias": alias},
			}
		}
	}
	for _, alias := range keys {
		_, named := r.names[alias]
		_, aliased := r.aliases[alias]
		if named || aliased {
			continue
		}
		r.aliases[alias] = aliases[alias]
	}
	return nil
}

// Lookup resolves a registered name.
func (r *Registry) Lookup(name string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.names[name]
	return u, ok
}

// Alias resolves an alias.
func (r *Registry) Alias(name string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.aliases[name]
	return u, ok
}

// Resolve looks a name up among registered names, then aliases.
func (r *Registry) Resolve(name string) (Unit, bool) {
	if u, ok := r.Lookup(name); ok {
		return u, true
	}
	return r.Alias(name)
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AllUnits returns the enabled units in registration order.
func (r *Registry) AllUnits() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.all)
}

// NonPrefixUnits returns the enabled units that are not prefixed variants.
func (r *Registry) NonPrefixUnits() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.nonPrefix)
}

// Equivalencies returns the enabled rules in insertion order.
func (r *Registry) Equivalencies() []Equivalency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rules)
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Unit, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// UnitsWithPhysicalType returns the enabled units sharing u's physical type.
func (r *Registry) UnitsWithPhysicalType(u Unit) []Unit {
	id, err := u.PhysicalTypeID()
	if err != nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byType[id])
}

// RegistryStats counts the entries of a snapshot.
type RegistryStats struct {
	Units          int
	NonPrefixUnits int
	PhysicalTypes  int
	Equivalencies  int
	Aliases        int
}

// Stats returns the entry counts.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{
		Units:          len(r.all),
		NonPrefixUnits: len(r.nonPrefix),
		PhysicalTypes:  len(r.byType),
		Equivalencies:  len(r.rules),
		Aliases:        len(r.aliases),
	}
}
