package units

import "math"

// Prefix is a scale factor attached to unit names, e.g. "k"/"kilo" for 1e3.
// Symbols combine with a unit's short names, Names with its long names.
type Prefix struct {
	Symbols []string
	Names   []string
	Factor  float64
}

// SIPrefixes are the decimal prefixes from quetta (1e30) to quecto (1e-30).
var SIPrefixes = []Prefix{
	{[]string{"Q"}, []string{"quetta"}, 1e30},
	{[]string{"R"}, []string{"ronna"}, 1e27},
	{[]string{"Y"}, []string{"yotta"}, 1e24},
	{[]string{"Z"}, []string{"zetta"}, 1e21},
	{[]string{"E"}, []string{"exa"}, 1e18},
	{[]string{"P"}, []string{"peta"}, 1e15},
	{[]string{"T"}, []string{"tera"}, 1e12},
	{[]string{"G"}, []string{"giga"}, 1e9},
	{[]string{"M"}, []string{"mega"}, 1e6},
	{[]string{"k"}, []string{"kilo"}, 1e3},
	{[]string{"h"}, []string{"hecto"}, 1e2},
	{[]string{"da"}, []string{"deka", "deca"}, 1e1},
	{[]string{"d"}, []string{"deci"}, 1e-1},
	{[]string{"c"}, []string{"centi"}, 1e-2},
	{[]string{"m"}, []string{"milli"}, 1e-3},
	{[]string{"u", "µ", "μ"}, []string{"micro"}, 1e-6},
	{[]string{"n"}, []string{"nano"}, 1e-9},
	{[]string{"p"}, []string{"pico"}, 1e-12},
	{[]string{"f"}, []string{"femto"}, 1e-15},
	{[]string{"a"}, []string{"atto"}, 1e-18},
	{[]string{"z"}, []string{"zepto"}, 1e-21},
	{[]string{"y"}, []string{"yocto"}, 1e-24},
	{[]string{"r"}, []string{"ronto"}, 1e-27},
	{[]string{"q"}, []string{"quecto"}, 1e-30},
}

// BinaryPrefixes are the IEC prefixes from kibi (2^10) to yobi (2^80).
var BinaryPrefixes = []Prefix{
	{[]string{"Ki"}, []string{"kibi"}, math.Exp2(10)},
	{[]string{"Mi"}, []string{"mebi"}, math.Exp2(20)},
	{[]string{"Gi"}, []string{"gibi"}, math.Exp2(30)},
	{[]string{"Ti"}, []string{"tebi"}, math.Exp2(40)},
	{[]string{"Pi"}, []string{"pebi"}, math.Exp2(50)},
	{[]string{"Ei"}, []string{"exbi"}, math.Exp2(60)},
	{[]string{"Zi"}, []string{"zebi"}, math.Exp2(70)},
	{[]string{"Yi"}, []string{"yobi"}, math.Exp2(80)},
}

// PrefixesByName maps the table names accepted by catalogs to prefix sets.
var PrefixesByName = map[string][]Prefix{
	"si":     SIPrefixes,
	"binary": BinaryPrefixes,
}

// Definition is the result of Define: the unit itself plus its prefixed
// variants, in prefix-table order.
type Definition struct {
	Unit     Named
	Prefixed []*NamedUnit
}

// All returns the defined unit followed by its prefixed variants, ready to
// be enabled on a registry.
func (d Definition) All() []Unit {
	out := make([]Unit, 0, 1+len(d.Prefixed))
	out = append(out, d.Unit)
	for _, p := range d.Prefixed {
		out = append(out, p)
	}
	return out
}

type defineOptions struct {
	prefixes []Prefix
	excludes map[string]struct{}
}

// DefineOption tunes Define.
type DefineOption func(*defineOptions)

// WithPrefixes generates a prefixed variant of the unit for each prefix.
// With no arguments the SI prefixes are used.
func WithPrefixes(prefixes ...Prefix) DefineOption {
	return func(o *defineOptions) {
		if len(prefixes) == 0 {
			prefixes = SIPrefixes
		}
		o.prefixes = append(o.prefixes, prefixes...)
	}
}

// WithExcludePrefixes skips the given prefix symbols or names.
func WithExcludePrefixes(prefixes ...string) DefineOption {
	return func(o *defineOptions) {
		for _, p := range prefixes {
			o.excludes[p] = struct{}{}
		}
	}
}

// Define creates a unit named names. A nil represents makes an irreducible
// unit; otherwise the result is a NamedUnit standing for represents. The
// first name is the short name and takes prefix symbols; the remaining
// names take prefix words.
func Define(names []string, represents Unit, opts ...DefineOption) (Definition, error) {
	o := defineOptions{excludes: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		base Named
		id   *identity
	)
	if isNilUnit(represents) {
		u, err := NewIrreducible(names...)
		if err != nil {
			return Definition{}, err
		}
		base, id = u, &u.identity
	} else {
		u, err := NewNamed(names, represents)
		if err != nil {
			return Definition{}, err
		}
		base, id = u, &u.identity
	}

	def := Definition{Unit: base}
	for _, p := range o.prefixes {
		var pnames []string
		for _, sym := range p.Symbols {
			if _, skip := o.excludes[sym]; skip {
				continue
			}
			for _, short := range id.short {
				pnames = append(pnames, sym+short)
			}
		}
		for _, word := range p.Names {
			if _, skip := o.excludes[word]; skip {
				continue
			}
			for _, long := range id.long {
				pnames = append(pnames, word+long)
			}
		}
		if len(pnames) == 0 {
			continue
		}
		scaled, err := newComposite(p.Factor, []Unit{base}, []Power{Int(1)}, false, nil)
		if err != nil {
			return Definition{}, err
		}
		pu, err := NewNamed(pnames, scaled)
		if err != nil {
			return Definition{}, err
		}
		pu.prefix = true
		def.Prefixed = append(def.Prefixed, pu)
	}
	return def, nil
}
