package catalog

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/polisai/polis-units/pkg/units"
)

// Table is one YAML unit table. Units are defined in order, so a unit may
// refer to any unit defined before it, including in earlier tables.
type Table struct {
	Units         []UnitSpec                   `yaml:"units"`
	Equivalencies map[string][]EquivalencySpec `yaml:"equivalencies"`
	Enable        []string                     `yaml:"enable"`
	Aliases       map[string]string            `yaml:"aliases"`
	PhysicalTypes []PhysicalTypeSpec           `yaml:"physical_types"`
}

// UnitSpec defines a unit. Without scale and terms the unit is irreducible;
// otherwise it stands for scale × Π terms.
type UnitSpec struct {
	Names           []string            `yaml:"names"`
	Scale           *Factor             `yaml:"scale,omitempty"`
	Terms           map[string]Exponent `yaml:"terms,omitempty"`
	Prefixes        []string            `yaml:"prefixes,omitempty"`
	ExcludePrefixes []string            `yaml:"exclude_prefixes,omitempty"`
}

// Irreducible reports whether the spec defines an atomic unit.
func (s UnitSpec) Irreducible() bool {
	return s.Scale == nil && len(s.Terms) == 0
}

// Equivalency kinds.
const (
	KindIdentity   = "identity"
	KindAffine     = "affine"
	KindReciprocal = "reciprocal"
)

// EquivalencySpec describes one conversion rule. An empty To makes the rule
// one-sided (From may be treated as dimensionless).
//
// Affine rules map v to v×scale+offset; reciprocal rules map v to scale/v in
// both directions.
type EquivalencySpec struct {
	From   string  `yaml:"from"`
	To     string  `yaml:"to,omitempty"`
	Kind   string  `yaml:"kind,omitempty"`
	Scale  *Factor `yaml:"scale,omitempty"`
	Offset Factor  `yaml:"offset,omitempty"`
}

// PhysicalTypeSpec labels the physical type of a product of units.
type PhysicalTypeSpec struct {
	Labels []string            `yaml:"labels"`
	Terms  map[string]Exponent `yaml:"terms"`
}

// Factor is a real number written either as a YAML number or as a
// fraction string such as "5/9".
type Factor float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Factor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	v, err := parseFactor(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*f = Factor(v)
	return nil
}

func parseFactor(s string) (float64, error) {
	s = strings.TrimSpace(s)
	var (
		v   float64
		err error
	)
	if num, den, ok := strings.Cut(s, "/"); ok {
		var n, d float64
		if n, err = strconv.ParseFloat(strings.TrimSpace(num), 64); err == nil {
			d, err = strconv.ParseFloat(strings.TrimSpace(den), 64)
		}
		if err == nil && d == 0 {
			err = fmt.Errorf("zero denominator")
		}
		v = n / d
	} else {
		v, err = strconv.ParseFloat(s, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid factor %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid factor %q: not finite", s)
	}
	return v, nil
}

// Exponent is a rational power written as an integer, a fraction string
// such as "1/2", or a float that is close to a simple fraction.
type Exponent struct {
	units.Power
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Exponent) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an exponent", value.Line)
	}
	p, err := parseExponent(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	e.Power = p
	return nil
}

func parseExponent(s string) (units.Power, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return units.Power{}, fmt.Errorf("invalid exponent %q: %w", s, err)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil {
			return units.Power{}, fmt.Errorf("invalid exponent %q: %w", s, err)
		}
		return units.Frac(n, d)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return units.Int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return units.Power{}, fmt.Errorf("invalid exponent %q: %w", s, err)
	}
	return units.PowerFromFloat(f)
}

// Parse decodes a YAML unit table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse unit table: %w", err)
	}
	return &t, nil
}

// LoadFile reads and decodes a YAML unit table from disk.
func LoadFile(path string) (*Table, error) {
	//nolint:gosec // Catalog path is controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
