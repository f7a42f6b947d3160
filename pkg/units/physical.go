package units

import (
	"strconv"
	"strings"
)

// PhysicalTypeID is the scale-free dimensional signature of a unit: its
// decomposed bases and powers, e.g. "m^1 s^-2". Units sharing an ID differ
// only by scale. The dimensionless ID is the empty string.
type PhysicalTypeID string

// PhysicalTerm is one (base name, power) pair of a PhysicalTypeID.
type PhysicalTerm struct {
	Name  string
	Power Power
}

// Labeler maps physical type IDs to human labels such as "length". The
// physical-type catalog lives outside this package.
type Labeler interface {
	Label(id PhysicalTypeID) (string, bool)
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(PhysicalTypeID) (string, bool)

func (f LabelerFunc) Label(id PhysicalTypeID) (string, bool) { return f(id) }

// IsDimensionless reports whether the ID has no terms.
func (id PhysicalTypeID) IsDimensionless() bool { return id == "" }

// Terms splits the ID back into its ordered (name, power) pairs.
func (id PhysicalTypeID) Terms() []PhysicalTerm {
	if id == "" {
		return nil
	}
	fields := strings.Fields(string(id))
	terms := make([]PhysicalTerm, 0, len(fields))
	for _, f := range fields {
		i := strings.LastIndexByte(f, '^')
		if i < 0 {
			continue
		}
		p, ok := parsePower(f[i+1:])
		if !ok {
			continue
		}
		terms = append(terms, PhysicalTerm{Name: f[:i], Power: p})
	}
	return terms
}

// PhysicalTypeIDOf builds the ID for the given terms in the given order.
func PhysicalTypeIDOf(terms ...PhysicalTerm) PhysicalTypeID {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.Name + "^" + t.Power.String()
	}
	return PhysicalTypeID(strings.Join(parts, " "))
}

func computePhysicalTypeID(u Unit) (PhysicalTypeID, error) {
	d, err := u.Decompose()
	if err != nil {
		return "", err
	}
	bases, powers := d.Bases(), d.Powers()
	terms := make([]PhysicalTerm, len(bases))
	for i, b := range bases {
		terms[i] = PhysicalTerm{Name: unitName(b), Power: powers[i]}
	}
	return PhysicalTypeIDOf(terms...), nil
}

func parsePower(s string) (Power, bool) {
	num, den, frac := strings.Cut(s, "/")
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return Power{}, false
	}
	if !frac {
		return Int(n), true
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil {
		return Power{}, false
	}
	p, err := Frac(n, d)
	return p, err == nil
}

// samePhysicalType reports whether a and b decompose to the same signature.
func samePhysicalType(a, b Unit) bool {
	if isUnrecognized(a) || isUnrecognized(b) {
		return false
	}
	ida, err := a.PhysicalTypeID()
	if err != nil {
		return false
	}
	idb, err := b.PhysicalTypeID()
	if err != nil {
		return false
	}
	return ida == idb
}
