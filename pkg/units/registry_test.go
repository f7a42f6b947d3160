package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNameConflictCommitsNothing(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m))

	impostor := must(NewIrreducible("m", "metre"))
	err := reg.AddEnabledUnits(f.s, impostor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeNameConflict, uerr.Code)
	assert.Equal(t, "m", uerr.Details["name"])

	_, ok := reg.Lookup("s")
	assert.False(t, ok, "no part of a rejected batch is registered")
	u, ok := reg.Lookup("m")
	require.True(t, ok)
	assert.Same(t, f.m, u)
}

func TestRegistryConflictWithinBatch(t *testing.T) {
	a := must(NewIrreducible("x"))
	b := must(NewIrreducible("x"))

	err := NewRegistry().AddEnabledUnits(a, b)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegistryReRegistrationIsNoop(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()

	require.NoError(t, reg.AddEnabledUnits(f.m, f.km))
	require.NoError(t, reg.AddEnabledUnits(f.km, f.m))
	assert.Equal(t, 2, reg.Stats().Units)
	assert.Equal(t, []string{"kilometer", "km", "m", "meter"}, reg.Names())
}

func TestRegistryRejectsUnnamedUnits(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()

	err := reg.AddEnabledUnits(must(Div(f.m, f.s)))
	assert.ErrorIs(t, err, ErrValidation)

	err = reg.AddEnabledUnits(NewUnrecognized("furlong"))
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)

	err = reg.AddEnabledUnits(nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegistrySetEnabledUnits(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m, f.s))

	require.NoError(t, reg.SetEnabledUnits(f.kg))
	_, ok := reg.Lookup("m")
	assert.False(t, ok)
	_, ok = reg.Lookup("kg")
	assert.True(t, ok)

	// a failed replacement keeps the previous units
	err := reg.SetEnabledUnits(f.m, must(NewIrreducible("m")))
	require.Error(t, err)
	_, ok = reg.Lookup("kg")
	assert.True(t, ok)
	_, ok = reg.Lookup("m")
	assert.False(t, ok)
}

func TestRegistryAliases(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m, f.s))

	require.NoError(t, reg.AddEnabledAliases(map[string]Unit{"metre": f.m, "m": f.m}))
	u, ok := reg.Resolve("metre")
	require.True(t, ok)
	assert.Same(t, f.m, u)
	_, ok = reg.Alias("m")
	assert.False(t, ok, "aliases never shadow registered names")

	err := reg.AddEnabledAliases(map[string]Unit{"m": f.s})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "m already means m, so cannot be used as an alias for s", err.Error())

	err = reg.AddEnabledAliases(map[string]Unit{"metre": f.s})
	require.Error(t, err)
	assert.Equal(t, "metre already is an alias for m, so cannot be used as an alias for s", err.Error())

	assert.ErrorIs(t, reg.AddEnabledAliases(map[string]Unit{"": f.m}), ErrValidation)
	assert.ErrorIs(t, reg.AddEnabledAliases(map[string]Unit{"x": nil}), ErrValidation)
}

func TestRegistrySetEnabledAliasesKeepsTableOnError(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m, f.s))
	require.NoError(t, reg.SetEnabledAliases(map[string]Unit{"metre": f.m}))

	err := reg.SetEnabledAliases(map[string]Unit{"sec": f.s, "m": f.s})
	require.Error(t, err)
	assert.Equal(t, map[string]Unit{"metre": f.m}, reg.Aliases())

	require.NoError(t, reg.SetEnabledAliases(map[string]Unit{"sec": f.s}))
	assert.Equal(t, map[string]Unit{"sec": f.s}, reg.Aliases())
}

func TestRegistryEquivalencies(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	a := must(NewEquivalency(f.rad, nil, nil, nil))
	b := must(NewEquivalency(f.m, f.s, nil, nil))

	require.NoError(t, reg.AddEnabledEquivalencies(a, b))
	require.NoError(t, reg.AddEnabledEquivalencies(b))
	assert.Len(t, reg.Equivalencies(), 2)

	require.NoError(t, reg.SetEnabledEquivalencies(b))
	got := reg.Equivalencies()
	require.Len(t, got, 1)
	assert.Same(t, f.m, got[0].From)

	err := reg.AddEnabledEquivalencies(Equivalency{From: nil, To: f.s, Forward: Identity, Backward: Identity})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, reg.Equivalencies(), 1)
}

func TestRegistryStatsAndPhysicalTypes(t *testing.T) {
	f := newFixture()
	reg := f.stack().Current()

	st := reg.Stats()
	assert.Equal(t, 8, st.Units)
	assert.Equal(t, 8, st.NonPrefixUnits)
	// m, s, kg, rad, force and pressure
	assert.Equal(t, 6, st.PhysicalTypes)
	assert.Equal(t, 0, st.Equivalencies)
	assert.Equal(t, 0, st.Aliases)

	assert.Equal(t, []string{"m", "km", "ft"}, unitStrings(reg.UnitsWithPhysicalType(f.m)))
	assert.Empty(t, reg.UnitsWithPhysicalType(NewUnrecognized("x")))
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	f := newFixture()
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m))
	require.NoError(t, reg.AddEnabledAliases(map[string]Unit{"metre": f.m}))

	clone := reg.Clone()
	assert.NotEqual(t, reg.ID(), clone.ID())
	require.NoError(t, clone.AddEnabledUnits(f.s))
	require.NoError(t, clone.AddEnabledAliases(map[string]Unit{"sec": f.s}))

	_, ok := reg.Lookup("s")
	assert.False(t, ok)
	_, ok = reg.Alias("sec")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Stats().Units)
	assert.Equal(t, 2, clone.Stats().Units)
}
