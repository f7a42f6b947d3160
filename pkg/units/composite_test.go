package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecomposeNamedUnit(t *testing.T) {
	f := newFixture()

	d, err := f.km.Decompose()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d.Scale())
	require.Len(t, d.Bases(), 1)
	assert.Same(t, f.m, d.Bases()[0])
	assert.Equal(t, []Power{Int(1)}, d.Powers())
}

func TestDecomposeIrreducible(t *testing.T) {
	f := newFixture()

	d, err := f.m.Decompose()
	require.NoError(t, err)
	assert.Same(t, f.m, d)

	d, err = f.m.Decompose(f.km)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, d.Scale(), 1e-15)
	assert.Equal(t, []Unit{f.km}, d.Bases())

	_, err = f.m.Decompose(f.s)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDecomposeIntoTargets(t *testing.T) {
	f := newFixture()
	speed := must(Div(f.km, f.s))

	d, err := speed.Decompose(f.m, f.s)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d.Scale())
	assert.Equal(t, "1000 m s^-1", d.String())

	_, err = speed.Decompose(f.kg)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDecomposeIsCached(t *testing.T) {
	f := newFixture()
	u := must(Mul(f.N, f.km))

	first, err := u.Decompose()
	require.NoError(t, err)
	second, err := u.Decompose()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "1000 m^2 kg s^-2", first.String())
}

func TestCompositeCanonicalOrder(t *testing.T) {
	f := newFixture()

	a := must(NewComposite(1, []Unit{f.s, f.m}, []Power{Int(-1), Int(1)}))
	b := must(NewComposite(1, []Unit{f.m, f.s}, []Power{Int(1), Int(-1)}))
	assert.Equal(t, "m s^-1", a.String())
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.key(), b.key())

	// equal powers fall back to name order
	c := must(NewComposite(1, []Unit{f.s, f.m}, []Power{Int(1), Int(1)}))
	assert.Equal(t, "m s", c.String())
}

func TestCompositeMergesAndDropsBases(t *testing.T) {
	f := newFixture()

	u := must(NewComposite(2, []Unit{f.m, f.m, f.s}, []Power{Int(1), Int(2), Int(1)}))
	assert.Equal(t, "2 m^3 s", u.String())

	none := must(Mul(f.m, must(Inverse(f.m))))
	assert.Same(t, DimensionlessUnscaled(), none)
	assert.Equal(t, "dimensionless", none.String())
}

func TestCompositeValidation(t *testing.T) {
	f := newFixture()

	for _, scale := range []float64{0, math.NaN(), math.Inf(-1)} {
		_, err := NewComposite(scale, []Unit{f.m}, []Power{Int(1)})
		assert.ErrorIs(t, err, ErrValidation, "scale %v", scale)
	}

	_, err := NewComposite(1, []Unit{f.m}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewComposite(1, []Unit{nil}, []Power{Int(1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewComposite(1, []Unit{NewUnrecognized("furlong")}, []Power{Int(1)})
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
}

func TestTypedNilUnitsAreRejected(t *testing.T) {
	f := newFixture()
	var named *NamedUnit
	var composite *CompositeUnit
	var wrapped *decibelUnit

	for _, u := range []Unit{named, composite, wrapped} {
		_, err := NewComposite(2, []Unit{u}, []Power{Int(1)})
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = Mul(f.m, u)
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = NewNamed([]string{"x"}, u)
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = NormalizeEquivalencies([][]any{{u, f.m}})
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = NormalizeEquivalencies([][]any{{f.m, u}})
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = NewEquivalency(f.s, u, nil, nil)
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		err = NewRegistry().AddEnabledUnits(f.m, u)
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		_, err = f.stack().UnitOf(u)
		assert.ErrorIs(t, err, ErrValidation, "%T", u)

		assert.False(t, Equal(f.m, u))
	}
}

func TestFractionalPowers(t *testing.T) {
	f := newFixture()
	half := MustFrac(1, 2)

	root := must(Pow(f.m, half))
	assert.Equal(t, "m^(1/2)", root.String())

	square := must(Mul(root, root))
	assert.True(t, Equal(square, f.m))

	area := must(Pow(f.km, Int(2)))
	side := must(Pow(area, half))
	d := must(side.Decompose())
	assert.InDelta(t, 1000.0, d.Scale(), 1e-9)
	assert.Equal(t, []Power{Int(1)}, d.Powers())
}

func TestEffectivelyUnityScaleSnaps(t *testing.T) {
	f := newFixture()

	u := must(Scaled(1+2*epsilon, f.m))
	assert.Equal(t, 1.0, u.Scale())
	assert.True(t, IsEffectivelyUnity(1-epsilonNeg))
	assert.False(t, IsEffectivelyUnity(1+1e-9))
}

func TestEqual(t *testing.T) {
	f := newFixture()

	assert.True(t, Equal(f.km, must(Scaled(1000, f.m))))
	assert.False(t, Equal(f.km, f.m))
	assert.False(t, Equal(f.m, f.s))
	assert.True(t, Equal(f.Pa, must(Div(f.N, must(Pow(f.m, Int(2)))))))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(f.m, nil))
	assert.True(t, Equal(NewUnrecognized("x"), NewUnrecognized("x")))
	assert.False(t, Equal(NewUnrecognized("x"), f.m))
}

func TestUnrecognizedUnit(t *testing.T) {
	f := newFixture()
	u := NewUnrecognized("furlong")

	assert.Equal(t, "furlong", u.String())
	assert.Equal(t, "furlong", u.Name())

	_, err := Mul(u, f.m)
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
	_, err = Pow(u, Int(2))
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
	_, err = u.Decompose()
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
	_, err = u.PhysicalTypeID()
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
	_, err = NewNamed([]string{"fur"}, u)
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
}

func TestPhysicalTypeID(t *testing.T) {
	f := newFixture()

	id, err := f.N.PhysicalTypeID()
	require.NoError(t, err)
	assert.Equal(t, PhysicalTypeID("kg^1 m^1 s^-2"), id)
	assert.Equal(t, []PhysicalTerm{
		{Name: "kg", Power: Int(1)},
		{Name: "m", Power: Int(1)},
		{Name: "s", Power: Int(-2)},
	}, id.Terms())

	kmID, err := f.km.PhysicalTypeID()
	require.NoError(t, err)
	mID, err := f.m.PhysicalTypeID()
	require.NoError(t, err)
	assert.Equal(t, mID, kmID)

	id, err = DimensionlessUnscaled().PhysicalTypeID()
	require.NoError(t, err)
	assert.True(t, id.IsDimensionless())

	root := must(Pow(f.m, MustFrac(1, 2)))
	id, err = root.PhysicalTypeID()
	require.NoError(t, err)
	assert.Equal(t, PhysicalTypeID("m^1/2"), id)
	assert.Equal(t, []PhysicalTerm{{Name: "m", Power: MustFrac(1, 2)}}, id.Terms())
}

func TestNamedUnitNames(t *testing.T) {
	f := newFixture()

	assert.Equal(t, "N", f.N.Name())
	assert.Equal(t, []string{"N", "newton"}, f.N.Names())
	assert.Equal(t, []string{"newton"}, f.N.Aliases())
	assert.Equal(t, "N", f.N.String())
	assert.False(t, f.N.IsPrefix())

	_, err := NewIrreducible()
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewIrreducible("two words")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewNamed([]string{"x"}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

// drawUnit builds a random product of the fixture's irreducible units.
func drawUnit(t *rapid.T, f *fixture, label string) Unit {
	bases := []Unit{f.m, f.s, f.kg}
	powers := make([]Power, len(bases))
	for i := range bases {
		powers[i] = Int(rapid.Int64Range(-3, 3).Draw(t, label+"_power"))
	}
	scale := rapid.SampledFrom([]float64{1, 0.001, 2.5, 1000, 60}).Draw(t, label+"_scale")
	return must(NewComposite(scale, bases, powers))
}

func TestDecomposeProperties(t *testing.T) {
	f := newFixture()

	rapid.Check(t, func(t *rapid.T) {
		a := drawUnit(t, f, "a")

		d, err := a.Decompose()
		require.NoError(t, err)
		dd, err := d.Decompose()
		require.NoError(t, err)
		assert.Equal(t, d.key(), dd.key())

		k := rapid.SampledFrom([]float64{2, 0.5, 1e3, 1e-3, 7}).Draw(t, "k")
		scaled := must(Scaled(k, a))
		sd, err := scaled.Decompose()
		require.NoError(t, err)
		assert.InEpsilon(t, d.Scale()*k, sd.Scale(), 1e-12)
	})
}

func TestMulDivRoundTrip(t *testing.T) {
	f := newFixture()

	rapid.Check(t, func(t *rapid.T) {
		a := drawUnit(t, f, "a")
		b := drawUnit(t, f, "b")

		back := must(Div(must(Mul(a, b)), b))
		assert.True(t, Equal(back, a), "%s * %s / %s != %s", a, b, b, back)

		same := must(Mul(a, DimensionlessUnscaled()))
		assert.Equal(t, a.key(), same.key())
	})
}
