package units

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFracReduces(t *testing.T) {
	p, err := Frac(2, 4)
	require.NoError(t, err)
	assert.Equal(t, MustFrac(1, 2), p)

	p, err = Frac(3, -6)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), p.Num())
	assert.Equal(t, int64(2), p.Den())

	p, err = Frac(4, 2)
	require.NoError(t, err)
	assert.Equal(t, Int(2), p)
	assert.True(t, p.IsInt())
}

func TestFracRejectsZeroDenominator(t *testing.T) {
	_, err := Frac(1, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPowerFromFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want Power
	}{
		{name: "integer", in: 2, want: Int(2)},
		{name: "negative integer", in: -3, want: Int(-3)},
		{name: "half", in: 0.5, want: MustFrac(1, 2)},
		{name: "third", in: 1.0 / 3.0, want: MustFrac(1, 3)},
		{name: "negative two thirds", in: -2.0 / 3.0, want: MustFrac(-2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PowerFromFloat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []float64{math.Pi, math.NaN(), math.Inf(1)} {
		_, err := PowerFromFloat(bad)
		assert.ErrorIs(t, err, ErrValidation, "power %v", bad)
	}
}

func TestPowerArithmetic(t *testing.T) {
	sum, err := MustFrac(1, 2).Add(MustFrac(1, 3))
	require.NoError(t, err)
	assert.Equal(t, MustFrac(5, 6), sum)

	sum, err = MustFrac(1, 2).Add(MustFrac(-1, 2))
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	prod, err := MustFrac(2, 3).Mul(MustFrac(3, 4))
	require.NoError(t, err)
	assert.Equal(t, MustFrac(1, 2), prod)

	assert.Equal(t, -1, MustFrac(1, 3).Cmp(MustFrac(1, 2)))
	assert.Equal(t, 1, Int(-1).Cmp(Int(-2)))
	assert.Equal(t, 0, MustFrac(2, 4).Cmp(MustFrac(1, 2)))
	assert.Equal(t, "-3/2", MustFrac(-3, 2).String())
	assert.Equal(t, "4", Int(4).String())
}

func TestPowerOverflow(t *testing.T) {
	_, err := Int(math.MaxInt64).Add(Int(1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Int(math.MaxInt64).Mul(Int(2))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestZeroValuePower(t *testing.T) {
	var p Power
	assert.True(t, p.IsZero())
	assert.Equal(t, int64(1), p.Den())
	assert.Equal(t, "0", p.String())
}

func TestPowerAddProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := MustFrac(rapid.Int64Range(-50, 50).Draw(t, "pn"), rapid.Int64Range(1, 50).Draw(t, "pd"))
		q := MustFrac(rapid.Int64Range(-50, 50).Draw(t, "qn"), rapid.Int64Range(1, 50).Draw(t, "qd"))

		pq, err := p.Add(q)
		require.NoError(t, err)
		qp, err := q.Add(p)
		require.NoError(t, err)
		assert.Equal(t, pq, qp)
		assert.InDelta(t, p.Float64()+q.Float64(), pq.Float64(), 1e-12)

		back, err := pq.Add(q.Neg())
		require.NoError(t, err)
		assert.Equal(t, p, back)
	})
}
