package units

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

// maxPowerDenominator bounds the denominator accepted when a float power is
// turned into a fraction.
const maxPowerDenominator = 100

// Power is an exact rational exponent. The zero value is the power 0.
// Powers are always kept reduced with a positive denominator, so two equal
// powers compare equal with ==.
type Power struct {
	num int64
	den int64 // 0 in the zero value, read as 1
}

// Int returns the integral power n.
func Int(n int64) Power {
	return Power{num: n, den: 1}
}

// Frac returns the reduced power n/d.
func Frac(n, d int64) (Power, error) {
	if d == 0 {
		return Power{}, validationError(CodeInvalidPower, "power %d/%d has a zero denominator", n, d)
	}
	if n == math.MinInt64 || d == math.MinInt64 {
		return Power{}, validationError(CodeInvalidPower, "power %d/%d is out of range", n, d)
	}
	return reduce(n, d), nil
}

// MustFrac is Frac for constant arguments known to be valid.
func MustFrac(n, d int64) Power {
	p, err := Frac(n, d)
	if err != nil {
		panic(err)
	}
	return p
}

// PowerFromFloat converts f to an exact power. Integral values become
// integers; other values must match a fraction with a small denominator.
func PowerFromFloat(f float64) (Power, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Power{}, validationError(CodeInvalidPower, "power %v is not finite", f)
	}
	if f == math.Trunc(f) {
		if math.Abs(f) > 1<<53 {
			return Power{}, validationError(CodeInvalidPower, "power %v is out of range", f)
		}
		return Int(int64(f)), nil
	}
	for d := int64(2); d <= maxPowerDenominator; d++ {
		n := math.Round(f * float64(d))
		if math.Abs(n/float64(d)-f) <= 4*epsilon*math.Max(1, math.Abs(f)) {
			return reduce(int64(n), d), nil
		}
	}
	return Power{}, validationError(CodeInvalidPower, "power %v cannot be represented as a simple fraction", f)
}

func reduce(n, d int64) Power {
	if d < 0 {
		n, d = -n, -d
	}
	if n == 0 {
		return Power{num: 0, den: 1}
	}
	g := gcd(abs64(n), d)
	return Power{num: n / g, den: d / g}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Num returns the numerator.
func (p Power) Num() int64 { return p.num }

// Den returns the (positive) denominator.
func (p Power) Den() int64 {
	if p.den == 0 {
		return 1
	}
	return p.den
}

// IsZero reports whether p == 0.
func (p Power) IsZero() bool { return p.num == 0 }

// IsInt reports whether p has no fractional part.
func (p Power) IsInt() bool { return p.Den() == 1 }

// Sign returns -1, 0 or +1.
func (p Power) Sign() int {
	switch {
	case p.num < 0:
		return -1
	case p.num > 0:
		return 1
	}
	return 0
}

// Float64 returns p as a float.
func (p Power) Float64() float64 {
	return float64(p.num) / float64(p.Den())
}

// Neg returns -p.
func (p Power) Neg() Power {
	return Power{num: -p.num, den: p.Den()}
}

// Abs returns |p|.
func (p Power) Abs() Power {
	if p.num < 0 {
		return p.Neg()
	}
	return p.norm()
}

func (p Power) norm() Power {
	return Power{num: p.num, den: p.Den()}
}

// Add returns p+q, failing when the exact result overflows.
func (p Power) Add(q Power) (Power, error) {
	pd, qd := p.Den(), q.Den()
	a, ok1 := mulInt64(p.num, qd)
	b, ok2 := mulInt64(q.num, pd)
	d, ok3 := mulInt64(pd, qd)
	if !ok1 || !ok2 || !ok3 {
		return Power{}, powerOverflow(p, q)
	}
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return Power{}, powerOverflow(p, q)
	}
	return reduce(s, d), nil
}

// Mul returns p*q, failing when the exact result overflows.
func (p Power) Mul(q Power) (Power, error) {
	// cross-reduce first to keep intermediates small
	g1 := gcd(abs64(p.num), q.Den())
	g2 := gcd(abs64(q.num), p.Den())
	if g1 == 0 {
		g1 = 1
	}
	if g2 == 0 {
		g2 = 1
	}
	n, ok1 := mulInt64(p.num/g1, q.num/g2)
	d, ok2 := mulInt64(p.Den()/g2, q.Den()/g1)
	if !ok1 || !ok2 {
		return Power{}, powerOverflow(p, q)
	}
	return reduce(n, d), nil
}

// Cmp compares p and q, returning -1, 0 or +1.
func (p Power) Cmp(q Power) int {
	// denominators are positive, so cross multiplication keeps the order
	hiA, loA := mul128(p.num, q.Den())
	hiB, loB := mul128(q.num, p.Den())
	switch {
	case hiA < hiB || (hiA == hiB && loA < loB):
		return -1
	case hiA > hiB || (hiA == hiB && loA > loB):
		return 1
	}
	return 0
}

func (p Power) String() string {
	if p.IsInt() {
		return strconv.FormatInt(p.num, 10)
	}
	return fmt.Sprintf("%d/%d", p.num, p.Den())
}

func powerOverflow(p, q Power) error {
	return validationError(CodeInvalidPower, "combining powers %s and %s overflows", p, q)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

// mul128 returns the signed 128-bit product of a and b as (hi, lo), with hi
// carrying the sign so tuples compare lexicographically.
func mul128(a, b int64) (int64, uint64) {
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(uint64(abs64(a)), uint64(abs64(b)))
	if !neg {
		return int64(hi), lo
	}
	// two's complement negate the 128-bit magnitude
	lo = ^lo + 1
	hi = ^hi
	if lo == 0 {
		hi++
	}
	return int64(hi), lo
}

// powersEqual compares two parallel power slices.
func powersEqual(a, b []Power) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].norm() != b[i].norm() {
			return false
		}
	}
	return true
}
