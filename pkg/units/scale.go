package units

import "math"

const (
	epsilon    = 0x1p-52 // float64 machine epsilon
	epsilonNeg = 0x1p-53

	justBelowUnity = 1 - 4*epsilonNeg
	justAboveUnity = 1 + 4*epsilon
)

// IsEffectivelyUnity reports whether scale is 1 up to a few ulps of
// accumulated floating-point error.
func IsEffectivelyUnity(scale float64) bool {
	return scale >= justBelowUnity && scale <= justAboveUnity
}

// sanitizeScale rejects zero and non-finite scales and snaps values that are
// effectively unity to exactly 1.
func sanitizeScale(scale float64) (float64, error) {
	switch {
	case math.IsNaN(scale) || math.IsInf(scale, 0):
		return 0, validationError(CodeInvalidScale, "cannot create a unit with a non-finite scale (%v)", scale)
	case scale == 0:
		return 0, validationError(CodeInvalidScale, "cannot create a unit with a scale of 0")
	case IsEffectivelyUnity(scale):
		return 1, nil
	}
	return scale, nil
}

// scalePow raises scale to p. A negative scale under a fractional power
// yields NaN, which sanitizeScale then rejects.
func scalePow(scale float64, p Power) float64 {
	if scale == 1 || p.IsZero() {
		return 1
	}
	return math.Pow(scale, p.Float64())
}
