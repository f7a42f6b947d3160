package units

// Mul returns a × b.
func Mul(a, b Unit) (Unit, error) {
	return combine(1, []Unit{a, b}, []Power{Int(1), Int(1)})
}

// Div returns a / b.
func Div(a, b Unit) (Unit, error) {
	return combine(1, []Unit{a, b}, []Power{Int(1), Int(-1)})
}

// Pow returns a^p.
func Pow(a Unit, p Power) (Unit, error) {
	return combine(1, []Unit{a}, []Power{p})
}

// Inverse returns 1 / a.
func Inverse(a Unit) (Unit, error) {
	return Pow(a, Int(-1))
}

// Scaled returns k × a.
func Scaled(k float64, a Unit) (Unit, error) {
	s, err := sanitizeScale(k)
	if err != nil {
		return nil, err
	}
	return combine(s, []Unit{a}, []Power{Int(1)})
}

// Dimensionless returns the dimensionless unit with the given scale.
func Dimensionless(scale float64) (Unit, error) {
	return Scaled(scale, dimensionlessUnscaled)
}

func combine(scale float64, bases []Unit, powers []Power) (Unit, error) {
	for _, b := range bases {
		if isNilUnit(b) {
			return nil, validationError(CodeInvalidBase, "bases must be units, got nil")
		}
		if u, ok := b.(*UnrecognizedUnit); ok {
			return nil, unrecognizedError(u.Name())
		}
	}
	c, err := newComposite(scale, bases, powers, false, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// scaleTo returns the factor k with a = k × b when a and b differ only by
// scale, and a dimension-mismatch error otherwise.
func scaleTo(a, b Unit) (float64, error) {
	if a == b {
		return 1, nil
	}
	ad, err := a.Decompose()
	if err != nil {
		return 0, err
	}
	bd, err := b.Decompose()
	if err != nil {
		return 0, err
	}
	if powersEqual(ad.Powers(), bd.Powers()) && basesIdentical(ad.Bases(), bd.Bases()) {
		return ad.Scale() / bd.Scale(), nil
	}
	return 0, mismatchError(CodeNotConvertible, "'%s' is not a scaled version of '%s'", a, b)
}

func basesIdentical(a, b []Unit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether a and b are the same unit up to floating-point
// noise in their scales. Placeholders are equal only to placeholders with
// the same name.
func Equal(a, b Unit) bool {
	if isNilUnit(a) || isNilUnit(b) {
		return isNilUnit(a) && isNilUnit(b)
	}
	ua, aok := a.(*UnrecognizedUnit)
	ub, bok := b.(*UnrecognizedUnit)
	if aok || bok {
		return aok && bok && ua.name == ub.name
	}
	s, err := scaleTo(a, b)
	if err != nil {
		return false
	}
	return IsEffectivelyUnity(s)
}
