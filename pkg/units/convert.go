package units

// Converter maps values expressed in one unit to another. The zero value
// is not usable; converters come from Stack.Converter.
type Converter struct {
	fn       Transform
	scale    float64
	isScale  bool
	identity bool
}

var identityConverter = Converter{fn: Identity, scale: 1, isScale: true, identity: true}

func scaleConverter(scale float64) Converter {
	if scale == 1 {
		return identityConverter
	}
	return Converter{
		fn:      func(v float64) float64 { return v * scale },
		scale:   scale,
		isScale: true,
	}
}

// transformConverter returns v ↦ fn(v/before) × after.
func transformConverter(before float64, fn Transform, after float64) Converter {
	return Converter{fn: func(v float64) float64 {
		return fn(v/before) * after
	}}
}

func chainConverter(first Converter, then Transform) Converter {
	return Converter{fn: func(v float64) float64 {
		return then(first.Convert(v))
	}}
}

// Convert applies the conversion to v.
func (c Converter) Convert(v float64) float64 {
	if c.fn == nil {
		return v
	}
	return c.fn(v)
}

// ConvertAll converts every value of vs in place and returns vs.
func (c Converter) ConvertAll(vs []float64) []float64 {
	if c.identity {
		return vs
	}
	for i, v := range vs {
		vs[i] = c.Convert(v)
	}
	return vs
}

// IsIdentity reports whether the conversion is a no-op.
func (c Converter) IsIdentity() bool { return c.identity }

// Scale returns the constant multiplier of a pure-scale conversion. The
// second result is false for conversions that go through an equivalency.
func (c Converter) Scale() (float64, bool) { return c.scale, c.isScale }

// Transform returns the conversion as a plain function.
func (c Converter) Transform() Transform { return c.Convert }

// scaleConverterBetween tries the pure-scale path from a to b.
func scaleConverterBetween(a, b Unit) (Converter, error) {
	s, err := scaleTo(a, b)
	if err != nil {
		return Converter{}, err
	}
	return scaleConverter(s), nil
}
