package units

// must unwraps constructor results in test fixtures.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

type fixture struct {
	m, s, kg, rad *IrreducibleUnit
	km, ft        *NamedUnit
	N, Pa         *NamedUnit
}

func newFixture() *fixture {
	f := &fixture{
		m:   must(NewIrreducible("m", "meter")),
		s:   must(NewIrreducible("s", "second")),
		kg:  must(NewIrreducible("kg", "kilogram")),
		rad: must(NewIrreducible("rad", "radian")),
	}
	f.km = must(NewNamed([]string{"km", "kilometer"}, must(Scaled(1000, f.m))))
	f.ft = must(NewNamed([]string{"ft", "foot"}, must(Scaled(0.3048, f.m))))
	force := must(NewComposite(1, []Unit{f.kg, f.m, f.s}, []Power{Int(1), Int(1), Int(-2)}))
	f.N = must(NewNamed([]string{"N", "newton"}, force))
	f.Pa = must(NewNamed([]string{"Pa", "pascal"}, must(Div(f.N, must(Pow(f.m, Int(2)))))))
	return f
}

// stack returns a stack whose base registry enables every fixture unit.
func (f *fixture) stack(opts ...StackOption) *Stack {
	reg := NewRegistry()
	if err := reg.AddEnabledUnits(f.m, f.s, f.kg, f.rad, f.km, f.ft, f.N, f.Pa); err != nil {
		panic(err)
	}
	return NewStack(reg, opts...)
}

func unitStrings(us []Unit) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.String()
	}
	return out
}
