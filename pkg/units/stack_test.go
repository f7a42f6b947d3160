package units

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ScopeEntered(_ string, depth int) {
	o.add(fmt.Sprintf("enter %d", depth))
}

func (o *recordingObserver) ScopeExited(_ string, depth int, err error) {
	if err != nil {
		o.add(fmt.Sprintf("exit %d rejected", depth))
		return
	}
	o.add(fmt.Sprintf("exit %d", depth))
}

func (o *recordingObserver) RegistrationFailed(kind string) {
	o.add("failed " + kind)
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStackScopesAreLIFO(t *testing.T) {
	f := newFixture()
	obs := &recordingObserver{}
	s := f.stack(WithLogger(quietLogger()), WithObserver(obs))
	furlong := must(NewNamed([]string{"furlong"}, must(Scaled(201.168, f.m))))

	outer, err := s.AddEnabledUnits(furlong)
	require.NoError(t, err)
	_, ok := s.Current().Lookup("furlong")
	assert.True(t, ok)

	_, err = s.AddEnabledUnits(must(NewIrreducible("m")))
	require.Error(t, err)
	assert.Equal(t, 1, s.Depth(), "a rejected registration pushes nothing")

	inner, err := s.EnterEmpty()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Depth())
	_, ok = s.Current().Lookup("m")
	assert.False(t, ok)

	err = outer.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScopeOrder))
	assert.Equal(t, 2, s.Depth())

	require.NoError(t, inner.Close())
	require.NoError(t, outer.Close())
	assert.Equal(t, 0, s.Depth())
	_, ok = s.Current().Lookup("furlong")
	assert.False(t, ok)

	assert.ErrorIs(t, outer.Close(), ErrScopeOrder)

	assert.Equal(t, []string{
		"enter 1",
		"failed units",
		"enter 2",
		"exit 2 rejected",
		"exit 1",
		"exit 0",
		"exit 0 rejected",
	}, obs.events)
}

func TestStackSetEnabledUnitsKeepsEquivalencies(t *testing.T) {
	f := newFixture()
	s := f.stack(WithLogger(quietLogger()))
	rule := must(NewEquivalency(f.rad, nil, nil, nil))

	rules, err := s.AddEnabledEquivalencies(rule)
	require.NoError(t, err)
	aliases, err := s.AddEnabledAliases(map[string]Unit{"metre": f.m})
	require.NoError(t, err)
	only, err := s.SetEnabledUnits(f.m, f.s)
	require.NoError(t, err)

	reg := s.Current()
	assert.Len(t, reg.Equivalencies(), 1)
	assert.Empty(t, reg.Aliases())
	_, ok := reg.Lookup("km")
	assert.False(t, ok)

	st := s.Stats()
	assert.Equal(t, 3, st.Depth)
	assert.Equal(t, 2, st.Units)
	assert.Equal(t, 1, st.Equivalencies)

	for _, sc := range []*Scope{only, aliases, rules} {
		require.NoError(t, sc.Close())
	}
	assert.Equal(t, 8, s.Stats().Units)
	assert.Empty(t, s.Current().Equivalencies())
}

func TestStackEnterCopiesRegistry(t *testing.T) {
	f := newFixture()
	s := NewStack(nil, WithLogger(quietLogger()))
	reg := NewRegistry()
	require.NoError(t, reg.AddEnabledUnits(f.m))

	sc, err := s.Enter(reg)
	require.NoError(t, err)
	defer func() { require.NoError(t, sc.Close()) }()

	require.NoError(t, reg.AddEnabledUnits(f.s))
	_, ok := s.Current().Lookup("s")
	assert.False(t, ok)
	assert.NotEqual(t, reg.ID(), sc.Registry().ID())
}

func TestStackReplacesEquivalenciesAndAliases(t *testing.T) {
	f := newFixture()
	s := f.stack(WithLogger(quietLogger()))
	a := must(NewEquivalency(f.rad, nil, nil, nil))
	b := must(NewEquivalency(f.m, f.s, nil, nil))

	sc1, err := s.AddEnabledEquivalencies(a)
	require.NoError(t, err)
	sc2, err := s.SetEnabledEquivalencies(b)
	require.NoError(t, err)
	got := s.Current().Equivalencies()
	require.Len(t, got, 1)
	assert.Same(t, f.m, got[0].From)

	sc3, err := s.AddEnabledAliases(map[string]Unit{"metre": f.m})
	require.NoError(t, err)
	sc4, err := s.SetEnabledAliases(map[string]Unit{"sec": f.s})
	require.NoError(t, err)
	assert.Equal(t, map[string]Unit{"sec": f.s}, s.Current().Aliases())

	_, err = s.AddEnabledEquivalencies(Equivalency{From: f.m})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 4, s.Depth())

	for _, sc := range []*Scope{sc4, sc3, sc2, sc1} {
		require.NoError(t, sc.Close())
	}
}

func TestStackUnitOf(t *testing.T) {
	f := newFixture()
	s := f.stack()
	sc, err := s.AddEnabledAliases(map[string]Unit{"metre": f.m})
	require.NoError(t, err)
	defer func() { require.NoError(t, sc.Close()) }()

	u, err := s.UnitOf(Name("  km "))
	require.NoError(t, err)
	assert.Same(t, f.km, u)

	u, err = s.UnitOf(Name("metre"))
	require.NoError(t, err)
	assert.Same(t, f.m, u)

	u, err = s.UnitOf(Name(""))
	require.NoError(t, err)
	assert.Same(t, DimensionlessUnscaled(), u)

	u, err = s.UnitOf(Name("2.5"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, u.Scale())
	assert.Empty(t, u.Bases())

	u, err = s.UnitOf(Number(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, u.Scale())

	u, err = s.UnitOf(f.N)
	require.NoError(t, err)
	assert.Same(t, f.N, u)

	_, err = s.UnitOf(Name("furlong"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
	assert.Equal(t, `unit "furlong" is not defined in the current scope`, err.Error())

	u, err = s.UnitOfLenient(Name("furlong"))
	require.NoError(t, err)
	assert.IsType(t, &UnrecognizedUnit{}, u)
	assert.Equal(t, "furlong", u.String())

	_, err = s.UnitOf(nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStackUnitOfParserFallback(t *testing.T) {
	f := newFixture()
	parser := ParserFunc(func(s string) (Unit, error) {
		if s == "m/s" {
			return Div(f.m, f.s)
		}
		return nil, errors.New("cannot parse " + s)
	})
	s := f.stack(WithParser(parser))

	u, err := s.UnitOf(Name("m/s"))
	require.NoError(t, err)
	assert.Equal(t, "m s^-1", u.String())

	_, err = s.UnitOf(Name("m//s"))
	assert.EqualError(t, err, "cannot parse m//s")

	u, err = s.UnitOfLenient(Name("m//s"))
	require.NoError(t, err)
	assert.IsType(t, &UnrecognizedUnit{}, u)
}

func TestStackIsEquivalent(t *testing.T) {
	f := newFixture()
	s := f.stack()
	rule := must(NewEquivalency(f.rad, nil, nil, nil))

	ok, err := s.IsEquivalent(f.rad, DimensionlessUnscaled(), WithEquivalencies(rule))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsEquivalent(f.rad, DimensionlessUnscaled())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsEquivalent(Name("km"), Name("ft"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsEquivalent(NewUnrecognized("furlong"), Name("furlong"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsEquivalent(f.m, Name("furlong"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IsEquivalent(Name("furlong"), f.m)
	assert.ErrorIs(t, err, ErrUnrecognizedUnit)
}

func TestStackScopedEquivalenciesApplyInside(t *testing.T) {
	f := newFixture()
	s := f.stack()
	rule := must(NewEquivalency(f.rad, nil, nil, nil))

	sc, err := s.AddEnabledEquivalencies(rule)
	require.NoError(t, err)
	ok, err := s.IsEquivalent(f.rad, Number(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsEquivalent(f.rad, Number(1), WithoutEquivalencies())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sc.Close())
	ok, err = s.IsEquivalent(f.rad, Number(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStackConcurrentLookups(t *testing.T) {
	f := newFixture()
	s := f.stack(WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v, err := s.To(Name("km"), Name("m"), 1)
				assert.NoError(t, err)
				assert.Equal(t, 1000.0, v)
			}
		}()
	}
	wg.Wait()
}

func TestDefaultStack(t *testing.T) {
	assert.Same(t, Default(), Default())
}
