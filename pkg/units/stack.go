package units

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polisai/polis-units/pkg/telemetry"
)

// ScopeObserver receives scope lifecycle events. The Prometheus stack
// metrics in the telemetry package implement it.
type ScopeObserver interface {
	ScopeEntered(snapshotID string, depth int)
	ScopeExited(snapshotID string, depth int, err error)
	RegistrationFailed(kind string)
}

// Stack is the explicit handle on a stack of registry snapshots. Every
// lookup reads only the top snapshot. Push and pop are serialized by a
// single lock, so a Stack may be shared between goroutines, but scopes must
// still be closed in LIFO order.
type Stack struct {
	mu     sync.Mutex
	frames []*Scope

	logger          *slog.Logger
	labeler         Labeler
	parser          Parser
	observer        ScopeObserver
	maxDepth        int
	includePrefixed bool
}

// Scope is a pushed registry snapshot. Close pops it.
type Scope struct {
	stack  *Stack
	reg    *Registry
	closed bool
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithLogger sets the logger used for scope and registration events.
func WithLogger(logger *slog.Logger) StackOption {
	return func(s *Stack) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLabeler attaches physical-type labels to conversion errors.
func WithLabeler(l Labeler) StackOption {
	return func(s *Stack) { s.labeler = l }
}

// WithParser sets the fallback for names the registry does not know.
func WithParser(p Parser) StackOption {
	return func(s *Stack) { s.parser = p }
}

// WithObserver reports scope events to o.
func WithObserver(o ScopeObserver) StackOption {
	return func(s *Stack) { s.observer = o }
}

// WithComposeDefaults sets the default search depth and whether prefixed
// units are searched when no vocabulary is given.
func WithComposeDefaults(maxDepth int, includePrefixed bool) StackOption {
	return func(s *Stack) {
		if maxDepth > 0 {
			s.maxDepth = maxDepth
		}
		s.includePrefixed = includePrefixed
	}
}

// NewStack creates a stack whose bottom snapshot is a copy of base, or an
// empty registry when base is nil.
func NewStack(base *Registry, opts ...StackOption) *Stack {
	if base == nil {
		base = NewRegistry()
	} else {
		base = base.Clone()
	}
	s := &Stack{
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.frames = []*Scope{{stack: s, reg: base}}
	return s
}

var (
	defaultStack     *Stack
	defaultStackOnce sync.Once
)

// Default returns the process-wide stack, created empty on first use.
func Default() *Stack {
	defaultStackOnce.Do(func() {
		if defaultStack == nil {
			defaultStack = NewStack(nil)
		}
	})
	return defaultStack
}

// Current returns the top snapshot.
func (s *Stack) Current() *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[len(s.frames)-1].reg
}

// Depth returns the number of open scopes above the base snapshot.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - 1
}

// Stats reports the depth and the entry counts of the top snapshot.
func (s *Stack) Stats() telemetry.RegistryStats {
	s.mu.Lock()
	depth, reg := len(s.frames)-1, s.frames[len(s.frames)-1].reg
	s.mu.Unlock()

	st := reg.Stats()
	return telemetry.RegistryStats{
		Depth:          depth,
		Units:          st.Units,
		NonPrefixUnits: st.NonPrefixUnits,
		PhysicalTypes:  st.PhysicalTypes,
		Equivalencies:  st.Equivalencies,
		Aliases:        st.Aliases,
	}
}

// push builds a snapshot from the current top and pushes it. A failed build
// pushes nothing.
func (s *Stack) push(kind string, build func(top *Registry) (*Registry, error)) (*Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top := s.frames[len(s.frames)-1].reg
	reg, err := build(top)
	if err != nil {
		s.logger.Warn("registration rejected", "kind", kind, "snapshot_id", top.ID(), "error", err)
		if s.observer != nil {
			s.observer.RegistrationFailed(kind)
		}
		return nil, err
	}

	sc := &Scope{stack: s, reg: reg}
	s.frames = append(s.frames, sc)
	depth := len(s.frames) - 1
	s.logger.Debug("scope entered", "kind", kind, "snapshot_id", reg.ID(), "depth", depth)
	if s.observer != nil {
		s.observer.ScopeEntered(reg.ID(), depth)
	}
	return sc, nil
}

// SetEnabledUnits pushes a snapshot enabling exactly units. The current
// equivalencies carry over; aliases do not.
func (s *Stack) SetEnabledUnits(units ...Unit) (*Scope, error) {
	return s.push("units", func(top *Registry) (*Registry, error) {
		r := top.cloneEquivalenciesOnly()
		return r, r.SetEnabledUnits(units...)
	})
}

// AddEnabledUnits pushes a copy of the current snapshot with units added.
func (s *Stack) AddEnabledUnits(units ...Unit) (*Scope, error) {
	return s.push("units", func(top *Registry) (*Registry, error) {
		r := top.Clone()
		return r, r.AddEnabledUnits(units...)
	})
}

// SetEnabledEquivalencies pushes a copy of the current snapshot whose rules
// are replaced by rules.
func (s *Stack) SetEnabledEquivalencies(rules ...Equivalency) (*Scope, error) {
	return s.push("equivalencies", func(top *Registry) (*Registry, error) {
		r := top.Clone()
		return r, r.SetEnabledEquivalencies(rules...)
	})
}

// AddEnabledEquivalencies pushes a copy of the current snapshot with rules
// added.
func (s *Stack) AddEnabledEquivalencies(rules ...Equivalency) (*Scope, error) {
	return s.push("equivalencies", func(top *Registry) (*Registry, error) {
		r := top.Clone()
		return r, r.AddEnabledEquivalencies(rules...)
	})
}

// SetEnabledAliases pushes a copy of the current snapshot whose aliases are
// replaced by aliases.
func (s *Stack) SetEnabledAliases(aliases map[string]Unit) (*Scope, error) {
	return s.push("aliases", func(top *Registry) (*Registry, error) {
		r := top.Clone()
		return r, r.SetEnabledAliases(aliases)
	})
}

// AddEnabledAliases pushes a copy of the current snapshot with aliases
// added.
func (s *Stack) AddEnabledAliases(aliases map[string]Unit) (*Scope, error) {
	return s.push("aliases", func(top *Registry) (*Registry, error) {
		r := top.Clone()
		return r, r.AddEnabledAliases(aliases)
	})
}

// Enter pushes a copy of reg, or an empty snapshot when reg is nil.
func (s *Stack) Enter(reg *Registry) (*Scope, error) {
	return s.push("snapshot", func(*Registry) (*Registry, error) {
		if reg == nil {
			return NewRegistry(), nil
		}
		return reg.Clone(), nil
	})
}

// EnterEmpty pushes an empty snapshot.
func (s *Stack) EnterEmpty() (*Scope, error) {
	return s.Enter(nil)
}

// Registry returns the snapshot this scope pushed.
func (sc *Scope) Registry() *Registry { return sc.reg }

// Close pops the scope. It fails with ErrScopeOrder when the scope is not
// the top of the stack or was already closed.
func (sc *Scope) Close() error {
	s := sc.stack
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := len(s.frames) - 1
	top := s.frames[depth]
	if sc.closed || depth == 0 || top != sc {
		err := &Error{
			Err:     ErrScopeOrder,
			Code:    CodeScopeOrder,
			Message: fmt.Sprintf("scope %s is not the innermost open scope (top is %s)", sc.reg.ID(), top.reg.ID()),
			Details: map[string]any{"snapshot_id": sc.reg.ID(), "top": top.reg.ID(), "closed": sc.closed},
		}
		s.logger.Warn("scope exit rejected", "snapshot_id", sc.reg.ID(), "depth", depth, "error", err)
		if s.observer != nil {
			s.observer.ScopeExited(sc.reg.ID(), depth, err)
		}
		return err
	}

	s.frames[depth] = nil
	s.frames = s.frames[:depth]
	sc.closed = true
	s.logger.Debug("scope exited", "snapshot_id", sc.reg.ID(), "depth", depth-1)
	if s.observer != nil {
		s.observer.ScopeExited(sc.reg.ID(), depth-1, nil)
	}
	return nil
}

// UnitOf coerces v using the current snapshot. Unknown names fail.
func (s *Stack) UnitOf(v UnitLike) (Unit, error) {
	return coerce(v, s.Current(), s.parser, false)
}

// UnitOfLenient is UnitOf, except that unknown names become
// UnrecognizedUnit placeholders.
func (s *Stack) UnitOfLenient(v UnitLike) (Unit, error) {
	return coerce(v, s.Current(), s.parser, true)
}

// IsEquivalent reports whether a converts to b by scale or through the
// effective equivalencies. A placeholder is only equivalent to an equal
// placeholder.
func (s *Stack) IsEquivalent(a, b UnitLike, opts ...Option) (bool, error) {
	start := time.Now()
	reg := s.Current()
	o := newCallOptions(s.maxDepth, opts)
	rules, err := o.rules(reg.Equivalencies())
	if err != nil {
		s.record(telemetry.OperationEquivalence, err, "", start)
		return false, err
	}
	ua, err := coerce(a, reg, s.parser, false)
	if err != nil {
		s.record(telemetry.OperationEquivalence, err, "", start)
		return false, err
	}
	ub, err := coerce(b, reg, s.parser, true)
	if err != nil {
		s.record(telemetry.OperationEquivalence, err, "", start)
		return false, err
	}
	var ok bool
	if isUnrecognized(ua) {
		ok = Equal(ua, ub)
	} else {
		ok = isEquivalent(ua, ub, rules)
	}
	s.record(telemetry.OperationEquivalence, nil, "", start)
	return ok, nil
}

// Converter builds the conversion from one unit to another: a pure scale
// when the units differ only by scale, otherwise a transform through the
// first applicable equivalency.
func (s *Stack) Converter(from, to UnitLike, opts ...Option) (Converter, error) {
	start := time.Now()
	reg := s.Current()
	o := newCallOptions(s.maxDepth, opts)

	conv, path, err := func() (Converter, string, error) {
		rules, err := o.rules(reg.Equivalencies())
		if err != nil {
			return Converter{}, "", err
		}
		a, err := coerce(from, reg, s.parser, false)
		if err != nil {
			return Converter{}, "", err
		}
		b, err := coerce(to, reg, s.parser, false)
		if err != nil {
			return Converter{}, "", err
		}
		return s.converter(a, b, rules)
	}()

	s.record(telemetry.OperationConvert, err, path, start)
	return conv, err
}

func (s *Stack) converter(a, b Unit, rules []Equivalency) (Converter, string, error) {
	return s.convertVia(a, b, rules, make(map[Unit]struct{}))
}

// convertVia is converter with the provider units already tried on the
// current path, so rules that point back at each other terminate.
func (s *Stack) convertVia(a, b Unit, rules []Equivalency, visited map[Unit]struct{}) (Converter, string, error) {
	for _, u := range []Unit{a, b} {
		if uu, ok := u.(*UnrecognizedUnit); ok {
			return Converter{}, "", unrecognizedError(uu.Name())
		}
	}

	if c, err := scaleConverterBetween(a, b); err == nil {
		if c.IsIdentity() {
			return c, telemetry.PathIdentity, nil
		}
		return c, telemetry.PathScale, nil
	}

	c, err := applyEquivalencies(a, b, rules, s.labeler)
	if err == nil {
		return c, telemetry.PathEquivalency, nil
	}

	if p, ok := b.(EquivalencyProvider); ok {
		visited[b] = struct{}{}
		for _, r := range p.Equivalencies() {
			if r.From != b || isNilUnit(r.To) || r.Backward == nil {
				continue
			}
			if _, seen := visited[r.To]; seen {
				continue
			}
			inner, _, ierr := s.convertVia(a, r.To, rules, visited)
			if ierr != nil {
				continue
			}
			return chainConverter(inner, r.Backward), telemetry.PathProvider, nil
		}
	}
	return Converter{}, "", err
}

// To converts value from one unit to another.
func (s *Stack) To(from, to UnitLike, value float64, opts ...Option) (float64, error) {
	c, err := s.Converter(from, to, opts...)
	if err != nil {
		return 0, err
	}
	return c.Convert(value), nil
}

// Compose returns the simplest re-expressions of u in the vocabulary,
// simplest first. Without WithVocabulary the vocabulary is drawn from the
// current snapshot.
func (s *Stack) Compose(u UnitLike, opts ...Option) ([]Unit, error) {
	start := time.Now()
	results, err := s.compose(u, newCallOptions(s.maxDepth, opts))
	s.record(telemetry.OperationCompose, err, "", start)
	return results, err
}

func (s *Stack) compose(v UnitLike, o callOptions) ([]Unit, error) {
	if o.maxDepth < 1 {
		return nil, validationError(CodeInvalidBase, "max depth must be at least 1, got %d", o.maxDepth)
	}
	reg := s.Current()
	rules, err := o.rules(reg.Equivalencies())
	if err != nil {
		return nil, err
	}
	u, err := coerce(v, reg, s.parser, false)
	if err != nil {
		return nil, err
	}
	decomposed, err := u.Decompose()
	if err != nil {
		return nil, err
	}

	var vocab []Unit
	if o.hasVocabulary {
		vocab = filterVocabulary(o.vocabulary, decomposed, rules, o.prefixed(true))
	} else {
		vocab = filterVocabulary(unitsWithSamePhysicalType(u, reg, rules), decomposed, rules, o.prefixed(s.includePrefixed))
		if len(vocab) == 0 {
			vocab = reg.NonPrefixUnits()
			sortUnits(vocab)
		}
	}

	c := newComposer(vocab, rules, o.maxDepth)
	results, err := c.compose(u, 0)
	telemetry.RecordCompose(context.Background(), telemetry.ComposeMetrics{
		Results:   len(results),
		CacheHits: c.hits,
		Pruned:    c.pruned,
		MaxDepth:  o.maxDepth,
	})
	if err != nil {
		s.logger.Debug("composition failed", "unit", u.String(), "vocabulary", len(vocab), "error", err)
		return nil, err
	}
	out := make([]Unit, len(results))
	copy(out, results)
	rankUnits(out)
	return out, nil
}

// FindEquivalentUnits returns the named units u converts to by scale (or
// through the effective equivalencies), sorted by name.
func (s *Stack) FindEquivalentUnits(u UnitLike, opts ...Option) ([]Unit, error) {
	start := time.Now()
	o := newCallOptions(s.maxDepth, opts)
	o.maxDepth = 1
	if o.includePrefixed == nil {
		no := false
		o.includePrefixed = &no
	}
	results, err := s.compose(u, o)
	if err != nil {
		s.record(telemetry.OperationEquivalents, err, "", start)
		return nil, err
	}

	seen := make(map[Unit]struct{})
	var out []Unit
	for _, r := range results {
		bases, powers := r.Bases(), r.Powers()
		if len(bases) != 1 || powers[0] != Int(1) {
			continue
		}
		if _, dup := seen[bases[0]]; dup {
			continue
		}
		seen[bases[0]] = struct{}{}
		out = append(out, bases[0])
	}
	sortUnits(out)
	s.record(telemetry.OperationEquivalents, nil, "", start)
	return out, nil
}

func (s *Stack) record(op telemetry.Operation, err error, path string, start time.Time) {
	telemetry.RecordOperation(context.Background(), telemetry.OperationMetrics{
		Operation: op,
		Outcome:   outcomeOf(err),
		Path:      path,
		Duration:  time.Since(start),
	})
}

func outcomeOf(err error) telemetry.Outcome {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, ErrDimensionMismatch):
		return telemetry.OutcomeMismatch
	case errors.Is(err, ErrUnrecognizedUnit):
		return telemetry.OutcomeUnrecognized
	}
	return telemetry.OutcomeInvalid
}
