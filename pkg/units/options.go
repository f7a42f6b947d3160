package units

// DefaultMaxDepth bounds the recursion of the composition search.
const DefaultMaxDepth = 2

// Option tunes a single equivalence, conversion or composition call.
type Option func(*callOptions)

type callOptions struct {
	equivalencies   []Equivalency
	noEquivalencies bool
	vocabulary      []Unit
	hasVocabulary   bool
	maxDepth        int
	includePrefixed *bool
}

func newCallOptions(defaultDepth int, opts []Option) callOptions {
	o := callOptions{maxDepth: defaultDepth}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithEquivalencies adds rules on top of the scope's enabled equivalencies.
func WithEquivalencies(rules ...Equivalency) Option {
	return func(o *callOptions) {
		o.equivalencies = append(o.equivalencies, rules...)
	}
}

// WithoutEquivalencies turns off every equivalency, including the ones
// enabled on the current scope.
func WithoutEquivalencies() Option {
	return func(o *callOptions) {
		o.noEquivalencies = true
		o.equivalencies = nil
	}
}

// WithVocabulary restricts compose results to the given units. Prefixed
// units are then included unless WithIncludePrefixed(false) is passed.
func WithVocabulary(vocabulary ...Unit) Option {
	return func(o *callOptions) {
		o.vocabulary = append(o.vocabulary, vocabulary...)
		o.hasVocabulary = true
	}
}

// WithMaxDepth sets the composition recursion bound.
func WithMaxDepth(depth int) Option {
	return func(o *callOptions) {
		o.maxDepth = depth
	}
}

// WithIncludePrefixed controls whether prefixed units may appear in compose
// results.
func WithIncludePrefixed(include bool) Option {
	return func(o *callOptions) {
		o.includePrefixed = &include
	}
}

// rules returns the effective rule list: caller rules first, then the
// scope's, unless equivalencies were turned off.
func (o callOptions) rules(scope []Equivalency) ([]Equivalency, error) {
	if o.noEquivalencies {
		return nil, nil
	}
	own, err := normalizeRules(o.equivalencies)
	if err != nil {
		return nil, err
	}
	return unionRules(own, scope), nil
}

func (o callOptions) prefixed(defaultValue bool) bool {
	if o.includePrefixed == nil {
		return defaultValue
	}
	return *o.includePrefixed
}
