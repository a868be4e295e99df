package modes

import (
	"fmt"
	"sort"
)

// Registry maps mode names to strategies. It is populated at startup and
// read-only afterwards.
type Registry struct {
	strategies map[Name]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Name]Strategy)}
}

// NewDefaultRegistry registers smart, analysis and iterative.
func NewDefaultRegistry(iterativeMaxPasses int) *Registry {
	r := NewRegistry()
	r.strategies[Smart] = NewSmart()
	r.strategies[Analysis] = NewAnalysis()
	r.strategies[Iterative] = NewIterative(iterativeMaxPasses)
	return r
}

// Register adds s under name. Registering a name twice is an error.
func (r *Registry) Register(name Name, s Strategy) error {
	name = ParseName(string(name))
	if name == "" {
		return fmt.Errorf("register mode: empty name")
	}
	if s == nil {
		return fmt.Errorf("register mode %q: nil strategy", name)
	}
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("register mode %q: already registered", name)
	}
	r.strategies[name] = s
	return nil
}

// Lookup returns the strategy for name, matching case-insensitively.
func (r *Registry) Lookup(name Name) (Strategy, error) {
	s, ok := r.strategies[ParseName(string(name))]
	if !ok {
		return nil, &UnknownModeError{Mode: name}
	}
	return s, nil
}

// Names returns the registered mode names, sorted.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
