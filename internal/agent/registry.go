package agent

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/af-corp/aegis-dispatch/internal/catalog"
)

// Factory builds the agent serving a model. It runs at most once per model.
type Factory func(model string) (Agent, error)

// Instance returns a Factory that always yields a.
func Instance(a Agent) Factory {
	return func(string) (Agent, error) { return a, nil }
}

// Registry maps model names to agent factories and caches built agents.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Agent),
	}
}

// Bind registers the factory for model. Binding a model twice is an error.
func (r *Registry) Bind(model string, f Factory) error {
	if model == "" {
		return errors.New("bind agent: empty model name")
	}
	if f == nil {
		return fmt.Errorf("bind agent %q: nil factory", model)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[model]; ok {
		return fmt.Errorf("bind agent %q: already bound", model)
	}
	r.factories[model] = f
	return nil
}

// Resolve returns the agent bound to model, building it on first use.
func (r *Registry) Resolve(model string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.instances[model]; ok {
		return a, nil
	}
	f, ok := r.factories[model]
	if !ok {
		return nil, &UnknownModelError{Model: model}
	}
	a, err := f(model)
	if err != nil {
		return nil, fmt.Errorf("build agent for %q: %w", model, err)
	}
	if a == nil {
		return nil, fmt.Errorf("build agent for %q: factory returned nil", model)
	}
	r.instances[model] = a
	return a, nil
}

// Validate checks that every model in cat has a binding.
func (r *Registry) Validate(cat *catalog.Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range cat.Names() {
		if _, ok := r.factories[name]; !ok {
			errs = append(errs, &UnknownModelError{Model: name})
		}
	}
	return errors.Join(errs...)
}

// Models returns the bound model names, sorted.
func (r *Registry) Models() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases built agents that hold resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, a := range r.instances {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close agent %q: %w", name, err))
			}
		}
	}
	clear(r.instances)
	return errors.Join(errs...)
}
