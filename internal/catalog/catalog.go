// Package catalog holds the ordered set of models available for selection.
//
// A Catalog is populated once at startup and never mutated afterwards, so it
// can be shared across goroutines without locking.
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidModel is returned when a model config fails validation.
var ErrInvalidModel = errors.New("invalid model config")

// DuplicateNameError reports a second registration of the same model name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate model name %q in catalog", e.Name)
}

// ModelConfig describes one selectable model.
type ModelConfig struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost"`
	Speed       float64 `json:"speed"`
	Quality     float64 `json:"quality"`
}

// Validate checks the name and that every attribute is finite and non-negative.
func (m ModelConfig) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidModel)
	}
	attrs := []struct {
		name string
		v    float64
	}{{"cost", m.Cost}, {"speed", m.Speed}, {"quality", m.Quality}}
	for _, a := range attrs {
		if math.IsNaN(a.v) || math.IsInf(a.v, 0) || a.v < 0 {
			return fmt.Errorf("%w: model %q %s must be a finite value >= 0, got %v", ErrInvalidModel, m.Name, a.name, a.v)
		}
	}
	return nil
}

// Catalog is an insertion-ordered collection of uniquely named models.
type Catalog struct {
	models []ModelConfig
	index  map[string]int
}

func New() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// NewWithModels registers the given models in order and stops at the first error.
func NewWithModels(models ...ModelConfig) (*Catalog, error) {
	c := New()
	for _, m := range models {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register appends a model. It is only meant to be called during startup.
func (c *Catalog) Register(m ModelConfig) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := c.index[m.Name]; ok {
		return &DuplicateNameError{Name: m.Name}
	}
	c.index[m.Name] = len(c.models)
	c.models = append(c.models, m)
	return nil
}

// All returns a copy of the models in registration order.
func (c *Catalog) All() []ModelConfig {
	out := make([]ModelConfig, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Get(name string) (ModelConfig, bool) {
	i, ok := c.index[name]
	if !ok {
		return ModelConfig{}, false
	}
	return c.models[i], true
}

func (c *Catalog) Len() int { return len(c.models) }

// Names returns model names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name
	}
	return names
}
