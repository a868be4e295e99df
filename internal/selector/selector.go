// Package selector picks the best model in a catalog for a task context.
//
// Each model is scored as
//
//	speed*w.Speed + quality*w.Quality - cost*w.Cost
//
// with weights taken from an injected Table. The highest score wins; ties go
// to the cheaper model and then to the model registered first, so the result
// is fully determined by the catalog and the context.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/af-corp/aegis-dispatch/internal/catalog"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

// ErrNoCandidates is returned when selecting from an empty catalog.
var ErrNoCandidates = errors.New("no candidate models in catalog")

// Scored pairs a model with its score for one task context.
type Scored struct {
	Model catalog.ModelConfig `json:"model"`
	Score float64             `json:"score"`
	// Position is the model's index in catalog order.
	Position int `json:"position"`
}

// Selector is stateless apart from its read-only weight table and is safe
// for concurrent use.
type Selector struct {
	table *Table
}

func New(table *Table) *Selector {
	return &Selector{table: table}
}

// Weights returns the weight triple the policy assigns to tc.
func (s *Selector) Weights(tc types.TaskContext) (Weights, error) {
	if err := tc.Validate(); err != nil {
		return Weights{}, err
	}
	w, ok := s.table.Lookup(tc)
	if !ok {
		return Weights{}, fmt.Errorf("%w: missing %s", ErrPolicyNotTotal, tc)
	}
	return w, nil
}

// Score computes the weighted score of m. Cost is a penalty.
func Score(w Weights, m catalog.ModelConfig) float64 {
	return w.Speed*m.Speed + w.Quality*m.Quality - w.Cost*m.Cost
}

// beats reports whether a is preferred over b. Equal candidates keep the
// earlier position.
func beats(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Model.Cost != b.Model.Cost {
		return a.Model.Cost < b.Model.Cost
	}
	return a.Position < b.Position
}

// Select returns the best model in cat for tc.
func (s *Selector) Select(tc types.TaskContext, cat *catalog.Catalog) (catalog.ModelConfig, error) {
	w, err := s.Weights(tc)
	if err != nil {
		return catalog.ModelConfig{}, err
	}
	models := cat.All()
	if len(models) == 0 {
		return catalog.ModelConfig{}, ErrNoCandidates
	}

	best := Scored{Model: models[0], Score: Score(w, models[0])}
	for i, m := range models[1:] {
		c := Scored{Model: m, Score: Score(w, m), Position: i + 1}
		if beats(c, best) {
			best = c
		}
	}
	return best.Model, nil
}

// Rank scores every model in cat for tc and orders them best first, using
// the same ordering Select applies.
func (s *Selector) Rank(tc types.TaskContext, cat *catalog.Catalog) ([]Scored, error) {
	w, err := s.Weights(tc)
	if err != nil {
		return nil, err
	}
	models := cat.All()
	if len(models) == 0 {
		return nil, ErrNoCandidates
	}

	ranked := make([]Scored, len(models))
	for i, m := range models {
		ranked[i] = Scored{Model: m, Score: Score(w, m), Position: i}
	}
	sort.Slice(ranked, func(i, j int) bool { return beats(ranked[i], ranked[j]) })
	return ranked, nil
}

// Memo binds a Selector to one catalog and caches decisions per task
// context. The catalog must not change after the Memo is created.
type Memo struct {
	sel   *Selector
	cat   *catalog.Catalog
	cache sync.Map // types.TaskContext -> catalog.ModelConfig
}

func NewMemo(sel *Selector, cat *catalog.Catalog) *Memo {
	return &Memo{sel: sel, cat: cat}
}

func (m *Memo) Select(tc types.TaskContext) (catalog.ModelConfig, error) {
	if v, ok := m.cache.Load(tc); ok {
		return v.(catalog.ModelConfig), nil
	}
	model, err := m.sel.Select(tc, m.cat)
	if err != nil {
		return catalog.ModelConfig{}, err
	}
	m.cache.Store(tc, model)
	return model, nil
}

func (m *Memo) Rank(tc types.TaskContext) ([]Scored, error) {
	return m.sel.Rank(tc, m.cat)
}

func (m *Memo) Catalog() *catalog.Catalog { return m.cat }

func (m *Memo) Weights(tc types.TaskContext) (Weights, error) {
	return m.sel.Weights(tc)
}
