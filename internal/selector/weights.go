package selector

import (
	"errors"
	"fmt"
	"math"

	"github.com/af-corp/aegis-dispatch/internal/types"
)

var (
	// ErrPolicyNotTotal is returned when a weight table misses a task context.
	ErrPolicyNotTotal = errors.New("weight policy does not cover every task context")
	// ErrInvalidWeights is returned for negative or non-finite weights.
	ErrInvalidWeights = errors.New("invalid weights")
)

// Weights scale the three model attributes when scoring.
type Weights struct {
	Cost    float64 `json:"cost"`
	Speed   float64 `json:"speed"`
	Quality float64 `json:"quality"`
}

func (w Weights) Validate() error {
	for _, v := range []float64{w.Cost, w.Speed, w.Quality} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
		}
	}
	return nil
}

// Table maps every valid TaskContext to exactly one weight triple.
// It is immutable once built.
type Table struct {
	entries map[types.TaskContext]Weights
}

// NewTable copies entries into a Table, rejecting tables that are not total
// over the 36 task contexts or that carry invalid keys or weights.
func NewTable(entries map[types.TaskContext]Weights) (*Table, error) {
	t := &Table{entries: make(map[types.TaskContext]Weights, len(entries))}
	for tc, w := range entries {
		if err := tc.Validate(); err != nil {
			return nil, err
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("context %s: %w", tc, err)
		}
		t.entries[tc] = w
	}
	for _, tc := range types.AllTaskContexts() {
		if _, ok := t.entries[tc]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrPolicyNotTotal, tc)
		}
	}
	return t, nil
}

// Lookup returns the weights for tc.
func (t *Table) Lookup(tc types.TaskContext) (Weights, bool) {
	w, ok := t.entries[tc]
	return w, ok
}

// Len reports the number of entries, 36 for any table built by NewTable.
func (t *Table) Len() int { return len(t.entries) }
