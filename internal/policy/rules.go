package policy

import (
	"fmt"

	"github.com/af-corp/aegis-dispatch/internal/config"
	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

type rule struct {
	complexity types.Complexity
	taskType   types.TaskType
	urgency    types.Urgency
	weights    selector.Weights
}

func (r rule) matches(tc types.TaskContext) bool {
	return (r.complexity == "" || r.complexity == tc.Complexity) &&
		(r.taskType == "" || r.taskType == tc.Type) &&
		(r.urgency == "" || r.urgency == tc.Urgency)
}

func compileRule(i int, cr config.WeightRule) (rule, error) {
	r := rule{weights: selector.Weights{
		Cost:    cr.Weights.Cost,
		Speed:   cr.Weights.Speed,
		Quality: cr.Weights.Quality,
	}}
	if cr.Match.Complexity != "" {
		c, ok := types.ParseComplexity(cr.Match.Complexity)
		if !ok {
			return rule{}, fmt.Errorf("rule %d: unknown complexity %q", i, cr.Match.Complexity)
		}
		r.complexity = c
	}
	if cr.Match.Type != "" {
		t, ok := types.ParseTaskType(cr.Match.Type)
		if !ok {
			return rule{}, fmt.Errorf("rule %d: unknown type %q", i, cr.Match.Type)
		}
		r.taskType = t
	}
	if cr.Match.Urgency != "" {
		u, ok := types.ParseUrgency(cr.Match.Urgency)
		if !ok {
			return rule{}, fmt.Errorf("rule %d: unknown urgency %q", i, cr.Match.Urgency)
		}
		r.urgency = u
	}
	if err := r.weights.Validate(); err != nil {
		return rule{}, fmt.Errorf("rule %d: %w", i, err)
	}
	return r, nil
}

// FromRules expands an ordered rule list into a weight table. For each task
// context the first matching rule applies; empty match fields are wildcards.
func FromRules(rules []config.WeightRule) (*selector.Table, error) {
	compiled := make([]rule, 0, len(rules))
	for i, cr := range rules {
		r, err := compileRule(i, cr)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, r)
	}

	entries := make(map[types.TaskContext]selector.Weights)
	for _, tc := range types.AllTaskContexts() {
		for _, r := range compiled {
			if r.matches(tc) {
				entries[tc] = r.weights
				break
			}
		}
	}
	return selector.NewTable(entries)
}
