package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

// WeightsQuery is the document a weight module must define.
const WeightsQuery = "data.aegis.dispatch.weights"

const defaultEvalTimeout = 100 * time.Millisecond

// ErrUndefined is returned when the module yields no weights for a context.
var ErrUndefined = errors.New("rego policy produced no weights")

// RegoInput is the input document seen by the weight module.
type RegoInput struct {
	Complexity string `json:"complexity"`
	Type       string `json:"type"`
	Urgency    string `json:"urgency"`
}

// RegoPolicy evaluates weights with OPA.
type RegoPolicy struct {
	prepared    rego.PreparedEvalQuery
	evalTimeout time.Duration
}

// NewRegoPolicy compiles the given modules, keyed by file name.
func NewRegoPolicy(ctx context.Context, modules map[string]string) (*RegoPolicy, error) {
	if len(modules) == 0 {
		return nil, errors.New("no rego modules")
	}
	opts := []func(*rego.Rego){rego.Query(WeightsQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare rego: %w", err)
	}
	return &RegoPolicy{prepared: prepared, evalTimeout: defaultEvalTimeout}, nil
}

// Evaluate runs the module for one task context.
func (p *RegoPolicy) Evaluate(ctx context.Context, tc types.TaskContext) (selector.Weights, error) {
	evalCtx, cancel := context.WithTimeout(ctx, p.evalTimeout)
	defer cancel()

	input := RegoInput{
		Complexity: string(tc.Complexity),
		Type:       string(tc.Type),
		Urgency:    string(tc.Urgency),
	}
	results, err := p.prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return selector.Weights{}, fmt.Errorf("evaluate weights for %s: %w", tc, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return selector.Weights{}, fmt.Errorf("%w: %s", ErrUndefined, tc)
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return selector.Weights{}, fmt.Errorf("weights for %s: expected object, got %T", tc, results[0].Expressions[0].Value)
	}
	var w selector.Weights
	fields := []struct {
		key string
		dst *float64
	}{{"cost", &w.Cost}, {"speed", &w.Speed}, {"quality", &w.Quality}}
	for _, f := range fields {
		v, err := toFloat(obj[f.key])
		if err != nil {
			return selector.Weights{}, fmt.Errorf("weights for %s: %s: %w", tc, f.key, err)
		}
		*f.dst = v
	}
	return w, nil
}

// Table evaluates every task context once and freezes the results.
func (p *RegoPolicy) Table(ctx context.Context) (*selector.Table, error) {
	entries := make(map[types.TaskContext]selector.Weights)
	for _, tc := range types.AllTaskContexts() {
		w, err := p.Evaluate(ctx, tc)
		if err != nil {
			return nil, err
		}
		entries[tc] = w
	}
	slog.Debug("rego weight policy materialized", "entries", len(entries))
	return selector.NewTable(entries)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
