// Package policy turns the configured weight policy into a selector.Table.
//
// Two sources are supported: an ordered rule list in policy.yaml, or an OPA
// module that defines data.aegis.dispatch.weights. Either way the result is
// checked for totality over every task context before the service starts.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/af-corp/aegis-dispatch/internal/config"
	"github.com/af-corp/aegis-dispatch/internal/selector"
)

var ErrNoPolicy = errors.New("no weight policy configured")

// FromConfig builds the weight table. resolvePath maps the configured rego
// path to a filesystem path.
func FromConfig(ctx context.Context, cfg *config.PolicyConfig, resolvePath func(string) string) (*selector.Table, error) {
	w := cfg.Weights
	switch {
	case w.Rego != "" && len(w.Rules) > 0:
		return nil, errors.New("weight policy sets both rules and rego")
	case w.Rego != "":
		modules, err := LoadRegoFiles(resolvePath(w.Rego))
		if err != nil {
			return nil, fmt.Errorf("load rego weights: %w", err)
		}
		p, err := NewRegoPolicy(ctx, modules)
		if err != nil {
			return nil, err
		}
		return p.Table(ctx)
	case len(w.Rules) > 0:
		return FromRules(w.Rules)
	default:
		return nil, ErrNoPolicy
	}
}
