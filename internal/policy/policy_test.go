package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/af-corp/aegis-dispatch/internal/config"
	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

const configDir = "../../configs"

func shippedPolicy(t *testing.T) *config.PolicyConfig {
	t.Helper()
	var cfg config.PolicyConfig
	if err := config.LoadFile(filepath.Join(configDir, "policy.yaml"), &cfg); err != nil {
		t.Fatalf("load shipped policy: %v", err)
	}
	return &cfg
}

func identity(p string) string { return p }

func TestFromRules_ShippedPolicy(t *testing.T) {
	table, err := FromRules(shippedPolicy(t).Weights.Rules)
	if err != nil {
		t.Fatalf("FromRules failed: %v", err)
	}
	if table.Len() != 36 {
		t.Fatalf("expected 36 entries, got %d", table.Len())
	}

	tests := []struct {
		tc   types.TaskContext
		want selector.Weights
	}{
		{types.TaskContext{Complexity: "simple", Type: "chat", Urgency: "high"}, selector.Weights{Cost: 0.1, Speed: 1.0, Quality: 0.2}},
		{types.TaskContext{Complexity: "complex", Type: "chat", Urgency: "high"}, selector.Weights{Cost: 0.1, Speed: 1.0, Quality: 0.2}},
		{types.TaskContext{Complexity: "complex", Type: "code", Urgency: "low"}, selector.Weights{Cost: 0.1, Speed: 0.2, Quality: 1.0}},
		{types.TaskContext{Complexity: "medium", Type: "analysis", Urgency: "medium"}, selector.Weights{Cost: 0.1, Speed: 0.2, Quality: 1.0}},
		{types.TaskContext{Complexity: "simple", Type: "chat", Urgency: "low"}, selector.Weights{Cost: 1.0, Speed: 0.3, Quality: 0.3}},
		{types.TaskContext{Complexity: "medium", Type: "creative", Urgency: "medium"}, selector.Weights{Cost: 1.0, Speed: 0.3, Quality: 0.3}},
	}
	for _, tt := range tests {
		got, ok := table.Lookup(tt.tc)
		if !ok {
			t.Errorf("no weights for %s", tt.tc)
			continue
		}
		if got != tt.want {
			t.Errorf("weights for %s = %+v, want %+v", tt.tc, got, tt.want)
		}
	}
}

func TestFromRules_FirstMatchWins(t *testing.T) {
	rules := []config.WeightRule{
		{Match: config.RuleMatch{Type: "code"}, Weights: config.WeightValues{Quality: 2}},
		{Match: config.RuleMatch{Type: "code"}, Weights: config.WeightValues{Quality: 9}},
		{Weights: config.WeightValues{Cost: 1}},
	}
	table, err := FromRules(rules)
	if err != nil {
		t.Fatal(err)
	}
	w, _ := table.Lookup(types.TaskContext{Complexity: "simple", Type: "code", Urgency: "low"})
	if w.Quality != 2 {
		t.Errorf("expected first rule to win, got %+v", w)
	}
}

func TestFromRules_NotTotal(t *testing.T) {
	rules := []config.WeightRule{
		{Match: config.RuleMatch{Urgency: "high"}, Weights: config.WeightValues{Speed: 1}},
	}
	if _, err := FromRules(rules); !errors.Is(err, selector.ErrPolicyNotTotal) {
		t.Errorf("expected ErrPolicyNotTotal, got %v", err)
	}
}

func TestFromRules_InvalidRule(t *testing.T) {
	tests := []struct {
		name string
		rule config.WeightRule
	}{
		{"bad complexity", config.WeightRule{Match: config.RuleMatch{Complexity: "extreme"}}},
		{"bad type", config.WeightRule{Match: config.RuleMatch{Type: "poetry"}}},
		{"bad urgency", config.WeightRule{Match: config.RuleMatch{Urgency: "asap"}}},
		{"negative weight", config.WeightRule{Weights: config.WeightValues{Cost: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRules([]config.WeightRule{tt.rule}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegoPolicy_MatchesShippedRules(t *testing.T) {
	modules, err := LoadRegoFiles(filepath.Join(configDir, "policies", "weights.rego"))
	if err != nil {
		t.Fatalf("LoadRegoFiles failed: %v", err)
	}
	p, err := NewRegoPolicy(context.Background(), modules)
	if err != nil {
		t.Fatalf("NewRegoPolicy failed: %v", err)
	}
	regoTable, err := p.Table(context.Background())
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	rulesTable, err := FromRules(shippedPolicy(t).Weights.Rules)
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range types.AllTaskContexts() {
		a, _ := regoTable.Lookup(tc)
		b, _ := rulesTable.Lookup(tc)
		if a != b {
			t.Errorf("%s: rego %+v, rules %+v", tc, a, b)
		}
	}
}

func TestRegoPolicy_Undefined(t *testing.T) {
	partial := `
package aegis.dispatch

weights := {"cost": 0, "speed": 1, "quality": 0} if input.urgency == "high"
`
	p, err := NewRegoPolicy(context.Background(), map[string]string{"partial.rego": partial})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Evaluate(context.Background(), types.TaskContext{Complexity: "simple", Type: "chat", Urgency: "low"})
	if !errors.Is(err, ErrUndefined) {
		t.Errorf("expected ErrUndefined, got %v", err)
	}
	if _, err := p.Table(context.Background()); err == nil {
		t.Error("expected Table to fail for a partial policy")
	}
}

func TestRegoPolicy_MissingField(t *testing.T) {
	src := `
package aegis.dispatch

weights := {"cost": 1, "speed": 1}
`
	p, err := NewRegoPolicy(context.Background(), map[string]string{"w.rego": src})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Evaluate(context.Background(), types.AllTaskContexts()[0]); err == nil {
		t.Error("expected error for missing quality weight")
	}
}

func TestNewRegoPolicy_CompileError(t *testing.T) {
	_, err := NewRegoPolicy(context.Background(), map[string]string{"bad.rego": "package aegis.dispatch\n\nweights := {"})
	if err == nil {
		t.Error("expected compile error")
	}
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	if _, err := FromConfig(ctx, &config.PolicyConfig{}, identity); !errors.Is(err, ErrNoPolicy) {
		t.Errorf("expected ErrNoPolicy, got %v", err)
	}

	both := &config.PolicyConfig{Weights: config.WeightsConfig{
		Rego:  "weights.rego",
		Rules: []config.WeightRule{{}},
	}}
	if _, err := FromConfig(ctx, both, identity); err == nil {
		t.Error("expected error when both rules and rego are set")
	}

	table, err := FromConfig(ctx, shippedPolicy(t), identity)
	if err != nil || table.Len() != 36 {
		t.Errorf("rules policy: table=%v err=%v", table, err)
	}

	regoCfg := &config.PolicyConfig{Weights: config.WeightsConfig{Rego: "policies"}}
	table, err = FromConfig(ctx, regoCfg, func(p string) string { return filepath.Join(configDir, p) })
	if err != nil || table.Len() != 36 {
		t.Errorf("rego policy dir: table=%v err=%v", table, err)
	}
}

func TestLoadRegoFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.rego"), []byte("package a"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	modules, err := LoadRegoFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 1 || modules["a.rego"] != "package a" {
		t.Errorf("unexpected modules: %v", modules)
	}

	if _, err := LoadRegoFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}
