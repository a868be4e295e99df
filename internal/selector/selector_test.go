package selector

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/af-corp/aegis-dispatch/internal/catalog"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

var (
	speedHeavy   = Weights{Cost: 0.1, Speed: 1.0, Quality: 0.2}
	qualityHeavy = Weights{Cost: 0.1, Speed: 0.2, Quality: 1.0}
	costHeavy    = Weights{Cost: 1.0, Speed: 0.3, Quality: 0.3}
)

// testTable mirrors the shipped policy: urgency first, then quality-demanding
// work, otherwise cost.
func testTable(t *testing.T) *Table {
	t.Helper()
	entries := make(map[types.TaskContext]Weights)
	for _, tc := range types.AllTaskContexts() {
		switch {
		case tc.Urgency == types.UrgencyHigh:
			entries[tc] = speedHeavy
		case tc.Complexity == types.ComplexityComplex,
			tc.Type == types.TaskAnalysis, tc.Type == types.TaskCode:
			entries[tc] = qualityHeavy
		default:
			entries[tc] = costHeavy
		}
	}
	table, err := NewTable(entries)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func scenarioCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.NewWithModels(
		catalog.ModelConfig{Name: "fast", Cost: 1, Speed: 9, Quality: 5},
		catalog.ModelConfig{Name: "quality", Cost: 5, Speed: 3, Quality: 9},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestSelect_QualityForComplexCode(t *testing.T) {
	sel := New(testTable(t))
	tc := types.TaskContext{Complexity: types.ComplexityComplex, Type: types.TaskCode, Urgency: types.UrgencyLow}

	m, err := sel.Select(tc, scenarioCatalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "quality" {
		t.Errorf("expected quality, got %s", m.Name)
	}
}

func TestSelect_SpeedForUrgentChat(t *testing.T) {
	sel := New(testTable(t))
	tc := types.TaskContext{Complexity: types.ComplexitySimple, Type: types.TaskChat, Urgency: types.UrgencyHigh}

	m, err := sel.Select(tc, scenarioCatalog(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "fast" {
		t.Errorf("expected fast, got %s", m.Name)
	}
}

func TestSelect_CheapForSimpleChat(t *testing.T) {
	sel := New(testTable(t))
	tc := types.TaskContext{Complexity: types.ComplexitySimple, Type: types.TaskChat, Urgency: types.UrgencyLow}

	cat, err := catalog.NewWithModels(
		catalog.ModelConfig{Name: "premium", Cost: 10, Speed: 5, Quality: 10},
		catalog.ModelConfig{Name: "budget", Cost: 0.5, Speed: 5, Quality: 4},
	)
	if err != nil {
		t.Fatal(err)
	}
	m, err := sel.Select(tc, cat)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "budget" {
		t.Errorf("expected budget, got %s", m.Name)
	}
}

func TestSelect_EmptyCatalog(t *testing.T) {
	sel := New(testTable(t))
	for _, tc := range types.AllTaskContexts() {
		if _, err := sel.Select(tc, catalog.New()); !errors.Is(err, ErrNoCandidates) {
			t.Errorf("Select(%s) on empty catalog: expected ErrNoCandidates, got %v", tc, err)
		}
		if _, err := sel.Rank(tc, catalog.New()); !errors.Is(err, ErrNoCandidates) {
			t.Errorf("Rank(%s) on empty catalog: expected ErrNoCandidates, got %v", tc, err)
		}
	}
}

func TestSelect_InvalidContext(t *testing.T) {
	sel := New(testTable(t))
	_, err := sel.Select(types.TaskContext{Complexity: types.ComplexitySimple}, scenarioCatalog(t))
	if !errors.Is(err, types.ErrInvalidTaskContext) {
		t.Errorf("expected ErrInvalidTaskContext, got %v", err)
	}
}

func randomCatalog(t *testing.T, rng *rand.Rand, n int) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	for i := 0; i < n; i++ {
		err := c.Register(catalog.ModelConfig{
			Name:    string(rune('a'+i)) + "-model",
			Cost:    float64(rng.Intn(5)),
			Speed:   float64(rng.Intn(5)),
			Quality: float64(rng.Intn(5)),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return c
}

func TestSelect_DeterministicAndMember(t *testing.T) {
	sel := New(testTable(t))
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		cat := randomCatalog(t, rng, 1+rng.Intn(8))
		for _, tc := range types.AllTaskContexts() {
			first, err := sel.Select(tc, cat)
			if err != nil {
				t.Fatalf("Select(%s): %v", tc, err)
			}
			second, _ := sel.Select(tc, cat)
			if first != second {
				t.Fatalf("Select(%s) not deterministic: %s vs %s", tc, first.Name, second.Name)
			}
			member, ok := cat.Get(first.Name)
			if !ok || member != first {
				t.Fatalf("Select(%s) returned %+v which is not in the catalog", tc, first)
			}

			ranked, err := sel.Rank(tc, cat)
			if err != nil {
				t.Fatal(err)
			}
			if ranked[0].Model != first {
				t.Fatalf("Rank(%s)[0] = %s, Select = %s", tc, ranked[0].Model.Name, first.Name)
			}
			if len(ranked) != cat.Len() {
				t.Fatalf("Rank returned %d entries for %d models", len(ranked), cat.Len())
			}
		}
	}
}

func TestSelect_TieBreakInsertionOrder(t *testing.T) {
	sel := New(testTable(t))
	cat, err := catalog.NewWithModels(
		catalog.ModelConfig{Name: "weak", Cost: 9, Speed: 1, Quality: 1},
		catalog.ModelConfig{Name: "first", Cost: 2, Speed: 6, Quality: 6},
		catalog.ModelConfig{Name: "second", Cost: 2, Speed: 6, Quality: 6},
	)
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range types.AllTaskContexts() {
		m, err := sel.Select(tc, cat)
		if err != nil {
			t.Fatal(err)
		}
		if m.Name != "first" {
			t.Errorf("Select(%s) = %s, want first", tc, m.Name)
		}
	}
}

func TestSelect_TieBreakLowerCost(t *testing.T) {
	// With only speed weighted, both models score 5; the cheaper one wins
	// even though it was registered later.
	entries := make(map[types.TaskContext]Weights)
	for _, tc := range types.AllTaskContexts() {
		entries[tc] = Weights{Speed: 1}
	}
	table, err := NewTable(entries)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.NewWithModels(
		catalog.ModelConfig{Name: "pricey", Cost: 4, Speed: 5, Quality: 1},
		catalog.ModelConfig{Name: "cheap", Cost: 1, Speed: 5, Quality: 1},
	)
	if err != nil {
		t.Fatal(err)
	}

	tc := types.TaskContext{Complexity: types.ComplexityMedium, Type: types.TaskCreative, Urgency: types.UrgencyMedium}
	m, err := New(table).Select(tc, cat)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "cheap" {
		t.Errorf("expected cheap, got %s", m.Name)
	}
}

func TestRank_Order(t *testing.T) {
	sel := New(testTable(t))
	tc := types.TaskContext{Complexity: types.ComplexityComplex, Type: types.TaskCode, Urgency: types.UrgencyLow}

	ranked, err := sel.Rank(tc, scenarioCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	if ranked[0].Model.Name != "quality" || ranked[1].Model.Name != "fast" {
		t.Errorf("unexpected ranking: %+v", ranked)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("expected descending scores, got %v then %v", ranked[0].Score, ranked[1].Score)
	}
	if ranked[0].Position != 1 {
		t.Errorf("expected quality at catalog position 1, got %d", ranked[0].Position)
	}
}

func TestNewTable_NotTotal(t *testing.T) {
	entries := map[types.TaskContext]Weights{
		{Complexity: types.ComplexitySimple, Type: types.TaskChat, Urgency: types.UrgencyLow}: costHeavy,
	}
	if _, err := NewTable(entries); !errors.Is(err, ErrPolicyNotTotal) {
		t.Errorf("expected ErrPolicyNotTotal, got %v", err)
	}
}

func TestNewTable_InvalidWeights(t *testing.T) {
	entries := make(map[types.TaskContext]Weights)
	for _, tc := range types.AllTaskContexts() {
		entries[tc] = costHeavy
	}
	entries[types.AllTaskContexts()[5]] = Weights{Cost: -1}

	if _, err := NewTable(entries); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestNewTable_InvalidKey(t *testing.T) {
	entries := map[types.TaskContext]Weights{{Complexity: "extreme"}: costHeavy}
	if _, err := NewTable(entries); !errors.Is(err, types.ErrInvalidTaskContext) {
		t.Errorf("expected ErrInvalidTaskContext, got %v", err)
	}
}

func TestMemo_CachesDecision(t *testing.T) {
	cat := scenarioCatalog(t)
	memo := NewMemo(New(testTable(t)), cat)
	tc := types.TaskContext{Complexity: types.ComplexitySimple, Type: types.TaskChat, Urgency: types.UrgencyHigh}

	first, err := memo.Select(tc)
	if err != nil {
		t.Fatal(err)
	}
	second, err := memo.Select(tc)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || first.Name != "fast" {
		t.Errorf("memo returned %s then %s", first.Name, second.Name)
	}
	if memo.Catalog() != cat {
		t.Error("memo should expose its catalog")
	}
}

func TestMemo_EmptyCatalogNotCached(t *testing.T) {
	memo := NewMemo(New(testTable(t)), catalog.New())
	tc := types.AllTaskContexts()[0]
	for i := 0; i < 2; i++ {
		if _, err := memo.Select(tc); !errors.Is(err, ErrNoCandidates) {
			t.Errorf("attempt %d: expected ErrNoCandidates, got %v", i, err)
		}
	}
}
