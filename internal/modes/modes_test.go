package modes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

// countingAgent records calls and replies from a script.
type countingAgent struct {
	calls   int
	queries []string
	replies []string
	err     error
}

func (c *countingAgent) Process(_ context.Context, q types.Query) (string, error) {
	c.calls++
	c.queries = append(c.queries, q.Content)
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return q.Content, nil
	}
	r := c.replies[min(c.calls-1, len(c.replies)-1)]
	return r, nil
}

func (c *countingAgent) Status() agent.Status { return agent.Status{Active: true, Name: "counting"} }

func TestSingleCallStrategies(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{NewSmart(), "[Smart Mode] hello [smart analysis applied]"},
		{NewAnalysis(), "[Analysis Mode] hello [deep analysis applied]"},
		{NewIterative(1), "[Iterative Mode] hello [continuous improvement applied]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy.Name()), func(t *testing.T) {
			a := &countingAgent{}
			ans, err := tt.strategy.Process(context.Background(), types.NewQuery("hello", ""), a)
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if a.calls != 1 {
				t.Errorf("expected exactly 1 agent call, got %d", a.calls)
			}
			if ans.Content != tt.want {
				t.Errorf("content = %q, want %q", ans.Content, tt.want)
			}
			if ans.Mode != string(tt.strategy.Name()) || ans.Passes != 1 {
				t.Errorf("unexpected answer metadata: %+v", ans)
			}
		})
	}
}

func TestSmartWithEchoAgent(t *testing.T) {
	input := "What is 2+2?"
	ans, err := NewSmart().Process(context.Background(), types.NewQuery(input, ""), agent.NewEcho("echo"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "[Smart Mode] " + input + " [smart analysis applied]"; ans.Content != want {
		t.Errorf("got %q, want %q", ans.Content, want)
	}
}

func TestStrategiesPropagateAgentFailure(t *testing.T) {
	cause := errors.New("upstream down")
	for _, s := range []Strategy{NewSmart(), NewAnalysis(), NewIterative(1), NewIterative(4)} {
		a := &countingAgent{err: cause}
		ans, err := s.Process(context.Background(), types.NewQuery("q", ""), a)

		var failure *AgentFailureError
		if !errors.As(err, &failure) {
			t.Fatalf("%s: expected AgentFailureError, got %v", s.Name(), err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("%s: failure should unwrap to cause", s.Name())
		}
		if failure.Agent != "counting" || failure.Mode != s.Name() {
			t.Errorf("%s: unexpected failure fields: %+v", s.Name(), failure)
		}
		if ans != (types.Answer{}) {
			t.Errorf("%s: expected zero answer, got %+v", s.Name(), ans)
		}
		if a.calls != 1 {
			t.Errorf("%s: expected no retry, got %d calls", s.Name(), a.calls)
		}
	}
}

func TestIterative_RefinesUntilConverged(t *testing.T) {
	a := &countingAgent{replies: []string{"draft", "better", "best", "best  "}}
	s := NewIterative(10)

	ans, err := s.Process(context.Background(), types.NewQuery("topic", ""), a)
	if err != nil {
		t.Fatal(err)
	}
	if a.calls != 4 || ans.Passes != 4 {
		t.Errorf("expected 4 passes, got calls=%d passes=%d", a.calls, ans.Passes)
	}
	if ans.Content != "[Iterative Mode] best   [continuous improvement applied]" {
		t.Errorf("unexpected content %q", ans.Content)
	}
	if !strings.Contains(a.queries[1], "draft") || !strings.Contains(a.queries[1], "topic") {
		t.Errorf("refinement query should carry the query and previous answer: %q", a.queries[1])
	}
}

func TestIterative_StopsAtCap(t *testing.T) {
	a := &countingAgent{replies: []string{"a", "b", "c", "d", "e"}}
	ans, err := NewIterative(3).Process(context.Background(), types.NewQuery("q", ""), a)
	if err != nil {
		t.Fatal(err)
	}
	if a.calls != 3 || ans.Passes != 3 {
		t.Errorf("expected 3 passes, got calls=%d passes=%d", a.calls, ans.Passes)
	}
	if !strings.Contains(ans.Content, " c ") {
		t.Errorf("expected final answer c, got %q", ans.Content)
	}
}

func TestIterative_CustomPredicate(t *testing.T) {
	a := &countingAgent{replies: []string{"x", "y", "z"}}
	s := NewIterative(5)
	s.Converged = func(_, cur string) bool { return cur == "y" }

	ans, _ := s.Process(context.Background(), types.NewQuery("q", ""), a)
	if ans.Passes != 2 {
		t.Errorf("expected stop after 2 passes, got %d", ans.Passes)
	}
}

func TestNewIterative_ClampsPasses(t *testing.T) {
	if s := NewIterative(0); s.MaxPasses != 1 {
		t.Errorf("expected MaxPasses 1, got %d", s.MaxPasses)
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(1)

	for _, name := range []string{"smart", "Smart", " ANALYSIS ", "iterative"} {
		if _, err := r.Lookup(Name(name)); err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
		}
	}

	_, err := r.Lookup("turbo")
	var unknown *UnknownModeError
	if !errors.As(err, &unknown) || unknown.Mode != "turbo" {
		t.Errorf("expected UnknownModeError, got %v", err)
	}

	if err := r.Register(Smart, NewSmart()); err == nil {
		t.Error("expected duplicate registration error")
	}
	if err := r.Register("", NewSmart()); err == nil {
		t.Error("expected empty name error")
	}
	if err := r.Register("custom", nil); err == nil {
		t.Error("expected nil strategy error")
	}

	got := r.Names()
	want := []Name{Analysis, Iterative, Smart}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
