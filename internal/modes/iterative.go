package modes

import (
	"context"
	"fmt"
	"strings"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

const (
	iterativePrefix = "[Iterative Mode] "
	iterativeMarker = " [continuous improvement applied]"
)

// Converged reports whether refinement should stop after producing cur from
// prev.
type Converged func(prev, cur string) bool

// SameAnswer stops once two successive answers agree, ignoring surrounding
// whitespace.
func SameAnswer(prev, cur string) bool {
	return strings.TrimSpace(prev) == strings.TrimSpace(cur)
}

// IterativeStrategy asks the agent for an answer and, when MaxPasses > 1,
// feeds each answer back for refinement until Converged holds or the cap is
// reached. With MaxPasses of 1 it makes exactly one call.
type IterativeStrategy struct {
	MaxPasses int
	Converged Converged
}

// NewIterative returns the iterative strategy. maxPasses below 1 is treated
// as 1.
func NewIterative(maxPasses int) *IterativeStrategy {
	return &IterativeStrategy{MaxPasses: max(maxPasses, 1), Converged: SameAnswer}
}

func (s *IterativeStrategy) Name() Name { return Iterative }

func (s *IterativeStrategy) Process(ctx context.Context, q types.Query, a agent.Agent) (types.Answer, error) {
	converged := s.Converged
	if converged == nil {
		converged = SameAnswer
	}

	answer, err := call(ctx, Iterative, q, a)
	if err != nil {
		return types.Answer{}, err
	}
	passes := 1

	for passes < s.MaxPasses {
		next, err := call(ctx, Iterative, refinement(q, answer), a)
		if err != nil {
			return types.Answer{}, err
		}
		passes++
		prev := answer
		answer = next
		if converged(prev, next) {
			break
		}
	}

	return types.Answer{
		Content: iterativePrefix + answer + iterativeMarker,
		Mode:    string(Iterative),
		Passes:  passes,
	}, nil
}

// refinement builds the follow-up query for one refinement pass.
func refinement(q types.Query, previous string) types.Query {
	q.Content = fmt.Sprintf("Improve the previous answer to the query.\n\nQuery:\n%s\n\nPrevious answer:\n%s", q.Content, previous)
	return q
}
