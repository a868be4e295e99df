package agent

import (
	"context"
	"sync/atomic"

	"github.com/af-corp/aegis-dispatch/internal/types"
)

// Echo answers every query with its own content.
type Echo struct {
	name     string
	inactive atomic.Bool
}

func NewEcho(name string) *Echo {
	return &Echo{name: name}
}

func (e *Echo) Process(ctx context.Context, q types.Query) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return q.Content, nil
}

func (e *Echo) Status() Status {
	return Status{Active: !e.inactive.Load(), Name: e.name}
}

// SetActive toggles whether the agent reports itself as active.
func (e *Echo) SetActive(active bool) { e.inactive.Store(!active) }

// Static answers every query with a fixed reply.
type Static struct {
	name  string
	reply string
}

func NewStatic(name, reply string) *Static {
	return &Static{name: name, reply: reply}
}

func (s *Static) Process(ctx context.Context, _ types.Query) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply, nil
}

func (s *Static) Status() Status {
	return Status{Active: true, Name: s.name}
}
