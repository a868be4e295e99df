// Package modes holds the execution strategies that wrap one agent call with
// mode-specific shaping of the query and the answer.
package modes

import (
	"context"
	"fmt"
	"strings"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

// Name identifies a mode. Parse user input with ParseName.
type Name string

const (
	Smart     Name = "smart"
	Analysis  Name = "analysis"
	Iterative Name = "iterative"
)

// ParseName normalizes s to a mode name. It does not check registration.
func ParseName(s string) Name {
	return Name(strings.ToLower(strings.TrimSpace(s)))
}

// Strategy runs a query through an agent. Strategies never retry: any agent
// error is returned as *AgentFailureError.
type Strategy interface {
	Name() Name
	Process(ctx context.Context, q types.Query, a agent.Agent) (types.Answer, error)
}

// UnknownModeError is returned when no strategy is registered for a name.
type UnknownModeError struct {
	Mode Name
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", string(e.Mode))
}

// AgentFailureError reports a failed agent call.
type AgentFailureError struct {
	Agent string
	Mode  Name
	Err   error
}

func (e *AgentFailureError) Error() string {
	return fmt.Sprintf("agent %s failed in %s mode: %v", e.Agent, e.Mode, e.Err)
}

func (e *AgentFailureError) Unwrap() error { return e.Err }

// call performs exactly one agent call.
func call(ctx context.Context, mode Name, q types.Query, a agent.Agent) (string, error) {
	raw, err := a.Process(ctx, q)
	if err != nil {
		return "", &AgentFailureError{Agent: a.Status().Name, Mode: mode, Err: err}
	}
	return raw, nil
}

// marked is a single-pass strategy that frames the raw answer with a prefix
// and a marker.
type marked struct {
	name   Name
	prefix string
	marker string
}

func (m *marked) Name() Name { return m.name }

func (m *marked) Process(ctx context.Context, q types.Query, a agent.Agent) (types.Answer, error) {
	raw, err := call(ctx, m.name, q, a)
	if err != nil {
		return types.Answer{}, err
	}
	return types.Answer{
		Content: m.prefix + raw + m.marker,
		Mode:    string(m.name),
		Passes:  1,
	}, nil
}

// NewSmart returns the smart strategy.
func NewSmart() Strategy {
	return &marked{name: Smart, prefix: "[Smart Mode] ", marker: " [smart analysis applied]"}
}

// NewAnalysis returns the analysis strategy. It makes the same single call as
// smart and differs only in its labels.
func NewAnalysis() Strategy {
	return &marked{name: Analysis, prefix: "[Analysis Mode] ", marker: " [deep analysis applied]"}
}
