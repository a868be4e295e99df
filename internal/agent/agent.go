// Package agent defines the capability that answers a query and the registry
// that binds catalog models to concrete agents.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/af-corp/aegis-dispatch/internal/types"
)

// ErrInactive is returned by agents that are bound but not accepting work.
var ErrInactive = errors.New("agent is not active")

// Agent answers a query. Implementations must honor ctx cancellation.
type Agent interface {
	Process(ctx context.Context, q types.Query) (string, error)
	Status() Status
}

// HealthChecker is implemented by agents that can probe a remote backend.
type HealthChecker interface {
	Healthy(ctx context.Context) (bool, error)
}

// Status is an agent's self-reported availability.
type Status struct {
	Active bool   `json:"active"`
	Name   string `json:"name"`
}

// UnknownModelError means no agent is bound to a model the catalog offers.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("no agent bound to model %q", e.Model)
}
