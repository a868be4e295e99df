// Package dispatch runs one request end to end: pick a model for the task
// context, resolve the agent bound to it, and run the query through the
// requested mode.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/audit"
	"github.com/af-corp/aegis-dispatch/internal/catalog"
	"github.com/af-corp/aegis-dispatch/internal/modes"
	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/telemetry"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

// ModelSelector picks a model for a task context from a fixed catalog.
type ModelSelector interface {
	Select(tc types.TaskContext) (catalog.ModelConfig, error)
}

// AgentResolver returns the agent bound to a model name.
type AgentResolver interface {
	Resolve(model string) (agent.Agent, error)
}

// ModeLookup returns the strategy registered for a mode.
type ModeLookup interface {
	Lookup(name modes.Name) (modes.Strategy, error)
}

type Options struct {
	// MaxRetries re-runs the strategy after an agent failure. Zero disables
	// retries.
	MaxRetries int
	// Breakers may be nil.
	Breakers *Breakers
	Metrics  *telemetry.Metrics
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	selector ModelSelector
	agents   AgentResolver
	modes    ModeLookup

	maxRetries int
	breakers   *Breakers
	metrics    *telemetry.Metrics
	recorder   audit.Recorder
	logger     *slog.Logger
}

func New(sel ModelSelector, agents AgentResolver, modeLookup ModeLookup, opts Options) *Orchestrator {
	o := &Orchestrator{
		selector:   sel,
		agents:     agents,
		modes:      modeLookup,
		maxRetries: max(opts.MaxRetries, 0),
		breakers:   opts.Breakers,
		metrics:    opts.Metrics,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
	}
	if o.recorder == nil {
		o.recorder = audit.Nop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Handle dispatches q. Selection, agent resolution and mode lookup fail fast
// without calling any agent. Errors are returned unwrapped so callers can
// match selector.ErrNoCandidates, *agent.UnknownModelError,
// *modes.UnknownModeError and *modes.AgentFailureError.
func (o *Orchestrator) Handle(ctx context.Context, q types.Query, tc types.TaskContext, mode modes.Name) (types.Answer, error) {
	start := time.Now()
	ans, model, err := o.handle(ctx, q, tc, mode)
	o.report(ctx, q, tc, mode, model, ans, err, time.Since(start))
	return ans, err
}

func (o *Orchestrator) handle(ctx context.Context, q types.Query, tc types.TaskContext, mode modes.Name) (types.Answer, string, error) {
	m, err := o.selector.Select(tc)
	if err != nil {
		return types.Answer{}, "", err
	}
	if o.metrics != nil {
		o.metrics.RecordSelection(m.Name, string(tc.Complexity), string(tc.Type), string(tc.Urgency))
	}

	a, err := o.agents.Resolve(m.Name)
	if err != nil {
		var unknown *agent.UnknownModelError
		if errors.As(err, &unknown) {
			o.logger.Error("selected model has no agent binding",
				"request_id", q.ID,
				"model", m.Name,
				"error", err,
			)
		}
		return types.Answer{}, m.Name, err
	}

	strategy, err := o.modes.Lookup(mode)
	if err != nil {
		return types.Answer{}, m.Name, err
	}

	for attempt := 0; ; attempt++ {
		ans, err := o.attempt(ctx, m.Name, strategy, q, a)
		if err == nil {
			ans.Model = m.Name
			return ans, m.Name, nil
		}

		var failure *modes.AgentFailureError
		if !errors.As(err, &failure) || attempt >= o.maxRetries || ctx.Err() != nil || errors.Is(err, ErrCircuitOpen) {
			return types.Answer{}, m.Name, err
		}
		o.logger.Warn("agent call failed, retrying",
			"request_id", q.ID,
			"model", m.Name,
			"mode", string(strategy.Name()),
			"attempt", attempt+1,
			"error", failure.Err,
		)
		if o.metrics != nil {
			o.metrics.RecordRetry(m.Name)
		}
	}
}

// attempt runs the strategy once, guarded by the agent status and the
// model's breaker.
func (o *Orchestrator) attempt(ctx context.Context, model string, strategy modes.Strategy, q types.Query, a agent.Agent) (types.Answer, error) {
	st := a.Status()
	if !st.Active {
		return types.Answer{}, &modes.AgentFailureError{Agent: st.Name, Mode: strategy.Name(), Err: agent.ErrInactive}
	}

	var cb *CircuitBreaker
	if o.breakers != nil {
		cb = o.breakers.Get(model)
		if !cb.Allow() {
			return types.Answer{}, &modes.AgentFailureError{Agent: st.Name, Mode: strategy.Name(), Err: ErrCircuitOpen}
		}
	}

	ans, err := strategy.Process(ctx, q, a)

	if cb != nil {
		switch {
		case err == nil:
			cb.RecordSuccess()
		case ctx.Err() == nil:
			cb.RecordFailure()
		default:
			// The caller gave up; that says nothing about the model.
			cb.ReleaseProbe()
		}
		if o.metrics != nil {
			o.metrics.SetCircuitState(model, int(cb.State()))
		}
	}
	return ans, err
}

// Outcome classifies a Handle result for metrics and the audit log.
func Outcome(err error) string {
	var (
		unknownModel *agent.UnknownModelError
		unknownMode  *modes.UnknownModeError
		failure      *modes.AgentFailureError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, types.ErrInvalidTaskContext):
		return "invalid_context"
	case errors.Is(err, selector.ErrNoCandidates):
		return "no_candidates"
	case errors.As(err, &unknownModel):
		return "unknown_model"
	case errors.As(err, &unknownMode):
		return "unknown_mode"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &failure):
		return "agent_failure"
	default:
		return "error"
	}
}

func (o *Orchestrator) report(ctx context.Context, q types.Query, tc types.TaskContext, mode modes.Name, model string, ans types.Answer, err error, elapsed time.Duration) {
	outcome := Outcome(err)
	modeLabel := string(modes.ParseName(string(mode)))
	if outcome == "unknown_mode" {
		modeLabel = "unknown"
	}
	if o.metrics != nil {
		o.metrics.RecordDispatch(telemetry.DispatchLabels{
			Model:      model,
			Mode:       modeLabel,
			Status:     outcome,
			DurationMs: float64(elapsed.Microseconds()) / 1000,
			Passes:     ans.Passes,
		})
	}
	o.recorder.Record(ctx, audit.Entry{
		RequestID:  q.ID,
		SessionID:  q.SessionID,
		Model:      model,
		Mode:       modeLabel,
		Complexity: string(tc.Complexity),
		Type:       string(tc.Type),
		Urgency:    string(tc.Urgency),
		Status:     outcome,
		Passes:     ans.Passes,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	})
	if err == nil {
		o.logger.Info("dispatch completed",
			"request_id", q.ID,
			"model", model,
			"mode", ans.Mode,
			"passes", ans.Passes,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		o.logger.Warn("dispatch failed",
			"request_id", q.ID,
			"model", model,
			"mode", string(mode),
			"outcome", outcome,
			"error", err,
		)
	}
}
