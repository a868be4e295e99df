// Package engine assembles a dispatch orchestrator from one configuration
// snapshot and swaps it atomically on reload.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/agent/grpcagent"
	"github.com/af-corp/aegis-dispatch/internal/audit"
	"github.com/af-corp/aegis-dispatch/internal/catalog"
	"github.com/af-corp/aegis-dispatch/internal/config"
	"github.com/af-corp/aegis-dispatch/internal/dispatch"
	"github.com/af-corp/aegis-dispatch/internal/modes"
	"github.com/af-corp/aegis-dispatch/internal/policy"
	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/telemetry"
)

// Engine is an immutable, validated set of dispatch components.
type Engine struct {
	Catalog      *catalog.Catalog
	Selector     *selector.Memo
	Agents       *agent.Registry
	Modes        *modes.Registry
	Orchestrator *dispatch.Orchestrator
	LoadedAt     time.Time
}

// Deps are shared across engine rebuilds.
type Deps struct {
	Breakers *dispatch.Breakers
	Metrics  *telemetry.Metrics
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Build validates snap and assembles an engine from it. Any configuration
// error, including a duplicate model name or a catalog model without an agent
// binding, fails the build.
func Build(ctx context.Context, snap *config.Snapshot, deps Deps) (*Engine, error) {
	cat, err := catalog.FromConfig(snap.Catalog)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	table, err := policy.FromConfig(ctx, snap.Policy, snap.ResolvePath)
	if err != nil {
		return nil, fmt.Errorf("build weight policy: %w", err)
	}

	agents, err := BuildAgents(snap.Agents)
	if err != nil {
		return nil, err
	}
	if err := agents.Validate(cat); err != nil {
		agents.Close()
		return nil, fmt.Errorf("validate agent bindings: %w", err)
	}

	memo := selector.NewMemo(selector.New(table), cat)
	modeRegistry := modes.NewDefaultRegistry(snap.Config.Dispatch.Iterative.MaxPasses)

	return &Engine{
		Catalog:  cat,
		Selector: memo,
		Agents:   agents,
		Modes:    modeRegistry,
		Orchestrator: dispatch.New(memo, agents, modeRegistry, dispatch.Options{
			MaxRetries: snap.Config.Dispatch.MaxRetries,
			Breakers:   deps.Breakers,
			Metrics:    deps.Metrics,
			Recorder:   deps.Recorder,
			Logger:     deps.Logger,
		}),
		LoadedAt: time.Now(),
	}, nil
}

// BuildAgents binds an agent factory for every configured model.
func BuildAgents(cfg *config.AgentsConfig) (*agent.Registry, error) {
	reg := agent.NewRegistry()

	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := factory(cfg.Agents[name])
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		if err := reg.Bind(name, f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func factory(b config.AgentBinding) (agent.Factory, error) {
	switch b.Type {
	case "echo", "":
		return func(model string) (agent.Agent, error) { return agent.NewEcho(model), nil }, nil
	case "static":
		if b.Reply == "" {
			return nil, errors.New("static agent needs a reply")
		}
		return func(model string) (agent.Agent, error) { return agent.NewStatic(model, b.Reply), nil }, nil
	case "grpc":
		if b.Address == "" {
			return nil, errors.New("grpc agent needs an address")
		}
		return func(model string) (agent.Agent, error) {
			return grpcagent.Dial(model, b.Address, b.Timeout)
		}, nil
	default:
		return nil, fmt.Errorf("unknown agent type %q", b.Type)
	}
}

// Close releases agent resources.
func (e *Engine) Close() error {
	return e.Agents.Close()
}

// Holder publishes the current engine to concurrent readers.
type Holder struct {
	current atomic.Pointer[Engine]
}

func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.current.Store(e)
	return h
}

// Load returns the current engine. Callers keep using the engine they loaded
// for the whole request.
func (h *Holder) Load() *Engine {
	return h.current.Load()
}

// Swap installs e and returns the previous engine.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}

// Reloader rebuilds the engine from new snapshots. A failed rebuild keeps the
// current engine.
type Reloader struct {
	holder *Holder
	deps   Deps
	// drain delays closing a replaced engine so in-flight requests finish.
	drain time.Duration
}

func NewReloader(h *Holder, deps Deps, drain time.Duration) *Reloader {
	return &Reloader{holder: h, deps: deps, drain: drain}
}

// Reload is suitable as a config.Loader OnReload callback.
func (r *Reloader) Reload(snap *config.Snapshot) {
	if err := r.reload(context.Background(), snap); err != nil {
		r.logger().Error("engine rebuild failed, keeping previous configuration", "error", err)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordConfigReload("failure")
		}
		return
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordConfigReload("success")
	}
}

func (r *Reloader) reload(ctx context.Context, snap *config.Snapshot) error {
	e, err := Build(ctx, snap, r.deps)
	if err != nil {
		return err
	}
	old := r.holder.Swap(e)
	r.logger().Info("engine reloaded", "models", e.Catalog.Len(), "modes", len(e.Modes.Names()))

	if old != nil {
		closeOld := func() {
			if err := old.Close(); err != nil {
				r.logger().Warn("closing replaced engine", "error", err)
			}
		}
		if r.drain > 0 {
			time.AfterFunc(r.drain, closeOld)
		} else {
			closeOld()
		}
	}
	return nil
}

func (r *Reloader) logger() *slog.Logger {
	if r.deps.Logger != nil {
		return r.deps.Logger
	}
	return slog.Default()
}
