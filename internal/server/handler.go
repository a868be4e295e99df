package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/dispatch"
	"github.com/af-corp/aegis-dispatch/internal/engine"
	"github.com/af-corp/aegis-dispatch/internal/httputil"
	"github.com/af-corp/aegis-dispatch/internal/modes"
	"github.com/af-corp/aegis-dispatch/internal/selector"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

const (
	maxBodyBytes       = 1 << 20
	healthProbeTimeout = 2 * time.Second
)

// Handler holds dependencies for the dispatcher HTTP handlers.
type Handler struct {
	engine         func() *engine.Engine
	breakers       *dispatch.Breakers
	requestTimeout time.Duration
	version        string
}

// NewHandler builds the handlers. current is called once per request; the
// request uses that engine throughout.
func NewHandler(current func() *engine.Engine, breakers *dispatch.Breakers, requestTimeout time.Duration, version string) *Handler {
	return &Handler{
		engine:         current,
		breakers:       breakers,
		requestTimeout: requestTimeout,
		version:        version,
	}
}

// ContextRequest is the wire form of a task context.
type ContextRequest struct {
	Complexity string `json:"complexity"`
	Type       string `json:"type"`
	Urgency    string `json:"urgency"`
}

type DispatchRequest struct {
	Query     string         `json:"query"`
	SessionID string         `json:"session_id,omitempty"`
	Context   ContextRequest `json:"context"`
	Mode      string         `json:"mode"`
}

type DispatchResponse struct {
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
	Mode      string `json:"mode"`
	Answer    string `json:"answer"`
	Passes    int    `json:"passes"`
}

type SelectRequest struct {
	Context ContextRequest `json:"context"`
}

type SelectResponse struct {
	Context  types.TaskContext `json:"context"`
	Weights  selector.Weights  `json:"weights"`
	Selected string            `json:"selected"`
	Ranking  []selector.Scored `json:"ranking"`
}

func decode(r *http.Request, dest any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// Dispatch handles POST /v1/dispatch
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req DispatchRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if req.Query == "" {
		httputil.WriteBadRequestError(w, reqID, "query is required")
		return
	}
	if req.Mode == "" {
		httputil.WriteBadRequestError(w, reqID, "mode is required")
		return
	}
	tc, err := types.ParseTaskContext(req.Context.Complexity, req.Context.Type, req.Context.Urgency)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	q := types.Query{ID: reqID, SessionID: req.SessionID, Content: req.Query}
	ans, err := h.engine().Orchestrator.Handle(ctx, q, tc, modes.ParseName(req.Mode))
	if err != nil {
		writeDispatchError(w, reqID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, DispatchResponse{
		RequestID: reqID,
		Model:     ans.Model,
		Mode:      ans.Mode,
		Answer:    ans.Content,
		Passes:    ans.Passes,
	})
}

// writeDispatchError maps the orchestrator's typed errors to HTTP statuses.
func writeDispatchError(w http.ResponseWriter, reqID string, err error) {
	var (
		unknownModel *agent.UnknownModelError
		unknownMode  *modes.UnknownModeError
		failure      *modes.AgentFailureError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteGatewayTimeoutError(w, reqID, "dispatch timed out")
	case errors.Is(err, types.ErrInvalidTaskContext):
		httputil.WriteBadRequestError(w, reqID, err.Error())
	case errors.As(err, &unknownMode):
		httputil.WriteUnknownModeError(w, reqID, err.Error())
	case errors.Is(err, selector.ErrNoCandidates):
		httputil.WriteServiceUnavailableError(w, reqID, "no models available")
	case errors.As(err, &unknownModel):
		httputil.WriteConfigurationError(w, reqID, unknownModel.Model, "selected model has no agent binding")
	case errors.As(err, &failure):
		httputil.WriteModelError(w, reqID, failure.Agent, err.Error())
	default:
		slog.Error("dispatch error", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "internal error")
	}
}

// Select handles POST /v1/select. It explains the selector decision without
// calling any agent.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req SelectRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	tc, err := types.ParseTaskContext(req.Context.Complexity, req.Context.Type, req.Context.Urgency)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	sel := h.engine().Selector
	weights, err := sel.Weights(tc)
	if err != nil {
		writeDispatchError(w, reqID, err)
		return
	}
	ranking, err := sel.Rank(tc)
	if err != nil {
		writeDispatchError(w, reqID, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SelectResponse{
		Context:  tc,
		Weights:  weights,
		Selected: ranking[0].Model.Name,
		Ranking:  ranking,
	})
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	e := h.engine()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"object":    "list",
		"data":      e.Catalog.All(),
		"loaded_at": e.LoadedAt.UTC().Format(time.RFC3339),
	})
}

// ListModes handles GET /v1/modes
func (h *Handler) ListModes(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   h.engine().Modes.Names(),
	})
}

// Health handles GET /health. Agents that can probe their backend are
// checked; any that fail mark the service degraded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	circuits := make(map[string]string)
	for model, st := range h.breakers.States() {
		circuits[model] = st.String()
	}

	e := h.engine()
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	status := "healthy"
	agents := make(map[string]string)
	for _, model := range e.Catalog.Names() {
		a, err := e.Agents.Resolve(model)
		if err != nil {
			continue
		}
		checker, ok := a.(agent.HealthChecker)
		if !ok {
			continue
		}
		serving, err := checker.Healthy(ctx)
		switch {
		case err != nil:
			slog.Warn("agent health check failed", "model", model, "error", err)
			agents[model] = "unreachable"
			status = "degraded"
		case !serving:
			agents[model] = "not_serving"
			status = "degraded"
		default:
			agents[model] = "serving"
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"version":  h.version,
		"models":   e.Catalog.Len(),
		"circuits": circuits,
		"agents":   agents,
	})
}
