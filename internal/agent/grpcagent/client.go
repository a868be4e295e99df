// Package grpcagent reaches agents running as gRPC sidecars, and serves local
// agents the same way.
package grpcagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

const defaultTimeout = 30 * time.Second

var _ agent.HealthChecker = (*Agent)(nil)

// Agent is an agent.Agent backed by a remote gRPC service.
type Agent struct {
	name    string
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial creates a client for the agent at address. The connection is
// established lazily on the first call.
func Dial(name, address string, timeout time.Duration, opts ...grpc.DialOption) (*Agent, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc agent dial %s: %w", address, err)
	}
	slog.Info("grpc agent configured", "model", name, "address", address)
	return &Agent{name: name, conn: conn, timeout: timeout}, nil
}

func (a *Agent) Process(ctx context.Context, q types.Query) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req := &ProcessRequest{QueryID: q.ID, SessionID: q.SessionID, Content: q.Content}
	resp := new(ProcessResponse)
	if err := a.conn.Invoke(callCtx, processMethod, req, resp); err != nil {
		if status.Code(err) == codes.Unavailable && status.Convert(err).Message() == agent.ErrInactive.Error() {
			return "", fmt.Errorf("grpc agent %s: %w", a.name, agent.ErrInactive)
		}
		if ctxErr := callCtx.Err(); ctxErr != nil {
			return "", fmt.Errorf("grpc agent %s: %w", a.name, errors.Join(ctxErr, err))
		}
		return "", fmt.Errorf("grpc agent %s: %w", a.name, err)
	}
	return resp.Answer, nil
}

// Status reports the agent as active unless the connection has failed or
// been closed.
func (a *Agent) Status() agent.Status {
	switch a.conn.GetState() {
	case connectivity.TransientFailure, connectivity.Shutdown:
		return agent.Status{Active: false, Name: a.name}
	default:
		return agent.Status{Active: true, Name: a.name}
	}
}

// Healthy probes the sidecar's standard health service.
func (a *Agent) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(a.conn).Check(ctx,
		&healthpb.HealthCheckRequest{Service: ServiceName},
		grpc.CallContentSubtype("proto"),
	)
	if err != nil {
		return false, fmt.Errorf("grpc agent %s health: %w", a.name, err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (a *Agent) Close() error {
	return a.conn.Close()
}
