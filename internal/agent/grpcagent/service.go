package grpcagent

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/af-corp/aegis-dispatch/internal/agent"
	"github.com/af-corp/aegis-dispatch/internal/types"
)

const (
	ServiceName   = "aegis.dispatch.agent.v1.Agent"
	processMethod = "/" + ServiceName + "/Process"
)

// ProcessRequest is the wire form of a query.
type ProcessRequest struct {
	QueryID   string `json:"query_id"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

// ProcessResponse carries the raw agent answer.
type ProcessResponse struct {
	Answer string `json:"answer"`
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*agent.Agent)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: processHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aegis/dispatch/agent/v1/agent.proto",
}

// Register exposes a as the agent service on s, together with the standard
// health service reporting a's status.
func Register(s *grpc.Server, a agent.Agent) *health.Server {
	s.RegisterService(&serviceDesc, a)

	hs := health.NewServer()
	st := healthpb.HealthCheckResponse_SERVING
	if !a.Status().Active {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(ServiceName, st)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

func processHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	a := srv.(agent.Agent)
	if interceptor == nil {
		return serve(ctx, a, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: processMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return serve(ctx, a, req.(*ProcessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func serve(ctx context.Context, a agent.Agent, in *ProcessRequest) (*ProcessResponse, error) {
	if !a.Status().Active {
		return nil, status.Error(codes.Unavailable, agent.ErrInactive.Error())
	}
	answer, err := a.Process(ctx, types.Query{
		ID:        in.QueryID,
		SessionID: in.SessionID,
		Content:   in.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	return &ProcessResponse{Answer: answer}, nil
}
