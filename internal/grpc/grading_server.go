package grpc

import (
	"context"
	"errors"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"school-service/internal/grading"
	"school-service/internal/observability"
)

const gradingServiceName = "school.grading.v1.Grading"

type ComputeGradeRequest struct {
	MarksObtained float64 `json:"marks_obtained"`
	TotalMarks    float64 `json:"total_marks"`
	PassingMarks  float64 `json:"passing_marks"`
}

type AggregateRequest struct {
	Subjects []grading.SubjectMarks `json:"subjects"`
}

// GradingService is the RPC surface over the grading package. Requests and
// replies are protobuf Structs shaped like ComputeGradeRequest/grading.Grade
// and AggregateRequest/grading.Summary.
type GradingService interface {
	ComputeGrade(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Aggregate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// GradingServer exposes grade computation to other school services.
type GradingServer struct{}

func NewGradingServer() *GradingServer {
	return &GradingServer{}
}

func (s *GradingServer) ComputeGrade(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ComputeGradeRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	g, err := grading.Compute(req.MarksObtained, req.TotalMarks, req.PassingMarks)
	if err != nil {
		return nil, toStatus(err)
	}
	observability.IncGradeComputed(string(g.Outcome))
	return reply(g)
}

func (s *GradingServer) Aggregate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AggregateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	summary, err := grading.Aggregate(req.Subjects)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(summary)
}

func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	var verr *grading.ValidationError
	if errors.As(err, &verr) {
		return status.Error(codes.InvalidArgument, verr.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// RegisterGradingServer attaches srv to s under school.grading.v1.Grading.
func RegisterGradingServer(s grpc.ServiceRegistrar, srv GradingService) {
	s.RegisterService(&GradingServiceDesc, srv)
}

var GradingServiceDesc = grpc.ServiceDesc{
	ServiceName: gradingServiceName,
	HandlerType: (*GradingService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ComputeGrade", Handler: computeGradeHandler},
		{MethodName: "Aggregate", Handler: aggregateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func computeGradeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GradingService).ComputeGrade(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + gradingServiceName + "/ComputeGrade"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GradingService).ComputeGrade(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func aggregateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GradingService).Aggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + gradingServiceName + "/Aggregate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GradingService).Aggregate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// NewServer builds a gRPC server with tracing and metrics wired in.
func NewServer() *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
}
