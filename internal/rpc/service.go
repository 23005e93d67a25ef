package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "adaptive.v1.ConfidenceService"

const (
	adjustMethod = "/" + ServiceName + "/AdjustConfidence"
	applyMethod  = "/" + ServiceName + "/ApplyFeedback"
)

// ConfidenceServiceServer is the server API. Requests and responses are
// google.protobuf.Struct so callers need no generated stubs.
type ConfidenceServiceServer interface {
	AdjustConfidence(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ConfidenceService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConfidenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AdjustConfidence", Handler: adjustHandler},
		{MethodName: "ApplyFeedback", Handler: applyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "adaptive/v1/confidence.proto",
}

// RegisterConfidenceServiceServer registers srv on s.
func RegisterConfidenceServiceServer(s grpc.ServiceRegistrar, srv ConfidenceServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
// #endregion service-desc

// #region handlers
func adjustHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConfidenceServiceServer).AdjustConfidence(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: adjustMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConfidenceServiceServer).AdjustConfidence(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func applyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConfidenceServiceServer).ApplyFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConfidenceServiceServer).ApplyFeedback(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
// #endregion handlers
