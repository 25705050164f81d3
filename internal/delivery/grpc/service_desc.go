package grpc

import (
	"context"

	pkgGrpc "github.com/vogiaan1904/voyage-sync/pkg/grpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScheduleServiceServer is the server side of voyage.v1.ScheduleService.
type ScheduleServiceServer interface {
	GetSchedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RouteNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ScheduleService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkgGrpc.ScheduleServiceName,
	HandlerType: (*ScheduleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetSchedule",
			Handler:    getScheduleHandler,
		},
		{
			MethodName: "RouteNotification",
			Handler:    routeNotificationHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voyage/v1/schedule.proto",
}

func RegisterScheduleServiceServer(s grpc.ServiceRegistrar, srv ScheduleServiceServer) {
	s.RegisterService(&ScheduleService_ServiceDesc, srv)
}

func getScheduleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScheduleServiceServer).GetSchedule(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pkgGrpc.GetScheduleMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScheduleServiceServer).GetSchedule(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func routeNotificationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScheduleServiceServer).RouteNotification(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pkgGrpc.RouteNotificationMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScheduleServiceServer).RouteNotification(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
