package grpc

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ScheduleServiceName     = "voyage.v1.ScheduleService"
	GetScheduleMethod       = "/" + ScheduleServiceName + "/GetSchedule"
	RouteNotificationMethod = "/" + ScheduleServiceName + "/RouteNotification"
)

type cleanupFunc func()

// ScheduleClient talks to voyage.v1.ScheduleService. Messages are
// google.protobuf.Struct so the service needs no generated code.
type ScheduleClient interface {
	GetSchedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RouteNotification(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type scheduleClient struct {
	cc grpc.ClientConnInterface
}

func NewScheduleServiceClient(cc grpc.ClientConnInterface) ScheduleClient {
	return &scheduleClient{cc: cc}
}

func (c *scheduleClient) GetSchedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetScheduleMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *scheduleClient) RouteNotification(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RouteNotificationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func NewScheduleClient(addr string) (ScheduleClient, cleanupFunc, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Println("gRpc Schedule client connection failed.", err)
		return nil, nil, err
	}

	return NewScheduleServiceClient(conn), func() { conn.Close() }, nil
}
