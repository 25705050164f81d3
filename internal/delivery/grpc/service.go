package grpc

import (
	"context"
	"encoding/json"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/service"
	pkgGrpc "github.com/vogiaan1904/voyage-sync/pkg/grpc"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
	resp "github.com/vogiaan1904/voyage-sync/pkg/response"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScheduleRequest is the GetSchedule request body.
type ScheduleRequest struct {
	Day int `json:"day"`
	models.ScheduleFilterSettings
}

// RouteRequest carries either a notification socket frame or an already
// decoded kind and subject. Frame may be the frame object or its JSON text;
// send text when the type object has more than one key, since Struct does
// not keep key order.
type RouteRequest struct {
	Frame     json.RawMessage `json:"frame,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	SubjectID string          `json:"subject_id,omitempty"`
	Info      string          `json:"info,omitempty"`
}

type RouteResponse struct {
	Kind    string   `json:"kind"`
	Applied bool     `json:"applied"`
	Keys    []string `json:"keys"`
	Failed  []string `json:"failed,omitempty"`
}

type ScheduleGrpcService struct {
	svc    service.ScheduleService
	router notification.Router
	l      logger.Logger
}

func NewScheduleGrpcService(svc service.ScheduleService, router notification.Router, l logger.Logger) ScheduleServiceServer {
	return &ScheduleGrpcService{
		svc:    svc,
		router: router,
		l:      l,
	}
}

func (s *ScheduleGrpcService) GetSchedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ScheduleRequest
	if err := pkgGrpc.DecodeStruct(req, &in); err != nil {
		s.l.Warnf(ctx, "grpc.ScheduleGrpcService.GetSchedule: %v", err)
		return nil, resp.ParseGRPCError(errInvalidRequest)
	}

	out, err := s.svc.Schedule(ctx, service.ScheduleInput{
		Day:     in.Day,
		Filters: in.ScheduleFilterSettings,
	})
	if err != nil {
		s.l.Errorf(ctx, "grpc.ScheduleGrpcService.GetSchedule: %v", err)
		return nil, resp.ParseGRPCError(s.mapGRPCError(err))
	}

	st, err := pkgGrpc.EncodeStruct(out)
	if err != nil {
		s.l.Errorf(ctx, "grpc.ScheduleGrpcService.GetSchedule: %v", err)
		return nil, resp.ParseGRPCError(err)
	}
	return st, nil
}

func (s *ScheduleGrpcService) RouteNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in RouteRequest
	if err := pkgGrpc.DecodeStruct(req, &in); err != nil {
		s.l.Warnf(ctx, "grpc.ScheduleGrpcService.RouteNotification: %v", err)
		return nil, resp.ParseGRPCError(errInvalidRequest)
	}

	var res notification.Result
	switch {
	case len(in.Frame) > 0:
		frame, err := frameBytes(in.Frame)
		if err != nil {
			return nil, resp.ParseGRPCError(errInvalidRequest)
		}
		r, err := s.router.HandleFrame(ctx, frame)
		if err != nil {
			return nil, resp.ParseGRPCError(s.mapGRPCError(err))
		}
		res = r
	case in.Kind != "":
		res = s.router.Handle(ctx, models.NotificationEvent{
			Kind:      models.ParseNotificationKind(in.Kind),
			SubjectID: in.SubjectID,
			Info:      in.Info,
		})
	default:
		return nil, resp.ParseGRPCError(errInvalidRequest)
	}

	out := RouteResponse{
		Kind:    res.Event.Kind.String(),
		Applied: res.Applied,
		Keys:    res.Set.Strings(),
	}
	for _, k := range res.Failed {
		out.Failed = append(out.Failed, string(k))
	}

	st, err := pkgGrpc.EncodeStruct(out)
	if err != nil {
		return nil, resp.ParseGRPCError(err)
	}
	return st, nil
}

func frameBytes(raw json.RawMessage) ([]byte, error) {
	if raw[0] != '"' {
		return raw, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, err
	}
	return []byte(text), nil
}
