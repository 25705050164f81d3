package grpc

import (
	"errors"

	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/service"
	pkgErrors "github.com/vogiaan1904/voyage-sync/pkg/errors"
	"google.golang.org/grpc/codes"
)

var (
	errInvalidRequest    = pkgErrors.NewGRPCError("VOY001", "Invalid request", codes.InvalidArgument)
	errInvalidCruiseDay  = pkgErrors.NewGRPCError("VOY002", "Cruise day is outside the voyage", codes.InvalidArgument)
	errInvalidEventType  = pkgErrors.NewGRPCError("VOY003", "Unknown event type", codes.InvalidArgument)
	errScheduleDisabled  = pkgErrors.NewGRPCError("VOY006", "Schedule is disabled", codes.FailedPrecondition)
	errAllSourcesFailed  = pkgErrors.NewGRPCError("VOY007", "Every schedule source failed", codes.Unavailable)
	errMalformedPayload  = pkgErrors.NewGRPCError("VOY012", "Malformed notification payload", codes.InvalidArgument)
	errMissingNotifyKind = pkgErrors.NewGRPCError("VOY013", "Notification payload has no type", codes.InvalidArgument)
)

func (s *ScheduleGrpcService) mapGRPCError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCruiseDay):
		return errInvalidCruiseDay
	case errors.Is(err, service.ErrInvalidEventType):
		return errInvalidEventType
	case errors.Is(err, service.ErrScheduleDisabled):
		return errScheduleDisabled
	case errors.Is(err, service.ErrAllSourcesFailed):
		return errAllSourcesFailed
	case errors.Is(err, notification.ErrMalformedPayload):
		return errMalformedPayload
	case errors.Is(err, notification.ErrMissingKind):
		return errMissingNotifyKind
	default:
		return err
	}
}
