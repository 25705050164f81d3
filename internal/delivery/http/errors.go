package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/voyage-sync/internal/service"
	"github.com/vogiaan1904/voyage-sync/internal/socket"
	pkgErrors "github.com/vogiaan1904/voyage-sync/pkg/errors"
)

var (
	errInvalidQuery      = pkgErrors.NewHTTPError("VOY001", "Invalid query parameters", http.StatusBadRequest)
	errInvalidCruiseDay  = pkgErrors.NewHTTPError("VOY002", "Cruise day is outside the voyage", http.StatusBadRequest)
	errInvalidEventType  = pkgErrors.NewHTTPError("VOY003", "Unknown event type", http.StatusBadRequest)
	errUnknownSource     = pkgErrors.NewHTTPError("VOY004", "Unknown schedule source", http.StatusNotFound)
	errInvalidDirection  = pkgErrors.NewHTTPError("VOY005", "Direction must be next or previous", http.StatusBadRequest)
	errScheduleDisabled  = pkgErrors.NewHTTPError("VOY006", "Schedule is disabled", http.StatusServiceUnavailable)
	errAllSourcesFailed  = pkgErrors.NewHTTPError("VOY007", "Every schedule source failed", http.StatusBadGateway)
	errConversationOff   = pkgErrors.NewHTTPError("VOY008", "Conversation sockets are disabled", http.StatusForbidden)
	errSyncNotRunning    = pkgErrors.NewHTTPError("VOY009", "Sync service is not running", http.StatusServiceUnavailable)
	errInvalidSocketURL  = pkgErrors.NewHTTPError("VOY010", "Invalid socket URL", http.StatusBadRequest)
	errNowTrackerMissing = pkgErrors.NewHTTPError("VOY011", "Now tracker is not running", http.StatusServiceUnavailable)
)

func mapHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCruiseDay):
		return errInvalidCruiseDay
	case errors.Is(err, service.ErrInvalidEventType):
		return errInvalidEventType
	case errors.Is(err, service.ErrUnknownSource):
		return errUnknownSource
	case errors.Is(err, service.ErrInvalidDirection):
		return errInvalidDirection
	case errors.Is(err, service.ErrScheduleDisabled):
		return errScheduleDisabled
	case errors.Is(err, service.ErrAllSourcesFailed):
		return errAllSourcesFailed
	case errors.Is(err, service.ErrConversationOff):
		return errConversationOff
	case errors.Is(err, service.ErrNotRunning):
		return errSyncNotRunning
	case errors.Is(err, socket.ErrInvalidURL):
		return errInvalidSocketURL
	default:
		return err
	}
}
