package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/service"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
	"github.com/vogiaan1904/voyage-sync/pkg/response"
)

type HTTPHandler struct {
	scheduleSvc service.ScheduleService
	syncSvc     service.SyncService
	tracker     service.NowTracker
	logger      logger.Logger
	validator   *validator.Validate
}

// NewHTTPHandler serves the operator API. tracker may be nil.
func NewHTTPHandler(
	scheduleSvc service.ScheduleService,
	syncSvc service.SyncService,
	tracker service.NowTracker,
	logger logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		scheduleSvc: scheduleSvc,
		syncSvc:     syncSvc,
		tracker:     tracker,
		logger:      logger,
		validator:   validator.New(),
	}
}

type scheduleQuery struct {
	Day       int    `validate:"gte=0"`
	EventType string `validate:"omitempty,oneof=general official shadow gaming karaoke movie music yoga"`
	Favorite  bool
	Personal  bool
	LFG       bool
	HidePast  bool
}

type pageRequest struct {
	Source    string `validate:"required,oneof=events joined_lfgs open_lfgs personal_events"`
	Direction string `validate:"required,oneof=next previous"`
}

type conversationRequest struct {
	FezID string `validate:"required,max=64,excludesall=/?#"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "voyage-sync",
		"sync":    h.syncSvc.Status().IsRunning,
	})
}

func (h *HTTPHandler) CruiseDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.scheduleSvc.Days()
	if err != nil {
		h.logger.Errorf(r.Context(), "http.HTTPHandler.CruiseDays: %v", err)
		h.respondError(r.Context(), w, err)
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"days":     days,
		"today":    h.scheduleSvc.Today(),
		"selected": h.scheduleSvc.CruiseDay(),
	})
}

func (h *HTTPHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseScheduleQuery(w, r)
	if !ok {
		return
	}

	out, err := h.scheduleSvc.Schedule(r.Context(), in)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, out)
}

func (h *HTTPHandler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parseScheduleQuery(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := h.scheduleSvc.ExportICS(r.Context(), &buf, in); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warnf(r.Context(), "http.HTTPHandler.ExportSchedule: %v", err)
	}
}

func (h *HTTPHandler) NowIndex(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		h.respondError(r.Context(), w, errNowTrackerMissing)
		return
	}
	h.respondJSON(r.Context(), w, http.StatusOK, h.tracker.Current())
}

func (h *HTTPHandler) RefreshSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduleSvc.Refresh(r.Context()); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"cruise_day": h.scheduleSvc.CruiseDay(),
		"sources":    h.scheduleSvc.Sources(),
	})
}

func (h *HTTPHandler) PageSource(w http.ResponseWriter, r *http.Request) {
	req := pageRequest{
		Source:    chi.URLParam(r, "source"),
		Direction: chi.URLParam(r, "direction"),
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondValidation(r.Context(), w, err)
		return
	}

	st, err := h.scheduleSvc.Page(r.Context(), req.Source, service.PageDirection(req.Direction))
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, st)
}

func (h *HTTPHandler) Connections(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(r.Context(), w, http.StatusOK, h.syncSvc.Status())
}

func (h *HTTPHandler) OpenConversationSocket(w http.ResponseWriter, r *http.Request) {
	req := conversationRequest{FezID: chi.URLParam(r, "fezID")}
	if err := h.validator.Struct(req); err != nil {
		h.respondValidation(r.Context(), w, err)
		return
	}

	if err := h.syncSvc.OpenConversation(r.Context(), req.FezID); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.respondJSON(r.Context(), w, http.StatusOK, h.syncSvc.Status().Connections)
}

func (h *HTTPHandler) CloseConversationSocket(w http.ResponseWriter, r *http.Request) {
	req := conversationRequest{FezID: chi.URLParam(r, "fezID")}
	if err := h.validator.Struct(req); err != nil {
		h.respondValidation(r.Context(), w, err)
		return
	}

	if err := h.syncSvc.CloseConversation(req.FezID); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) parseScheduleQuery(w http.ResponseWriter, r *http.Request) (service.ScheduleInput, bool) {
	q := r.URL.Query()
	var (
		sq   scheduleQuery
		errs []string
	)

	if v := q.Get("day"); v != "" {
		day, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "day must be an integer")
		}
		sq.Day = day
	}
	sq.EventType = q.Get("event_type")

	for name, dst := range map[string]*bool{
		"favorite":  &sq.Favorite,
		"personal":  &sq.Personal,
		"lfg":       &sq.LFG,
		"hide_past": &sq.HidePast,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, name+" must be a boolean")
			continue
		}
		*dst = b
	}

	if len(errs) > 0 {
		h.respondJSON(r.Context(), w, http.StatusBadRequest, response.Resp{
			ErrorCode: errInvalidQuery.Code,
			Message:   errInvalidQuery.Message,
			Errors:    errs,
		})
		return service.ScheduleInput{}, false
	}

	if err := h.validator.Struct(sq); err != nil {
		h.respondValidation(r.Context(), w, err)
		return service.ScheduleInput{}, false
	}

	return service.ScheduleInput{
		Day: sq.Day,
		Filters: models.ScheduleFilterSettings{
			FavoriteOnly: sq.Favorite,
			PersonalOnly: sq.Personal,
			LFGOnly:      sq.LFG,
			EventType:    models.EventType(sq.EventType),
			HidePast:     sq.HidePast,
		},
	}, true
}

func (h *HTTPHandler) respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(ctx, "http.HTTPHandler.respondJSON: %v", err)
	}
}

func (h *HTTPHandler) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode, resp := response.ParseHTTPError(mapHTTPError(err))
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusBadGateway && statusCode != http.StatusServiceUnavailable {
		h.logger.Errorf(ctx, "http.HTTPHandler.respondError: %v", err)
	}
	h.respondJSON(ctx, w, statusCode, resp)
}

func (h *HTTPHandler) respondValidation(ctx context.Context, w http.ResponseWriter, err error) {
	var fields []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
	}
	h.respondJSON(ctx, w, http.StatusBadRequest, response.Resp{
		ErrorCode: errInvalidQuery.Code,
		Message:   errInvalidQuery.Message,
		Errors:    fields,
	})
}
