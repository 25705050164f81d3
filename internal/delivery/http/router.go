package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *HTTPHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/healthz", h.HealthCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/cruise/days", h.CruiseDays)

		r.Get("/schedule", h.GetSchedule)
		r.Get("/schedule.ics", h.ExportSchedule)
		r.Get("/schedule/now", h.NowIndex)
		r.Post("/schedule/refresh", h.RefreshSchedule)
		r.Post("/schedule/sources/{source}/{direction}", h.PageSource)

		r.Get("/connections", h.Connections)
		r.Put("/conversations/{fezID}/socket", h.OpenConversationSocket)
		r.Delete("/conversations/{fezID}/socket", h.CloseConversationSocket)
	})

	return r
}
