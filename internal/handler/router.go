package handler

import (
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Services bundles what the router dispatches to.
type Services struct {
	Admission *service.AdmissionService
	Events    *service.EventService
	Directory *service.DirectoryService
}

// NewRouter builds the HTTP API. timeout bounds each request, including any
// wait for an event lock.
func NewRouter(svc Services, timeout time.Duration, log logrus.FieldLogger) http.Handler {
	v := validator.New()
	requests := NewRequestHandler(svc.Admission, v, log)
	events := NewEventHandler(svc.Events, v, log)
	directory := NewDirectoryHandler(svc.Directory, v, log)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)
	r.Use(chimiddleware.Timeout(timeout))

	r.Get("/health", HealthCheck)

	r.Route("/users/{userId}", func(r chi.Router) {
		r.Post("/requests", requests.CreateRequest)
		r.Get("/requests", requests.ListUserRequests)
		r.Patch("/requests/{requestId}/cancel", requests.CancelRequest)

		r.Post("/events", events.CreateEvent)
		r.Get("/events", events.ListUserEvents)
		r.Get("/events/{eventId}", events.GetUserEvent)
		r.Patch("/events/{eventId}", events.UpdateUserEvent)
		r.Get("/events/{eventId}/requests", requests.ListEventRequests)
		r.Patch("/events/{eventId}/requests", requests.UpdateStatuses)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/users", directory.CreateUser)
		r.Get("/users/{userId}", directory.GetUser)
		r.Post("/categories", directory.CreateCategory)
		r.Patch("/events/{eventId}", events.AdminUpdateEvent)
	})

	r.Get("/events/{id}", events.GetPublicEvent)

	return r
}
