package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// EventHandler serves the initiator, admin and public event endpoints.
type EventHandler struct {
	svc      *service.EventService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, v *validator.Validate, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{svc: svc, validate: v, log: log}
}

// CreateEvent handles POST /users/{userId}/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.NewEventRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}

	event, err := h.svc.Create(r.Context(), chi.URLParam(r, "userId"), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListUserEvents handles GET /users/{userId}/events
func (h *EventHandler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListByInitiator(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetUserEvent handles GET /users/{userId}/events/{eventId}
func (h *EventHandler) GetUserEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetForInitiator(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateUserEvent handles PATCH /users/{userId}/events/{eventId}
func (h *EventHandler) UpdateUserEvent(w http.ResponseWriter, r *http.Request) {
	var in model.UpdateEventRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}

	event, err := h.svc.UpdateByInitiator(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "eventId"), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// AdminUpdateEvent handles PATCH /admin/events/{eventId}
// A stateAction of PUBLISH_EVENT or REJECT_EVENT publishes or rejects.
func (h *EventHandler) AdminUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in model.UpdateEventRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}

	event, err := h.svc.UpdateByAdmin(r.Context(), chi.URLParam(r, "eventId"), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// GetPublicEvent handles GET /events/{id}
// Only published events are visible; each read is recorded as a view.
func (h *EventHandler) GetPublicEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetPublished(r.Context(), chi.URLParam(r, "id"), clientIP(r))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
