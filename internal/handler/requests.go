package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RequestHandler serves the participation-request endpoints.
type RequestHandler struct {
	svc      *service.AdmissionService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(svc *service.AdmissionService, v *validator.Validate, log logrus.FieldLogger) *RequestHandler {
	return &RequestHandler{svc: svc, validate: v, log: log}
}

// limitReachedResponse carries the partial result of a bulk confirmation that
// ran out of seats.
type limitReachedResponse struct {
	Error string `json:"error"`
	model.StatusUpdateResult
}

// CreateRequest handles POST /users/{userId}/requests?eventId=
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "eventId query parameter is required")
		return
	}

	req, err := h.svc.CreateRequest(r.Context(), userID, eventID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CancelRequest handles PATCH /users/{userId}/requests/{requestId}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.CancelRequest(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "requestId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListUserRequests handles GET /users/{userId}/requests
func (h *RequestHandler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListByRequester(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if reqs == nil {
		reqs = []model.ParticipationRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ListEventRequests handles GET /users/{userId}/events/{eventId}/requests
func (h *RequestHandler) ListEventRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListByEvent(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if reqs == nil {
		reqs = []model.ParticipationRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// UpdateStatuses handles PATCH /users/{userId}/events/{eventId}/requests
// Confirms or rejects a batch of pending requests. When seats run out midway
// the response is 409 and still lists the requests that were confirmed.
func (h *RequestHandler) UpdateStatuses(w http.ResponseWriter, r *http.Request) {
	var in model.StatusUpdateRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}

	res, err := h.svc.BulkUpdateStatus(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "eventId"), in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, model.ErrLimitReached) && res != nil:
		writeJSON(w, http.StatusConflict, limitReachedResponse{Error: err.Error(), StatusUpdateResult: *res})
	default:
		writeServiceError(w, h.log, err)
	}
}
