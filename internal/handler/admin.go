package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// DirectoryHandler serves the admin user and category endpoints.
type DirectoryHandler struct {
	svc      *service.DirectoryService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(svc *service.DirectoryService, v *validator.Validate, log logrus.FieldLogger) *DirectoryHandler {
	return &DirectoryHandler{svc: svc, validate: v, log: log}
}

// CreateUser handles POST /admin/users
func (h *DirectoryHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in model.NewUserRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}
	u, err := h.svc.CreateUser(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// CreateCategory handles POST /admin/categories
func (h *DirectoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in model.NewCategoryRequest
	if !decodeAndValidate(w, r, h.validate, &in) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetUser handles GET /admin/users/{userId}
func (h *DirectoryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
