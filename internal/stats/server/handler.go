// Package server implements the stats service: a sink for endpoint hits and
// an aggregation endpoint reporting view counts per uri.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type hitStore interface {
	Save(ctx context.Context, hit model.Hit) error
	Views(ctx context.Context, start, end time.Time, uris []string, unique bool) ([]model.ViewStats, error)
}

// Handler serves the stats HTTP API.
type Handler struct {
	store    hitStore
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewHandler constructs a Handler.
func NewHandler(store hitStore, log logrus.FieldLogger) *Handler {
	return &Handler{store: store, validate: validator.New(), log: log}
}

// Routes mounts the stats endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/hit", h.SaveHit)
	r.Get("/stats", h.GetStats)
}

// SaveHit handles POST /hit
func (h *Handler) SaveHit(w http.ResponseWriter, r *http.Request) {
	var hit model.Hit
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&hit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(hit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if hit.Timestamp.IsZero() {
		hit.Timestamp = model.StatsTime{Time: time.Now().UTC()}
	}

	if err := h.store.Save(r.Context(), hit); err != nil {
		h.log.WithError(err).Error("save hit")
		writeError(w, http.StatusInternalServerError, "failed to save hit")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetStats handles GET /stats?start=&end=&uris=&unique=
// start and end use the 2006-01-02 15:04:05 layout; uris may repeat or be
// comma-separated.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse(model.StatsTimeLayout, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start: expected "+model.StatsTimeLayout)
		return
	}
	end, err := time.Parse(model.StatsTimeLayout, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end: expected "+model.StatsTimeLayout)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, model.ErrInvalidRange.Error())
		return
	}

	var uris []string
	for _, v := range q["uris"] {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				uris = append(uris, u)
			}
		}
	}

	unique := false
	if v := q.Get("unique"); v != "" {
		if unique, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "unique: expected a boolean")
			return
		}
	}

	stats, err := h.store.Views(r.Context(), start, end, uris, unique)
	if err != nil {
		h.log.WithError(err).Error("query views")
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	if stats == nil {
		stats = []model.ViewStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}
