package training

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/training/jobs", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/training/jobs", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/training/jobs/{id}", h.handleGet).Methods(http.MethodGet)
}

type createJobRequest struct {
	DatasetPath string  `json:"dataset_path"`
	Ridge       float64 `json:"ridge"`
	TestRatio   float64 `json:"test_ratio"`
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.service.Create(r.Context(), CreateJobInput{
		DatasetPath: req.DatasetPath,
		Trigger:     TriggerManual,
		Options:     TrainOptions{Ridge: req.Ridge, TestRatio: req.TestRatio},
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOptions) || errors.Is(err, ErrNoDataset) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Log.WithError(err).Error("failed to create training job")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	jobs, err := h.service.List(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list training jobs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		logger.Log.WithError(err).Error("failed to fetch training job")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
