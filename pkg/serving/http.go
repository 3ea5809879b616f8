package serving

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/middleware"
	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/serving/predictor"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/model", h.handleModel).Methods(http.MethodGet)
	router.HandleFunc("/predictions/recent", h.handleRecent).Methods(http.MethodGet)
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(r.Body)
	if err != nil {
		logger.Log.WithError(err).Warn("invalid prediction payload")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Predict(r.Context(), r.Header.Get(middleware.RequestIDHeader), record)
	if err != nil {
		switch {
		case features.IsValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, predictor.ErrPredictorUnavailable):
			writeError(w, http.StatusServiceUnavailable, "model not loaded")
		default:
			logger.Log.WithError(err).Error("prediction failed")
			writeError(w, http.StatusInternalServerError, "prediction failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleModel(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Model()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logs, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch prediction logs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// decodeRecord reads a single JSON object, keeping numbers as json.Number so
// integer checks see the literal the client sent.
func decodeRecord(body io.Reader) (features.Record, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var record map[string]interface{}
	if err := decoder.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if decoder.More() {
		return nil, errors.New("request body must contain a single JSON object")
	}
	return features.Record(record), nil
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
