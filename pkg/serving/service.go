package serving

import (
	"context"
	"errors"
	"time"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/observability/metrics"
	"github.com/clinicflow/waittime/pkg/serving/predictor"
)

type Service struct {
	predictor *predictor.Predictor
	cache     PredictionCache
	repo      *Repository
	modelName string
}

// NewService wires the predictor with optional cache and prediction log;
// either may be nil.
func NewService(p *predictor.Predictor, modelName string, cache PredictionCache, repo *Repository) *Service {
	return &Service{
		predictor: p,
		cache:     cache,
		repo:      repo,
		modelName: modelName,
	}
}

func (s *Service) Predict(ctx context.Context, requestID string, record features.Record) (models.PredictionResponse, error) {
	start := time.Now()

	// The record is validated before the cache is consulted, so a malformed
	// record is rejected even when a valid one with the same cache key exists.
	encoded, err := s.predictor.Encode(record)
	if err != nil {
		if features.IsValidationError(err) {
			metrics.PredictionRejected()
		}
		return models.PredictionResponse{}, err
	}

	key := CacheKey(encoded.ModelVersion.String(), encoded.Columns)
	if s.cache != nil {
		resp, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Log.WithError(err).Warn("prediction cache read failed")
		} else if ok {
			resp.Cached = true
			metrics.PredictionServed(true, 0)
			s.log(ctx, requestID, record, resp, time.Since(start))
			return resp, nil
		}
	}

	pred, err := s.predictor.Predict(record)
	if err != nil {
		switch {
		case features.IsValidationError(err):
			metrics.PredictionRejected()
		case errors.Is(err, predictor.ErrModelInvocation):
			metrics.PredictionFailed()
		}
		return models.PredictionResponse{}, err
	}

	resp := models.PredictionResponse{
		PredictedWaitTimeMinutes: pred.Minutes,
		ModelVersion:             pred.ModelVersion.String(),
		UnseenCategories:         pred.UnseenCategory,
	}
	if len(pred.UnseenCategory) > 0 {
		logger.Log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"columns":    pred.UnseenCategory,
		}).Info("category values not in feature schema")
	}
	// A reload between Encode and Predict changes the version; only cache under
	// the version that produced the value.
	if s.cache != nil && pred.ModelVersion == encoded.ModelVersion {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			logger.Log.WithError(err).Warn("prediction cache write failed")
		}
	}

	metrics.PredictionServed(false, len(pred.UnseenCategory))
	s.log(ctx, requestID, record, resp, time.Since(start))
	return resp, nil
}

func (s *Service) log(ctx context.Context, requestID string, record features.Record, resp models.PredictionResponse, latency time.Duration) {
	if s.repo == nil {
		return
	}
	entry := PredictionEntry{
		ModelName:        s.modelName,
		ModelVersion:     resp.ModelVersion,
		RequestID:        requestID,
		Record:           map[string]interface{}(record),
		PredictedMinutes: resp.PredictedWaitTimeMinutes,
		UnseenCategories: resp.UnseenCategories,
		Cached:           resp.Cached,
		Latency:          latency,
	}
	if err := s.repo.RecordPrediction(ctx, entry); err != nil {
		logger.Log.WithError(err).Warn("failed to record prediction")
	}
}

func (s *Service) Model() (predictor.Info, error) {
	return s.predictor.Info()
}

func (s *Service) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if s.repo == nil {
		return []PredictionLog{}, nil
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) Ready() bool {
	return s.predictor.Ready()
}

// HandleModelEvent reloads the schema/model pair when a new bundle for this
// model is published.
func (s *Service) HandleModelEvent(ctx context.Context, event models.Event) error {
	if event.Type != models.EventModelPublished {
		return nil
	}
	if name, _ := event.Data["model_name"].(string); name != s.modelName {
		return nil
	}
	if err := s.predictor.Reload(ctx); err != nil {
		metrics.ModelReloadFailed()
		logger.Log.WithError(err).WithField("event_id", event.ID).Error("model reload failed, keeping current bundle")
		return nil
	}
	if info, err := s.predictor.Info(); err == nil {
		metrics.ModelLoaded(len(info.Columns))
	}
	return nil
}
