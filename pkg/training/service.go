package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/clinicflow/waittime/pkg/observability/metrics"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrNoDataset      = errors.New("no dataset path configured")
	ErrInvalidOptions = errors.New("invalid training options")
)

// EventPublisher announces published bundles. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	repo        *Repository
	trainer     *Trainer
	publisher   EventPublisher
	modelName   string
	datasetPath string
	workerSem   chan struct{}
	jobTimeout  time.Duration
}

// NewService builds the job runner. publisher may be nil, in which case
// serving instances only see new bundles on restart.
func NewService(repo *Repository, trainer *Trainer, publisher EventPublisher, modelName, datasetPath string, maxWorkers int) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Service{
		repo:        repo,
		trainer:     trainer,
		publisher:   publisher,
		modelName:   modelName,
		datasetPath: datasetPath,
		workerSem:   make(chan struct{}, maxWorkers),
		jobTimeout:  30 * time.Minute,
	}
}

// Create records a queued job and runs it in the background.
func (s *Service) Create(ctx context.Context, input CreateJobInput) (models.TrainingJob, error) {
	if input.DatasetPath == "" {
		input.DatasetPath = s.datasetPath
	}
	if input.DatasetPath == "" {
		return models.TrainingJob{}, ErrNoDataset
	}
	if input.Trigger == "" {
		input.Trigger = TriggerManual
	}
	if input.Options.TestRatio < 0 || input.Options.TestRatio >= 1 {
		return models.TrainingJob{}, fmt.Errorf("%w: test_ratio must be in [0, 1), got %v", ErrInvalidOptions, input.Options.TestRatio)
	}
	if input.Options.Ridge < 0 {
		return models.TrainingJob{}, fmt.Errorf("%w: ridge must not be negative, got %v", ErrInvalidOptions, input.Options.Ridge)
	}

	now := time.Now().UTC()
	job := &JobModel{
		ID:          uuid.New(),
		ModelName:   s.modelName,
		DatasetPath: input.DatasetPath,
		Trigger:     input.Trigger,
		Config:      datatypes.JSONMap(input.Options.toMap()),
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return models.TrainingJob{}, err
	}
	go s.run(job.ID, input)
	return toDomain(job), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.TrainingJob, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.TrainingJob{}, err
	}
	return toDomain(job), nil
}

func (s *Service) List(ctx context.Context, limit int) ([]models.TrainingJob, error) {
	jobs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.TrainingJob, 0, len(jobs))
	for i := range jobs {
		results = append(results, toDomain(&jobs[i]))
	}
	return results, nil
}

func (s *Service) run(jobID uuid.UUID, input CreateJobInput) {
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	log := logger.WithFields(map[string]interface{}{
		"job_id":  jobID,
		"dataset": input.DatasetPath,
		"trigger": input.Trigger,
	})
	log.Info("training job started")

	if err := s.repo.MarkRunning(ctx, jobID, time.Now().UTC()); err != nil {
		log.WithError(err).Error("failed to mark job running")
	}

	result, err := s.train(ctx, jobID, input)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return
	}

	version := result.Bundle.Version.String()
	jobMetrics := map[string]interface{}{
		"train_samples": result.TrainSamples,
		"test_samples":  result.TestSamples,
		"skipped_rows":  result.SkippedRows,
		"feature_count": result.FeatureCount,
	}
	for name, value := range result.Bundle.Metrics {
		jobMetrics[name] = value
	}
	if err := s.repo.MarkCompleted(ctx, jobID, jobMetrics, version, result.Location); err != nil {
		log.WithError(err).Error("failed to mark job complete")
	}
	metrics.TrainingFinished(true)

	if s.publisher != nil {
		err := s.publisher.PublishEvent(ctx, models.EventModelPublished, "training-service", map[string]interface{}{
			"model_name": s.modelName,
			"version":    version,
			"location":   result.Location,
			"job_id":     jobID.String(),
		})
		if err != nil {
			log.WithError(err).Warn("failed to publish model event")
		}
	}

	log.WithFields(map[string]interface{}{
		"model_version": version,
		"features":      result.FeatureCount,
		"mae":           result.Bundle.Metrics["mae"],
	}).Info("training job completed")
}

func (s *Service) train(ctx context.Context, jobID uuid.UUID, input CreateJobInput) (Result, error) {
	file, err := os.Open(input.DatasetPath)
	if err != nil {
		return Result{}, fmt.Errorf("opening dataset: %w", err)
	}
	defer file.Close()

	dataset, err := LoadDataset(file)
	if err != nil {
		return Result{}, fmt.Errorf("loading dataset: %w", err)
	}
	return s.trainer.Train(ctx, jobID.String(), dataset, input.Options)
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, err error) {
	logger.Log.WithError(err).WithField("job_id", jobID).Error("training job failed")
	metrics.TrainingFinished(false)
	if updateErr := s.repo.MarkFailed(ctx, jobID, err.Error()); updateErr != nil {
		logger.Log.WithError(updateErr).Error("failed to mark job failed")
	}
}

func toDomain(job *JobModel) models.TrainingJob {
	result := models.TrainingJob{
		ID:           job.ID,
		ModelName:    job.ModelName,
		DatasetPath:  job.DatasetPath,
		Trigger:      job.Trigger,
		Status:       job.Status,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ModelVersion: job.ModelVersion,
		ArtifactPath: job.ArtifactPath,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Config != nil {
		result.Config = plainNumbers(job.Config)
	}
	if job.Metrics != nil {
		result.Metrics = plainNumbers(job.Metrics)
	}
	return result
}

// plainNumbers copies a JSON column read back from the database, turning the
// json.Number values the driver decodes into float64.
func plainNumbers(m datatypes.JSONMap) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		return plainNumbers(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = plainValue(t[i])
		}
		return out
	default:
		return v
	}
}
