package training

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("training job not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&JobModel{})
}

func (r *Repository) Create(ctx context.Context, job *JobModel) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repository) MarkRunning(ctx context.Context, jobID uuid.UUID, startedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":     StatusRunning,
		"started_at": startedAt,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *Repository) MarkCompleted(ctx context.Context, jobID uuid.UUID, metrics map[string]interface{}, modelVersion, artifactPath string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":        StatusCompleted,
		"metrics":       datatypes.JSONMap(metrics),
		"model_version": modelVersion,
		"artifact_path": artifactPath,
		"error_message": "",
		"completed_at":  now,
		"updated_at":    now,
	}).Error
}

func (r *Repository) MarkFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&JobModel{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":        StatusFailed,
		"error_message": errorMessage,
		"completed_at":  now,
		"updated_at":    now,
	}).Error
}

func (r *Repository) Get(ctx context.Context, jobID uuid.UUID) (*JobModel, error) {
	var job JobModel
	result := r.db.WithContext(ctx).First(&job, "id = ?", jobID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	return &job, result.Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]JobModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []JobModel
	result := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&jobs)
	return jobs, result.Error
}
