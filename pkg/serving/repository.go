package serving

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog is the persistence model for serving analytics.
type PredictionLog struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	ModelName        string            `gorm:"column:model_name;index" json:"model_name"`
	ModelVersion     string            `gorm:"column:model_version" json:"model_version"`
	RequestID        string            `gorm:"column:request_id" json:"request_id,omitempty"`
	Record           datatypes.JSONMap `gorm:"column:record" json:"record"`
	PredictedMinutes float64           `gorm:"column:predicted_minutes" json:"predicted_minutes"`
	UnseenCategories string            `gorm:"column:unseen_categories" json:"unseen_categories,omitempty"`
	Cached           bool              `gorm:"column:cached" json:"cached"`
	LatencyMs        float64           `gorm:"column:latency_ms" json:"latency_ms"`
	CreatedAt        time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository handles prediction logs queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

type PredictionEntry struct {
	ModelName        string
	ModelVersion     string
	RequestID        string
	Record           map[string]interface{}
	PredictedMinutes float64
	UnseenCategories []string
	Cached           bool
	Latency          time.Duration
}

func (r *Repository) RecordPrediction(ctx context.Context, entry PredictionEntry) error {
	log := PredictionLog{
		ID:               uuid.New(),
		ModelName:        entry.ModelName,
		ModelVersion:     entry.ModelVersion,
		RequestID:        entry.RequestID,
		Record:           datatypes.JSONMap(entry.Record),
		PredictedMinutes: entry.PredictedMinutes,
		UnseenCategories: strings.Join(entry.UnseenCategories, ","),
		Cached:           entry.Cached,
		LatencyMs:        float64(entry.Latency.Microseconds()) / 1000.0,
		CreatedAt:        time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
