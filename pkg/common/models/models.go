package models

import (
	"time"

	"github.com/google/uuid"
)

// Event bus
const (
	EventModelPublished = "model.published"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Serving
type PredictionResponse struct {
	PredictedWaitTimeMinutes float64  `json:"predicted_wait_time_minutes"`
	ModelVersion             string   `json:"model_version"`
	UnseenCategories         []string `json:"unseen_categories,omitempty"`
	Cached                   bool     `json:"cached,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Model training
type TrainingJob struct {
	ID           uuid.UUID              `json:"id"`
	ModelName    string                 `json:"model_name"`
	DatasetPath  string                 `json:"dataset_path"`
	Trigger      string                 `json:"trigger"`
	Config       map[string]interface{} `json:"config,omitempty"`
	Status       string                 `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
	ModelVersion string                 `json:"model_version,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}
