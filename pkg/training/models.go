package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

type JobModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	ModelName    string            `gorm:"column:model_name"`
	DatasetPath  string            `gorm:"column:dataset_path"`
	Trigger      string            `gorm:"column:trigger_source"`
	Config       datatypes.JSONMap `gorm:"column:config"`
	Status       string            `gorm:"column:status"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ModelVersion string            `gorm:"column:model_version"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (JobModel) TableName() string {
	return "training_jobs"
}

type CreateJobInput struct {
	DatasetPath string
	Trigger     string
	Options     TrainOptions
}

// TrainOptions overrides the trainer defaults for one job. Zero values keep
// the defaults.
type TrainOptions struct {
	Ridge     float64 `json:"ridge,omitempty"`
	TestRatio float64 `json:"test_ratio,omitempty"`
}

func (o TrainOptions) toMap() map[string]interface{} {
	out := map[string]interface{}{}
	if o.Ridge > 0 {
		out["ridge"] = o.Ridge
	}
	if o.TestRatio > 0 {
		out["test_ratio"] = o.TestRatio
	}
	return out
}
