package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "wait-time", cfg.ModelName)
	assert.Equal(t, "file", cfg.ArtifactBackend)
	assert.Equal(t, 0.2, cfg.TrainingTestRatio)
	assert.Equal(t, 10*time.Minute, cfg.PredictionCacheTTL)
	assert.True(t, cfg.PredictionLogging)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("TRAINING_WORKERS", "3")
	t.Setenv("TRAINING_RIDGE", "0.5")
	t.Setenv("PREDICTION_CACHE_TTL", "30s")
	t.Setenv("TRAINING_TEST_RATIO", "not-a-number")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 3, cfg.TrainingWorkers)
	assert.Equal(t, 0.5, cfg.TrainingRidge)
	assert.Equal(t, 30*time.Second, cfg.PredictionCacheTTL)
	assert.Equal(t, 0.2, cfg.TrainingTestRatio)
}
