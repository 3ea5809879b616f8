package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerHost     string
	ServingPort    string
	TrainingPort   string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	CORSOrigin     string

	// Gateway
	GatewayPort           string
	ServingBaseURL        string
	TrainingBaseURL       string
	GatewayRequestTimeout time.Duration
	GatewayRateLimit      int
	GatewayRateBurst      int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	KafkaModelTopic string

	// Model artifacts
	ModelName           string
	ArtifactBackend     string
	TrainingArtifactDir string
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioPrefix         string
	MinioUseSSL         bool

	// Features
	AttributesFile string

	// Training
	DatasetPath       string
	TrainingWorkers   int
	TrainingTestRatio float64
	TrainingRidge     float64
	RetrainSchedule   string

	// Serving
	PredictionCacheTTL time.Duration
	PredictionLogging  bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is applied first without overriding real
// environment variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ServingPort:    getEnv("SERVING_PORT", "8089"),
		TrainingPort:   getEnv("TRAINING_PORT", "8088"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 64*1024)),
		CORSOrigin:     getEnv("CORS_ALLOW_ORIGIN", "*"),

		GatewayPort:           getEnv("GATEWAY_PORT", "8080"),
		ServingBaseURL:        getEnv("SERVING_BASE_URL", "http://localhost:8089"),
		TrainingBaseURL:       getEnv("TRAINING_BASE_URL", "http://localhost:8088"),
		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		GatewayRateLimit:      getIntEnv("GATEWAY_RATE_LIMIT", 50),
		GatewayRateBurst:      getIntEnv("GATEWAY_RATE_BURST", 100),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "waittime"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "waittime"),
		PostgresDB:       getEnv("POSTGRES_DB", "waittime"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "waittime-serving"),
		KafkaModelTopic: getEnv("KAFKA_MODEL_TOPIC", "model-events"),

		ModelName:           getEnv("MODEL_NAME", "wait-time"),
		ArtifactBackend:     getEnv("ARTIFACT_BACKEND", "file"),
		TrainingArtifactDir: getEnv("TRAINING_ARTIFACT_DIR", "./artifacts"),
		MinioEndpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:         getEnv("MINIO_BUCKET", "models"),
		MinioPrefix:         getEnv("MINIO_PREFIX", ""),
		MinioUseSSL:         getBoolEnv("MINIO_USE_SSL", false),

		AttributesFile: getEnv("ATTRIBUTES_FILE", ""),

		DatasetPath:       getEnv("DATASET_PATH", "./data/hospital_data.csv"),
		TrainingWorkers:   getIntEnv("TRAINING_WORKERS", 1),
		TrainingTestRatio: getFloatEnv("TRAINING_TEST_RATIO", 0.2),
		TrainingRidge:     getFloatEnv("TRAINING_RIDGE", 1e-3),
		RetrainSchedule:   getEnv("RETRAIN_SCHEDULE", ""),

		PredictionCacheTTL: getDuration("PREDICTION_CACHE_TTL", 10*time.Minute),
		PredictionLogging:  getBoolEnv("PREDICTION_LOGGING", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
