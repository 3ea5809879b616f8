package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/common/config"
	"github.com/clinicflow/waittime/pkg/common/database"
	"github.com/clinicflow/waittime/pkg/common/kafka"
	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/middleware"
	"github.com/clinicflow/waittime/pkg/observability/metrics"
	"github.com/clinicflow/waittime/pkg/serving"
	"github.com/clinicflow/waittime/pkg/serving/predictor"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := artifact.Open(ctx, cfg.ArtifactBackend, cfg.TrainingArtifactDir, minioConfig(cfg))
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open artifact store")
	}

	// A missing or incompatible schema/model pair must stop the process
	// before it accepts traffic.
	p := predictor.NewPredictor(store, cfg.ModelName)
	if err := p.Load(ctx); err != nil {
		logger.Log.WithError(err).Fatal("Failed to load model bundle")
	}
	if info, err := p.Info(); err == nil {
		metrics.ModelLoaded(len(info.Columns))
	}

	var repo *serving.Repository
	if cfg.PredictionLogging {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to connect to database")
		}
		repo = serving.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log table")
		}
	}

	var cache serving.PredictionCache
	if cfg.PredictionCacheTTL > 0 {
		cache = serving.NewRedisCache(database.GetRedis(cfg), "waittime:prediction", cfg.PredictionCacheTTL)
	}

	svc := serving.NewService(p, cfg.ModelName, cache, repo)

	// Every replica reloads, so each needs its own consumer group.
	hostname, _ := os.Hostname()
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaModelTopic, fmt.Sprintf("%s-%s", cfg.KafkaGroupID, hostname))
	go func() {
		if err := consumer.Consume(ctx, svc.HandleModelEvent); err != nil {
			logger.Log.WithError(err).Error("Model event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS(cfg.CORSOrigin), middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", readyCheck(svc)).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
	serving.NewHTTPHandler(svc).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServingPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServingPort,
			"model": cfg.ModelName,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close model event consumer")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close Redis")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}

	logger.Log.Info("Serving Service stopped")
}

func minioConfig(cfg *config.Config) artifact.MinioConfig {
	return artifact.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Prefix:    cfg.MinioPrefix,
		UseSSL:    cfg.MinioUseSSL,
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func readyCheck(svc *serving.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
