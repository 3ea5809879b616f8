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
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/observability/metrics"
	"github.com/clinicflow/waittime/pkg/training"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attrs, err := features.LoadAttributes(cfg.AttributesFile)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load attribute declarations")
	}

	store, err := artifact.Open(ctx, cfg.ArtifactBackend, cfg.TrainingArtifactDir, artifact.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Prefix:    cfg.MinioPrefix,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open artifact store")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	repo := training.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate training tables")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaModelTopic)
	trainer := training.NewTrainer(attrs, store, cfg.ModelName, training.TrainOptions{
		Ridge:     cfg.TrainingRidge,
		TestRatio: cfg.TrainingTestRatio,
	})
	svc := training.NewService(repo, trainer, producer, cfg.ModelName, cfg.DatasetPath, cfg.TrainingWorkers)

	var scheduler *training.Scheduler
	if cfg.RetrainSchedule != "" {
		scheduler, err = training.NewScheduler(svc, cfg.RetrainSchedule)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to configure retraining schedule")
		}
		scheduler.Start()
		logger.Log.WithField("schedule", cfg.RetrainSchedule).Info("Retraining schedule enabled")
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS(cfg.CORSOrigin), middleware.BodyLimit(cfg.MaxRequestBody))
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
	training.NewHTTPHandler(svc).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.TrainingPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.TrainingPort,
			"model":   cfg.ModelName,
			"backend": cfg.ArtifactBackend,
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := producer.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close producer")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}

	logger.Log.Info("Training Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
