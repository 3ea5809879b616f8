package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicflow/waittime/pkg/common/config"
	"github.com/clinicflow/waittime/pkg/common/logger"
	"github.com/clinicflow/waittime/pkg/common/middleware"
	"github.com/clinicflow/waittime/pkg/gateway"
	"github.com/clinicflow/waittime/pkg/gateway/httpclient"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	client := httpclient.New(cfg.GatewayRequestTimeout)
	servingProxy := gateway.NewProxy("serving", cfg.ServingBaseURL, client, cfg.GatewayRequestTimeout)
	trainingProxy := gateway.NewProxy("training", cfg.TrainingBaseURL, client, cfg.GatewayRequestTimeout)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS(cfg.CORSOrigin))
	router.Use(middleware.RateLimit(cfg.GatewayRateLimit, cfg.GatewayRateBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	gateway.RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(), servingProxy, trainingProxy)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.GatewayPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.GatewayPort,
			"serving":  cfg.ServingBaseURL,
			"training": cfg.TrainingBaseURL,
		}).Info("API Gateway started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down API Gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("API Gateway stopped")
}
