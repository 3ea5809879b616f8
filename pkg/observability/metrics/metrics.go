package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	predictionsServed   atomic.Int64
	predictionsRejected atomic.Int64
	predictionsFailed   atomic.Int64
	unseenCategories    atomic.Int64
	cacheHits           atomic.Int64
	modelReloads        atomic.Int64
	modelReloadFailures atomic.Int64
	schemaWidth         atomic.Int64
	trainingCompleted   atomic.Int64
	trainingFailed      atomic.Int64
)

func PredictionServed(cached bool, unseen int) {
	predictionsServed.Add(1)
	if cached {
		cacheHits.Add(1)
	}
	if unseen > 0 {
		unseenCategories.Add(int64(unseen))
	}
}

func PredictionRejected() { predictionsRejected.Add(1) }

func PredictionFailed() { predictionsFailed.Add(1) }

func ModelLoaded(width int) {
	modelReloads.Add(1)
	schemaWidth.Store(int64(width))
}

func ModelReloadFailed() { modelReloadFailures.Add(1) }

func TrainingFinished(ok bool) {
	if ok {
		trainingCompleted.Add(1)
		return
	}
	trainingFailed.Add(1)
}

type sample struct {
	name  string
	help  string
	kind  string
	value int64
}

func snapshot() []sample {
	return []sample{
		{"waittime_predictions_served_total", "Predictions returned to callers.", "counter", predictionsServed.Load()},
		{"waittime_predictions_rejected_total", "Prediction requests rejected for malformed records.", "counter", predictionsRejected.Load()},
		{"waittime_predictions_failed_total", "Prediction requests that failed inside the model.", "counter", predictionsFailed.Load()},
		{"waittime_unseen_categories_total", "Category values absent from the loaded feature schema.", "counter", unseenCategories.Load()},
		{"waittime_prediction_cache_hits_total", "Predictions answered from the cache.", "counter", cacheHits.Load()},
		{"waittime_model_loads_total", "Schema/model pairs loaded into the predictor.", "counter", modelReloads.Load()},
		{"waittime_model_reload_failures_total", "Reload attempts that kept the previous pair.", "counter", modelReloadFailures.Load()},
		{"waittime_model_schema_columns", "Column count of the loaded feature schema.", "gauge", schemaWidth.Load()},
		{"waittime_training_jobs_completed_total", "Training jobs that produced a bundle.", "counter", trainingCompleted.Load()},
		{"waittime_training_jobs_failed_total", "Training jobs that failed.", "counter", trainingFailed.Load()},
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, s := range snapshot() {
		fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", s.name, s.kind)
		fmt.Fprintf(w, "%s %d\n", s.name, s.value)
	}
}
