package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWritePrometheus(t *testing.T) {
	PredictionServed(true, 1)
	ModelLoaded(42)

	rec := httptest.NewRecorder()
	WritePrometheus(rec)

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, "# TYPE waittime_predictions_served_total counter")
	assert.Contains(t, body, "waittime_model_schema_columns 42")
}
