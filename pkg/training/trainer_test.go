package training

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/serving/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// visitLog renders a CSV whose waits follow an exact linear rule:
// 5 + hour + 10 for Cardiology + 4 for New patients.
func visitLog(rows int) string {
	var b strings.Builder
	b.WriteString("Date,Entry Time,Post-Consultation Time,Doctor Type,Patient Type\n")
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	doctors := []string{"General", "Cardiology"}
	patients := []string{"New", "Returning"}
	for i := 0; i < rows; i++ {
		hour := 8 + i%9
		doctor := doctors[i%2]
		patient := patients[(i/2)%2]
		wait := 5 + hour
		if doctor == "Cardiology" {
			wait += 10
		}
		if patient == "New" {
			wait += 4
		}
		fmt.Fprintf(&b, "%s,%02d:00,%02d:%02d,%s,%s\n", dates[i%3], hour, hour+wait/60, wait%60, doctor, patient)
	}
	return b.String()
}

func loadVisitLog(t *testing.T, rows int) Dataset {
	t.Helper()
	ds, err := LoadDataset(strings.NewReader(visitLog(rows)))
	require.NoError(t, err)
	return ds
}

func TestTrainerPublishesConsistentBundle(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	trainer := NewTrainer(features.DefaultAttributes(), store, "wait-time", TrainOptions{Ridge: 1e-6, TestRatio: 0.2})

	result, err := trainer.Train(context.Background(), "job-1", loadVisitLog(t, 60), TrainOptions{})
	require.NoError(t, err)

	assert.Equal(t, 48, result.TrainSamples)
	assert.Equal(t, 12, result.TestSamples)
	assert.Equal(t, []string{
		"arrival_hour",
		"day_of_week=Monday",
		"day_of_week=Tuesday",
		"day_of_week=Wednesday",
		"doctor_type=Cardiology",
		"doctor_type=General",
		"patient_type=New",
		"patient_type=Returning",
	}, result.Bundle.Schema.Columns())
	assert.Equal(t, result.Bundle.Schema.Len(), result.Bundle.Model.InputWidth())
	assert.Less(t, result.Bundle.Metrics["mae"], 0.1)
	assert.Equal(t, "job-1", result.Bundle.JobID)

	loaded, err := store.Load(context.Background(), "wait-time")
	require.NoError(t, err)
	assert.Equal(t, result.Bundle.Version, loaded.Version)
	assert.True(t, result.Bundle.Schema.Equal(loaded.Schema))
}

func TestTrainedBundleServesPredictions(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	trainer := NewTrainer(features.DefaultAttributes(), store, "wait-time", TrainOptions{Ridge: 1e-6})
	_, err = trainer.Train(context.Background(), "job-2", loadVisitLog(t, 60), TrainOptions{})
	require.NoError(t, err)

	p := predictor.NewPredictor(store, "wait-time")
	require.NoError(t, p.Load(context.Background()))

	pred, err := p.Predict(features.Record{
		features.AttrArrivalHour: 10,
		features.AttrDayOfWeek:   "Tuesday",
		features.AttrDoctorType:  "Cardiology",
		features.AttrPatientType: "New",
	})
	require.NoError(t, err)
	assert.InDelta(t, 29.0, pred.Minutes, 0.1)

	// Sunday never appears in the visit log.
	pred, err = p.Predict(features.Record{
		features.AttrArrivalHour: 10,
		features.AttrDayOfWeek:   "Sunday",
		features.AttrDoctorType:  "General",
		features.AttrPatientType: "Returning",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"day_of_week=Sunday"}, pred.UnseenCategory)
}

func TestTrainerWithoutHoldout(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	trainer := NewTrainer(features.DefaultAttributes(), store, "wait-time", TrainOptions{})

	result, err := trainer.Train(context.Background(), "job-3", loadVisitLog(t, 3), TrainOptions{TestRatio: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TestSamples)
	assert.Contains(t, result.Bundle.Metrics, "rmse")
}

func TestTrainerSurfacesStoreErrors(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))

	trainer := NewTrainer(features.DefaultAttributes(), store, "wait-time", TrainOptions{})
	_, err = trainer.Train(context.Background(), "job-4", loadVisitLog(t, 10), TrainOptions{})
	assert.Error(t, err)
}
