package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clinicflow/waittime/pkg/features"
	"github.com/clinicflow/waittime/pkg/ml/linear"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle(t *testing.T) Bundle {
	t.Helper()
	schema, err := features.NewSchema([]string{
		"arrival_hour",
		"day_of_week=Monday",
		"doctor_type=General",
		"patient_type=New",
	})
	require.NoError(t, err)
	return Bundle{
		Version:    uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Attributes: features.DefaultAttributes(),
		Schema:     schema,
		Model: Model{
			Algorithm: AlgorithmLinearRegression,
			Weights:   linear.Weights{Bias: 10, Coefficients: []float64{1, 2, 3, 4}},
		},
		Metrics: map[string]float64{"mae": 1.5},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	bundle := sampleBundle(t)

	location, err := store.Save(context.Background(), "wait-time", bundle)
	require.NoError(t, err)
	assert.FileExists(t, location)

	loaded, err := store.Load(context.Background(), "wait-time")
	require.NoError(t, err)
	assert.Equal(t, bundle.Version, loaded.Version)
	assert.True(t, bundle.Schema.Equal(loaded.Schema))
	assert.Equal(t, bundle.Model.Weights, loaded.Model.Weights)
	assert.Equal(t, bundle.Attributes.Names(), loaded.Attributes.Names())
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	bundle := sampleBundle(t)
	_, err = store.Save(context.Background(), "wait-time", bundle)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"wait-time_latest.json",
		"wait-time_" + bundle.Version.String() + ".json",
	}, names)
}

func TestFileStoreMissingArtifact(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "absent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveRejectsWidthMismatch(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	bundle := sampleBundle(t)
	bundle.Model.Weights.Coefficients = []float64{1, 2, 3}
	_, err = store.Save(context.Background(), "wait-time", bundle)
	assert.True(t, errors.Is(err, features.ErrSchemaMismatch))
}

func TestLoadDetectsWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	doc := `{
  "version": "6f1c1d0e-4a4b-4a8e-9d3c-0c1b2a3d4e5f",
  "attributes": {"attributes": [
    {"name": "arrival_hour", "kind": "numeric"},
    {"name": "day_of_week", "kind": "categorical"}
  ]},
  "feature_columns": ["arrival_hour", "day_of_week=Monday", "day_of_week=Sunday"],
  "model": {"algorithm": "linear_regression", "weights": {"bias": 1, "coefficients": [0.5, 2]}}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wait-time_latest.json"), []byte(doc), 0o644))

	_, err = store.Load(context.Background(), "wait-time")
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrSchemaMismatch))
}

func TestLoadDetectsMalformedSchema(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	doc := `{"feature_columns": ["arrival_hour", "arrival_hour"], "model": {"algorithm": "linear_regression"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wait-time_latest.json"), []byte(doc), 0o644))

	_, err = store.Load(context.Background(), "wait-time")
	assert.True(t, errors.Is(err, features.ErrSchemaMismatch))
}

func TestValidateRejectsUndeclaredColumns(t *testing.T) {
	bundle := sampleBundle(t)
	schema, err := features.NewSchema([]string{"arrival_hour", "clinic=North", "doctor_type=General", "patient_type=New"})
	require.NoError(t, err)
	bundle.Schema = schema

	err = bundle.Validate()
	assert.True(t, errors.Is(err, features.ErrSchemaMismatch))
}

func TestValidateRequiresNumericColumns(t *testing.T) {
	bundle := sampleBundle(t)
	schema, err := features.NewSchema([]string{"day_of_week=Monday", "doctor_type=General", "patient_type=New"})
	require.NoError(t, err)
	bundle.Schema = schema
	bundle.Model.Weights.Coefficients = []float64{2, 3, 4}

	err = bundle.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, features.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "arrival_hour")
}

func TestValidateLeavesOtherAlgorithmsToFactory(t *testing.T) {
	bundle := sampleBundle(t)
	bundle.Model = Model{Algorithm: "gradient_boosting"}

	assert.NoError(t, bundle.Validate())

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "wait-time", bundle)
	require.NoError(t, err)
	loaded, err := store.Load(context.Background(), "wait-time")
	require.NoError(t, err)
	assert.Equal(t, "gradient_boosting", loaded.Model.Algorithm)
}

func TestOpenSelectsBackend(t *testing.T) {
	store, err := Open(context.Background(), BackendFile, t.TempDir(), MinioConfig{})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = Open(context.Background(), "s3fs", t.TempDir(), MinioConfig{})
	assert.Error(t, err)
}
