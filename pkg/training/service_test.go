package training

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clinicflow/waittime/pkg/artifact"
	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/clinicflow/waittime/pkg/features"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	args := m.Called(ctx, eventType, source, data)
	return args.Error(0)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

type fixture struct {
	svc       *Service
	store     *artifact.FileStore
	publisher *mockPublisher
	router    *mux.Router
	dataset   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "visits.csv")
	require.NoError(t, os.WriteFile(dataset, []byte(visitLog(40)), 0o644))

	store, err := artifact.NewFileStore(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)

	repo := NewRepository(testDB(t))
	require.NoError(t, repo.AutoMigrate())

	publisher := &mockPublisher{}
	trainer := NewTrainer(features.DefaultAttributes(), store, "wait-time", TrainOptions{})
	svc := NewService(repo, trainer, publisher, "wait-time", dataset, 2)

	router := mux.NewRouter()
	NewHTTPHandler(svc).Register(router.PathPrefix("/api/v1").Subrouter())
	return fixture{svc: svc, store: store, publisher: publisher, router: router, dataset: dataset}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f fixture) waitForStatus(t *testing.T, id uuid.UUID, status string) models.TrainingJob {
	t.Helper()
	var job models.TrainingJob
	require.Eventually(t, func() bool {
		var err error
		job, err = f.svc.Get(context.Background(), id)
		return err == nil && job.Status == status
	}, 5*time.Second, 20*time.Millisecond)
	return job
}

func TestServiceRunsJobAndPublishesBundle(t *testing.T) {
	f := newFixture(t)
	published := make(chan map[string]interface{}, 1)
	f.publisher.On("PublishEvent", mock.Anything, models.EventModelPublished, "training-service", mock.Anything).
		Run(func(args mock.Arguments) {
			published <- args.Get(3).(map[string]interface{})
		}).
		Return(nil).Once()

	job, err := f.svc.Create(context.Background(), CreateJobInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, TriggerManual, job.Trigger)
	assert.Equal(t, f.dataset, job.DatasetPath)

	done := f.waitForStatus(t, job.ID, StatusCompleted)
	assert.NotEmpty(t, done.ModelVersion)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Contains(t, done.Metrics, "mae")
	assert.Equal(t, float64(8), done.Metrics["feature_count"])

	select {
	case data := <-published:
		assert.Equal(t, "wait-time", data["model_name"])
		assert.Equal(t, done.ModelVersion, data["version"])
	case <-time.After(5 * time.Second):
		t.Fatal("model event was not published")
	}

	bundle, err := f.store.Load(context.Background(), "wait-time")
	require.NoError(t, err)
	assert.Equal(t, done.ModelVersion, bundle.Version.String())
	assert.Equal(t, job.ID.String(), bundle.JobID)
}

func TestToDomainDecodesStoredNumbers(t *testing.T) {
	stored := datatypes.JSONMap{
		"feature_count": json.Number("8"),
		"mae":           json.Number("1.5"),
		"columns":       []interface{}{json.Number("1"), "arrival_hour"},
	}
	job := &JobModel{
		ID:      uuid.New(),
		Status:  StatusCompleted,
		Config:  datatypes.JSONMap{"ridge": json.Number("0.01"), "split": map[string]interface{}{"seed": json.Number("42")}},
		Metrics: stored,
	}

	out := toDomain(job)
	assert.Equal(t, 0.01, out.Config["ridge"])
	assert.Equal(t, map[string]interface{}{"seed": float64(42)}, out.Config["split"])
	assert.Equal(t, float64(8), out.Metrics["feature_count"])
	assert.Equal(t, 1.5, out.Metrics["mae"])
	assert.Equal(t, []interface{}{float64(1), "arrival_hour"}, out.Metrics["columns"])
}

func TestServiceRecordsFailure(t *testing.T) {
	f := newFixture(t)

	job, err := f.svc.Create(context.Background(), CreateJobInput{DatasetPath: filepath.Join(t.TempDir(), "missing.csv")})
	require.NoError(t, err)

	failed := f.waitForStatus(t, job.ID, StatusFailed)
	assert.Contains(t, failed.ErrorMessage, "opening dataset")
	f.publisher.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	_, err = f.store.Load(context.Background(), "wait-time")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestServiceRejectsBadOptions(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateJobInput{Options: TrainOptions{TestRatio: 1.5}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = f.svc.Create(context.Background(), CreateJobInput{Options: TrainOptions{Ridge: -1}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	noDefault := NewService(f.svc.repo, f.svc.trainer, nil, "wait-time", "", 1)
	_, err = noDefault.Create(context.Background(), CreateJobInput{})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestTrainingJobEndpoints(t *testing.T) {
	f := newFixture(t)
	f.publisher.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := f.do(http.MethodPost, "/api/v1/training/jobs", `{"ridge":0.01,"test_ratio":0.25}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created models.TrainingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 0.01, created.Config["ridge"])
	f.waitForStatus(t, created.ID, StatusCompleted)

	rec = f.do(http.MethodGet, "/api/v1/training/jobs/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.TrainingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, StatusCompleted, fetched.Status)

	rec = f.do(http.MethodGet, "/api/v1/training/jobs?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []models.TrainingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/training/jobs/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/training/jobs/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/training/jobs?limit=-3", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/training/jobs", `{"test_ratio":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/training/jobs", `{`).Code)
}

func TestSchedulerQueuesRetraining(t *testing.T) {
	f := newFixture(t)
	f.publisher.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := NewScheduler(f.svc, "not a schedule")
	assert.Error(t, err)

	scheduler, err := NewScheduler(f.svc, "@every 1h")
	require.NoError(t, err)
	scheduler.Start()
	defer scheduler.Stop()
	assert.Len(t, scheduler.cron.Entries(), 1)

	scheduler.trigger()
	jobs, err := f.svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, TriggerSchedule, jobs[0].Trigger)
	f.waitForStatus(t, jobs[0].ID, StatusCompleted)
}
