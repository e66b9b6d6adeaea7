package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deven-0012/Cloud-281/internal/alert"
	"github.com/Deven-0012/Cloud-281/internal/classifier"
	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/queue"
	"github.com/Deven-0012/Cloud-281/internal/storage"
)

// stubClassifier returns canned predictions or a canned error.
type stubClassifier struct {
	result *classifier.Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, []byte) (*classifier.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type testEnv struct {
	worker *Worker
	store  datastore.Interface
	model  *stubClassifier
}

func newTestEnv(t *testing.T, model *stubClassifier) *testEnv {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "worker.db")
	settings.Classifier.MinConfidence = 0.1
	settings.Engine.DedupWindow = 30 * time.Second
	settings.Engine.Rules = []conf.RuleConfig{
		{Label: "siren", Threshold: 0.90, Severity: "high", AlertType: "emergency", NotifyOwner: true, Active: true},
	}

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	audioDir := t.TempDir()
	writeTestWAV(t, filepath.Join(audioDir, "CAR-1", "capture.wav"))
	audioStore := storage.NewLocalStore(audioDir)

	engine := alert.NewEngine(store, &settings.Engine, nil, nil)
	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{BufferSize: 4, VisibilityTimeout: time.Minute, MaxReceiveCount: 3})
	t.Cleanup(func() { _ = q.Close() })

	return &testEnv{
		worker: New(store, q, audioStore, model, engine, settings, nil),
		store:  store,
		model:  model,
	}
}

func writeTestWAV(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           make([]int, 16000),
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func seedJob(t *testing.T, store datastore.Interface) *queue.Message {
	t.Helper()
	jobID := uuid.New().String()
	require.NoError(t, store.CreateIngestionJob(&datastore.IngestionJob{
		JobID:     jobID,
		VehicleID: "CAR-1",
		Locator:   "CAR-1/capture.wav",
		Status:    datastore.JobStatusPending,
	}))
	return &queue.Message{JobID: jobID, VehicleID: "CAR-1", Locator: "CAR-1/capture.wav"}
}

func TestProcessMessageHappyPath(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{result: &classifier.Result{
		ModelVersion: "v2",
		Predictions: []classifier.Prediction{
			{Label: "siren", Confidence: 0.95, WindowStart: 0, WindowEnd: 3},
			{Label: "horn", Confidence: 0.40, WindowStart: 3, WindowEnd: 6},
		},
	}})
	msg := seedJob(t, env.store)

	require.NoError(t, env.worker.ProcessMessage(context.Background(), msg))

	job, err := env.store.GetIngestionJob(msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusCompleted, job.Status)
	require.NotNil(t, job.ProcessedAt)

	detections, err := env.store.GetRecentDetections(10)
	require.NoError(t, err)
	assert.Len(t, detections, 2)

	// The siren detection crossed the rule threshold.
	alerts, total, err := env.store.SearchAlerts(datastore.AlertFilter{VehicleID: "CAR-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "siren", alerts[0].Label)
}

func TestProcessMessageClaimLostIsNoop(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{result: &classifier.Result{
		Predictions: []classifier.Prediction{{Label: "siren", Confidence: 0.95}},
	}})
	msg := seedJob(t, env.store)

	// Another consumer already claimed the job.
	won, err := env.store.TryMarkJobProcessing(msg.JobID)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, env.worker.ProcessMessage(context.Background(), msg))
	assert.Zero(t, env.model.calls, "a lost claim must not classify")

	detections, err := env.store.GetRecentDetections(10)
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestProcessMessageMissingAudioIsPermanent(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{})
	jobID := uuid.New().String()
	require.NoError(t, env.store.CreateIngestionJob(&datastore.IngestionJob{
		JobID:     jobID,
		VehicleID: "CAR-1",
		Locator:   "CAR-1/gone.wav",
		Status:    datastore.JobStatusPending,
	}))

	err := env.worker.ProcessMessage(context.Background(), &queue.Message{
		JobID: jobID, VehicleID: "CAR-1", Locator: "CAR-1/gone.wav",
	})
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))

	job, getErr := env.store.GetIngestionJob(jobID)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.FailureReason)
}

func TestProcessMessageTransientClassifierFailure(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{
		err: errors.Newf("model unavailable").Component("classifier").Category(errors.CategoryNetwork).Build(),
	})
	msg := seedJob(t, env.store)

	err := env.worker.ProcessMessage(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err), "network failures must requeue")

	job, getErr := env.store.GetIngestionJob(msg.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.JobStatusFailed, job.Status)

	// The redelivered message reclaims the failed job and succeeds.
	env.model.err = nil
	env.model.result = &classifier.Result{Predictions: []classifier.Prediction{{Label: "siren", Confidence: 0.95}}}
	require.NoError(t, env.worker.ProcessMessage(context.Background(), msg))

	job, getErr = env.store.GetIngestionJob(msg.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.JobStatusCompleted, job.Status)
}

// flakyAlertStore fails the first alert writes to exercise the redrive path.
type flakyAlertStore struct {
	datastore.Interface
	failures int
}

func (s *flakyAlertStore) CreateAlertIfNoOpenDuplicate(a *datastore.Alert, window time.Duration) (*datastore.Alert, bool, error) {
	if s.failures > 0 {
		s.failures--
		return nil, false, errors.Newf("disk full").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Retryable(true).
			Build()
	}
	return s.Interface.CreateAlertIfNoOpenDuplicate(a, window)
}

func TestProcessMessageAlertWriteFailureRequeues(t *testing.T) {
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "worker.db")
	settings.Classifier.MinConfidence = 0.1
	settings.Engine.DedupWindow = 30 * time.Second
	settings.Engine.Rules = []conf.RuleConfig{
		{Label: "siren", Threshold: 0.90, Severity: "high", AlertType: "emergency", NotifyOwner: true, Active: true},
	}

	base := datastore.New(settings)
	require.NoError(t, base.Open())
	t.Cleanup(func() { _ = base.Close() })
	store := &flakyAlertStore{Interface: base, failures: 1}

	audioDir := t.TempDir()
	writeTestWAV(t, filepath.Join(audioDir, "CAR-1", "capture.wav"))
	audioStore := storage.NewLocalStore(audioDir)

	model := &stubClassifier{result: &classifier.Result{
		Predictions: []classifier.Prediction{{Label: "siren", Confidence: 0.95}},
	}}
	engine := alert.NewEngine(store, &settings.Engine, nil, nil)
	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{BufferSize: 4, VisibilityTimeout: time.Minute, MaxReceiveCount: 3})
	t.Cleanup(func() { _ = q.Close() })
	w := New(store, q, audioStore, model, engine, settings, nil)

	msg := seedJob(t, store)

	// The detection is durable but the alert write failed: the job must not
	// complete, or the alert would be lost for good.
	err := w.ProcessMessage(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err), "alert write failures must requeue")

	job, getErr := store.GetIngestionJob(msg.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.JobStatusFailed, job.Status)

	// Redelivery reclaims the job; the detection replay folds into its
	// stored row and evaluation now raises the alert.
	require.NoError(t, w.ProcessMessage(context.Background(), msg))

	job, getErr = store.GetIngestionJob(msg.JobID)
	require.NoError(t, getErr)
	assert.Equal(t, datastore.JobStatusCompleted, job.Status)

	detections, err := store.GetRecentDetections(10)
	require.NoError(t, err)
	assert.Len(t, detections, 1, "the replayed detection folds into one row")

	alerts, total, err := store.SearchAlerts(datastore.AlertFilter{VehicleID: "CAR-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "siren", alerts[0].Label)
	assert.Equal(t, 1, alerts[0].SeenCount)
}

func TestProcessMessageFiltersBelowFloor(t *testing.T) {
	env := newTestEnv(t, &stubClassifier{result: &classifier.Result{
		Predictions: []classifier.Prediction{
			{Label: "siren", Confidence: 0.05},
			{Label: "horn", Confidence: 0.03},
		},
	}})
	msg := seedJob(t, env.store)

	require.NoError(t, env.worker.ProcessMessage(context.Background(), msg))

	detections, err := env.store.GetRecentDetections(10)
	require.NoError(t, err)
	assert.Empty(t, detections, "predictions below the floor are not persisted")

	job, err := env.store.GetIngestionJob(msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, datastore.JobStatusCompleted, job.Status)
}
