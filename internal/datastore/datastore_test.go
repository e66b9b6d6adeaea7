package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestJob(vehicleID string) *IngestionJob {
	return &IngestionJob{
		JobID:      uuid.New().String(),
		VehicleID:  vehicleID,
		DeviceID:   "DEV-1",
		Locator:    vehicleID + "/1730000000.wav",
		Status:     JobStatusPending,
		SampleRate: 16000,
		Channels:   1,
		Duration:   5.0,
	}
}

func TestJobStateMachine(t *testing.T) {
	store := newTestStore(t)
	job := newTestJob("CAR-1")
	require.NoError(t, store.CreateIngestionJob(job))

	// Exactly one caller wins the pending -> processing transition.
	won, err := store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose the CAS")

	require.NoError(t, store.MarkJobCompleted(job.JobID))

	got, err := store.GetIngestionJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	require.NotNil(t, got.ProcessedAt, "terminal status must stamp ProcessedAt")
}

func TestJobNeverRegresses(t *testing.T) {
	store := newTestStore(t)
	job := newTestJob("CAR-1")
	require.NoError(t, store.CreateIngestionJob(job))

	won, err := store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, store.MarkJobFailed(job.JobID, "storage fetch error"))

	// A late completion attempt must not overwrite the terminal state.
	err = store.MarkJobCompleted(job.JobID)
	require.Error(t, err)

	got, err := store.GetIngestionJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Equal(t, "storage fetch error", got.FailureReason)
	require.NotNil(t, got.ProcessedAt)
}

func TestFailedJobCanBeReclaimed(t *testing.T) {
	store := newTestStore(t)
	job := newTestJob("CAR-1")
	require.NoError(t, store.CreateIngestionJob(job))

	won, err := store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, store.MarkJobFailed(job.JobID, "classifier unavailable"))

	// Queue redelivery after a transient failure retries the job.
	won, err = store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	assert.True(t, won)

	require.NoError(t, store.MarkJobCompleted(job.JobID))

	// Completed is terminal; no further claims.
	won, err = store.TryMarkJobProcessing(job.JobID)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetIngestionJob("no-such-job")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDetectionInsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	d := &Detection{
		DetectionID: uuid.New().String(),
		JobID:       "job-1",
		VehicleID:   "CAR-1",
		Label:       "siren",
		Confidence:  0.95,
		EventAt:     time.Now().UTC(),
		Status:      DetectionStatusCompleted,
	}
	stored, created, err := store.CreateDetection(d)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, d.DetectionID, stored.DetectionID)

	// Crash-recovery replay: same (job, label, window), fresh detection id.
	replay := &Detection{
		DetectionID: uuid.New().String(),
		JobID:       "job-1",
		VehicleID:   "CAR-1",
		Label:       "siren",
		Confidence:  0.95,
		EventAt:     time.Now().UTC(),
		Status:      DetectionStatusCompleted,
	}
	stored, created, err = store.CreateDetection(replay)
	require.NoError(t, err)
	assert.False(t, created, "replayed detection must be dropped by the natural key")
	assert.Equal(t, d.DetectionID, stored.DetectionID, "the stored row keeps its original detection id")
}

func newTestAlert(vehicleID, label string) *Alert {
	return &Alert{
		AlertID:     uuid.New().String(),
		VehicleID:   vehicleID,
		Label:       label,
		DetectionID: uuid.New().String(),
		AlertType:   "emergency",
		Severity:    "high",
		Priority:    "high",
		Confidence:  0.95,
		Message:     "test alert",
		Status:      AlertStatusNew,
	}
}

func TestAlertDedupSameVehicleLabel(t *testing.T) {
	store := newTestStore(t)
	window := time.Minute

	first := newTestAlert("CAR-2", "engine_fault")
	got, created, err := store.CreateAlertIfNoOpenDuplicate(first, window)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 1, got.SeenCount)

	second := newTestAlert("CAR-2", "engine_fault")
	got, created, err = store.CreateAlertIfNoOpenDuplicate(second, window)
	require.NoError(t, err)
	assert.False(t, created, "open alert for same (vehicle, label) must suppress")
	assert.Equal(t, first.AlertID, got.AlertID)
	assert.Equal(t, 2, got.SeenCount, "duplicate refreshes last-seen metadata")

	var count int64
	require.NoError(t, store.DB.Model(&Alert{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAlertDedupByDetectionID(t *testing.T) {
	store := newTestStore(t)

	alert := newTestAlert("CAR-3", "glass_break")
	_, created, err := store.CreateAlertIfNoOpenDuplicate(alert, time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	// Re-evaluation of the same detection, even with the window elapsed and
	// the alert closed, must not produce a second alert.
	_, err = store.UpdateAlertStatus(alert.AlertID, AlertStatusClosed, "op")
	require.NoError(t, err)

	retry := newTestAlert("CAR-3", "glass_break")
	retry.DetectionID = alert.DetectionID
	got, created, err := store.CreateAlertIfNoOpenDuplicate(retry, time.Nanosecond)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, alert.AlertID, got.AlertID)
}

func TestAlertSameDetectionReEvaluationDoesNotFold(t *testing.T) {
	store := newTestStore(t)

	first := newTestAlert("CAR-12", "siren")
	_, created, err := store.CreateAlertIfNoOpenDuplicate(first, time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	// A redriven job re-evaluates the same detection; the alert must come
	// back unchanged instead of counting itself as a duplicate.
	retry := newTestAlert("CAR-12", "siren")
	retry.DetectionID = first.DetectionID
	got, created, err := store.CreateAlertIfNoOpenDuplicate(retry, time.Minute)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.AlertID, got.AlertID)
	assert.Equal(t, 1, got.SeenCount, "re-evaluating the originating detection must not fold")
}

func TestAlertOpenGuardOutlivesDedupWindow(t *testing.T) {
	store := newTestStore(t)

	first := newTestAlert("CAR-13", "engine_fault")
	_, created, err := store.CreateAlertIfNoOpenDuplicate(first, time.Hour)
	require.NoError(t, err)
	require.True(t, created)

	// Age the alert past the window. The insert then hits the unique index
	// on (vehicle, label, open) and the duplicate folds in anyway: there is
	// never a second open alert for the same vehicle and label.
	err = store.DB.Model(&Alert{}).
		Where("alert_id = ?", first.AlertID).
		Update("created_at", time.Now().UTC().Add(-2*time.Hour)).Error
	require.NoError(t, err)

	got, created, err := store.CreateAlertIfNoOpenDuplicate(newTestAlert("CAR-13", "engine_fault"), time.Hour)
	require.NoError(t, err)
	assert.False(t, created, "an open alert suppresses even past the window")
	assert.Equal(t, first.AlertID, got.AlertID)
	assert.Equal(t, 2, got.SeenCount)
}

func TestAlertDedupDifferentLabelCreates(t *testing.T) {
	store := newTestStore(t)

	_, created, err := store.CreateAlertIfNoOpenDuplicate(newTestAlert("CAR-4", "siren"), time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = store.CreateAlertIfNoOpenDuplicate(newTestAlert("CAR-4", "horn"), time.Minute)
	require.NoError(t, err)
	assert.True(t, created, "different label is a different acoustic event")
}

func TestAlertClosedThenNewStartsFresh(t *testing.T) {
	store := newTestStore(t)

	first := newTestAlert("CAR-5", "brake_issue")
	_, created, err := store.CreateAlertIfNoOpenDuplicate(first, time.Hour)
	require.NoError(t, err)
	require.True(t, created)

	_, err = store.UpdateAlertStatus(first.AlertID, AlertStatusClosed, "op")
	require.NoError(t, err)

	second := newTestAlert("CAR-5", "brake_issue")
	_, created, err = store.CreateAlertIfNoOpenDuplicate(second, time.Hour)
	require.NoError(t, err)
	assert.True(t, created, "closed alerts do not suppress new ones")
}

func TestAlertStatusMonotonic(t *testing.T) {
	store := newTestStore(t)

	alert := newTestAlert("CAR-6", "collision")
	_, created, err := store.CreateAlertIfNoOpenDuplicate(alert, time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	updated, err := store.UpdateAlertStatus(alert.AlertID, AlertStatusAcknowledged, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, AlertStatusAcknowledged, updated.Status)
	assert.Equal(t, "operator-1", updated.AcknowledgedBy)
	require.NotNil(t, updated.AcknowledgedAt)

	// Escalating an acknowledged alert stays within the review stage.
	updated, err = store.UpdateAlertStatus(alert.AlertID, AlertStatusEscalated, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, AlertStatusEscalated, updated.Status)

	// Regression to new must be rejected.
	_, err = store.UpdateAlertStatus(alert.AlertID, AlertStatusNew, "operator-1")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	updated, err = store.UpdateAlertStatus(alert.AlertID, AlertStatusClosed, "operator-1")
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)

	// Acknowledge on closed is a conflict.
	_, err = store.UpdateAlertStatus(alert.AlertID, AlertStatusAcknowledged, "operator-2")
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSearchAlertsFilters(t *testing.T) {
	store := newTestStore(t)

	a := newTestAlert("CAR-7", "siren")
	_, _, err := store.CreateAlertIfNoOpenDuplicate(a, time.Minute)
	require.NoError(t, err)

	b := newTestAlert("CAR-8", "engine_fault")
	b.AlertType = "mechanical"
	b.Severity = "medium"
	_, _, err = store.CreateAlertIfNoOpenDuplicate(b, time.Minute)
	require.NoError(t, err)

	alerts, total, err := store.SearchAlerts(AlertFilter{VehicleID: "CAR-7"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CAR-7", alerts[0].VehicleID)

	alerts, total, err = store.SearchAlerts(AlertFilter{AlertType: "mechanical"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, b.AlertID, alerts[0].AlertID)

	_, total, err = store.SearchAlerts(AlertFilter{Status: AlertStatusNew})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestRetireAlert(t *testing.T) {
	store := newTestStore(t)

	alert := newTestAlert("CAR-9", "horn")
	_, _, err := store.CreateAlertIfNoOpenDuplicate(alert, time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.RetireAlert(alert.AlertID))

	_, err = store.GetAlert(alert.AlertID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "retired alerts disappear from reads")

	err = store.RetireAlert("no-such-alert")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	// Retiring releases the open-alert guard; a fresh alert can be raised.
	_, created, err := store.CreateAlertIfNoOpenDuplicate(newTestAlert("CAR-9", "horn"), time.Minute)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestActiveRuleOrdering(t *testing.T) {
	store := newTestStore(t)

	older := &AlertRule{TenantID: "t1", Label: "siren", Threshold: 0.80, Severity: "medium", AlertType: "emergency", Active: true}
	require.NoError(t, store.SaveRule(older))
	higher := &AlertRule{TenantID: "t1", Label: "siren", Threshold: 0.90, Severity: "high", AlertType: "emergency", Active: true}
	require.NoError(t, store.SaveRule(higher))
	inactive := &AlertRule{TenantID: "t1", Label: "siren", Threshold: 0.99, Severity: "high", AlertType: "emergency", Active: false}
	require.NoError(t, store.SaveRule(inactive))
	fleetWide := &AlertRule{TenantID: "", Label: "siren", Threshold: 0.95, Severity: "low", AlertType: "emergency", Active: true}
	require.NoError(t, store.SaveRule(fleetWide))

	rules, err := store.GetActiveRules("t1", "siren")
	require.NoError(t, err)
	require.Len(t, rules, 3, "inactive rules are excluded")
	assert.Equal(t, higher.ID, rules[0].ID, "tenant rule with highest threshold wins")
}

func TestNotificationLifecycle(t *testing.T) {
	store := newTestStore(t)

	n := &Notification{
		NotificationID: uuid.New().String(),
		AlertID:        "alert-1",
		Recipient:      "owner@example.com",
		Channel:        ChannelEmail,
	}
	require.NoError(t, store.CreateNotification(n))

	require.NoError(t, store.UpdateNotificationStatus(n.NotificationID, NotificationStatusSent, "", 2))

	got, err := store.GetNotificationsForAlert("alert-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, NotificationStatusSent, got[0].Status)
	assert.Equal(t, 2, got[0].Attempts)
	require.NotNil(t, got[0].SentAt)
}

func TestDashboardStats(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.CreateAlertIfNoOpenDuplicate(newTestAlert("CAR-10", "siren"), time.Minute)
	require.NoError(t, err)
	closed := newTestAlert("CAR-11", "horn")
	_, _, err = store.CreateAlertIfNoOpenDuplicate(closed, time.Minute)
	require.NoError(t, err)
	_, err = store.UpdateAlertStatus(closed.AlertID, AlertStatusClosed, "op")
	require.NoError(t, err)

	require.NoError(t, store.CreateIngestionJob(newTestJob("CAR-10")))

	stats, err := store.GetDashboardStats()
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ActiveAlerts)
	assert.EqualValues(t, 1, stats.AlertsByStatus[AlertStatusNew])
	assert.EqualValues(t, 1, stats.AlertsByStatus[AlertStatusClosed])
	assert.EqualValues(t, 1, stats.JobsByStatus[JobStatusPending])
}
