package datastore

import (
	"time"

	"github.com/Deven-0012/Cloud-281/internal/errors"
	"gorm.io/gorm"
)

// CreateIngestionJob inserts a new job row in pending state.
func (ds *DataStore) CreateIngestionJob(job *IngestionJob) error {
	if job.Status == "" {
		job.Status = JobStatusPending
	}
	if err := ds.DB.Create(job).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("job_id", job.JobID).
			Build()
	}
	return nil
}

// GetIngestionJob fetches a job by its external identifier.
func (ds *DataStore) GetIngestionJob(jobID string) (*IngestionJob, error) {
	var job IngestionJob
	if err := ds.DB.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("ingestion job %s not found", jobID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("job_id", jobID).
			Build()
	}
	return &job, nil
}

// TryMarkJobProcessing attempts the atomic claim of a job. It is the
// concurrency boundary for at-least-once delivery: exactly one worker
// instance wins the conditional update, everyone else sees false and treats
// the message as already handled. Failed jobs can be reclaimed so a queue
// redelivery after a transient failure retries them; completed jobs cannot.
func (ds *DataStore) TryMarkJobProcessing(jobID string) (bool, error) {
	result := ds.DB.Model(&IngestionJob{}).
		Where("job_id = ? AND status IN ?", jobID, []string{JobStatusPending, JobStatusFailed}).
		Updates(map[string]any{
			"status":     JobStatusProcessing,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("job_id", jobID).
			Build()
	}
	return result.RowsAffected == 1, nil
}

// MarkJobCompleted finalizes a processing job and stamps ProcessedAt.
func (ds *DataStore) MarkJobCompleted(jobID string) error {
	return ds.finalizeJob(jobID, JobStatusCompleted, "")
}

// MarkJobFailed finalizes a processing job as failed and stamps ProcessedAt.
func (ds *DataStore) MarkJobFailed(jobID, reason string) error {
	return ds.finalizeJob(jobID, JobStatusFailed, reason)
}

// finalizeJob moves a job from processing to a terminal status. The status
// guard keeps terminal states from being overwritten by late writers.
func (ds *DataStore) finalizeJob(jobID, status, reason string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       status,
		"processed_at": &now,
		"updated_at":   now,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}

	result := ds.DB.Model(&IngestionJob{}).
		Where("job_id = ? AND status = ?", jobID, JobStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("job_id", jobID).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("job %s is not in processing state", jobID).
			Component("datastore").
			Category(errors.CategoryState).
			Context("target_status", status).
			Build()
	}
	return nil
}
