package datastore

import (
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateDetection inserts a detection row. The insert is idempotent on the
// (job, label, window) natural key so crash-recovery re-processing cannot
// produce duplicate rows. The returned detection is the canonical row: when
// the insert folds away, it is the previously stored one, keeping its
// original detection id for downstream dedup. Insert failures are transient;
// the caller redrives the job.
func (ds *DataStore) CreateDetection(d *Detection) (*Detection, bool, error) {
	if d.Status == "" {
		d.Status = DetectionStatusCompleted
	}
	result := ds.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(d)
	if result.Error != nil {
		return nil, false, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Retryable(true).
			Context("detection_id", d.DetectionID).
			Build()
	}
	if result.RowsAffected == 1 {
		return d, true, nil
	}

	var existing Detection
	err := ds.DB.
		Where("job_id = ? AND label = ? AND window_start = ?", d.JobID, d.Label, d.WindowStart).
		First(&existing).Error
	if err != nil {
		return nil, false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Retryable(true).
			Context("job_id", d.JobID).
			Context("label", d.Label).
			Build()
	}
	return &existing, false, nil
}

// GetDetection fetches a detection by its external identifier.
func (ds *DataStore) GetDetection(detectionID string) (*Detection, error) {
	var d Detection
	if err := ds.DB.Where("detection_id = ?", detectionID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("detection %s not found", detectionID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("detection_id", detectionID).
			Build()
	}
	return &d, nil
}

// GetRecentDetections returns the newest detections for read-only consumers.
func (ds *DataStore) GetRecentDetections(limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	var detections []Detection
	if err := ds.DB.Order("created_at DESC").Limit(limit).Find(&detections).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return detections, nil
}
