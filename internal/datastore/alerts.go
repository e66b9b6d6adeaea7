package datastore

import (
	"time"

	"github.com/Deven-0012/Cloud-281/internal/errors"
	"gorm.io/gorm"
)

// openMarker is the value every non-closed alert carries in OpenMarker. The
// unique index on (vehicle_id, label, open_marker) is the concurrency
// boundary for deduplication: two evaluations racing past the lookup cannot
// both insert.
const openMarker = "open"

// CreateAlertIfNoOpenDuplicate performs the atomic "check open alert, else
// insert" that backs the dedup policy: one open alert per (vehicle, label),
// and never a second alert for the same detection. When a duplicate is found
// its last-seen metadata is refreshed instead and the existing alert is
// returned with created=false. Re-evaluating the originating detection
// returns the existing alert untouched, so retries never inflate SeenCount.
//
// The check-and-insert runs in a transaction backstopped by the unique
// indexes on detection_id and (vehicle_id, label, open_marker). An insert
// that loses a race on either index is retried once in a fresh transaction
// that can see the winning row; the retry drops the window bound so an open
// alert older than the window still absorbs the duplicate instead of
// violating the one-open-alert guarantee. Failures are reported as
// transient so the caller can redrive the detection.
func (ds *DataStore) CreateAlertIfNoOpenDuplicate(alert *Alert, window time.Duration) (*Alert, bool, error) {
	var (
		result  Alert
		created bool
		err     error
	)

	for attempt := 0; attempt < 2; attempt++ {
		boundByWindow := attempt == 0
		created = false

		err = ds.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()

			cond := "detection_id = ? OR (vehicle_id = ? AND label = ? AND status <> ?"
			args := []any{alert.DetectionID, alert.VehicleID, alert.Label, AlertStatusClosed}
			if boundByWindow {
				cond += " AND created_at > ?"
				args = append(args, now.Add(-window))
			}
			cond += ")"

			var existing Alert
			ferr := tx.Where(cond, args...).Order("created_at DESC").First(&existing).Error

			switch {
			case ferr == nil:
				if existing.DetectionID == alert.DetectionID {
					// Same originating detection: already handled.
					result = existing
					return nil
				}
				// Fold this detection into the open alert.
				updates := map[string]any{
					"last_seen_at": now,
					"seen_count":   gorm.Expr("seen_count + 1"),
					"updated_at":   now,
				}
				if uerr := tx.Model(&Alert{}).Where("id = ?", existing.ID).Updates(updates).Error; uerr != nil {
					return uerr
				}
				existing.LastSeenAt = now
				existing.SeenCount++
				result = existing
				return nil

			case errors.Is(ferr, gorm.ErrRecordNotFound):
				if alert.Status == "" {
					alert.Status = AlertStatusNew
				}
				marker := openMarker
				alert.OpenMarker = &marker
				alert.LastSeenAt = now
				alert.SeenCount = 1
				if cerr := tx.Create(alert).Error; cerr != nil {
					return cerr
				}
				result = *alert
				created = true
				return nil

			default:
				return ferr
			}
		})
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Retryable(true).
			Context("vehicle_id", alert.VehicleID).
			Context("label", alert.Label).
			Build()
	}

	return &result, created, nil
}

// GetAlert fetches an alert by its external identifier.
func (ds *DataStore) GetAlert(alertID string) (*Alert, error) {
	var alert Alert
	if err := ds.DB.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("alert %s not found", alertID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", alertID).
			Build()
	}
	return &alert, nil
}

// SearchAlerts returns alerts matching the filter, newest first, plus the
// total match count for pagination.
func (ds *DataStore) SearchAlerts(filter AlertFilter) ([]Alert, int64, error) {
	query := ds.DB.Model(&Alert{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}
	if filter.VehicleID != "" {
		query = query.Where("vehicle_id = ?", filter.VehicleID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	var alerts []Alert
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&alerts).Error
	if err != nil {
		return nil, 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return alerts, total, nil
}

// UpdateAlertStatus applies an operator status change, enforcing monotonic
// transitions. Moving to an earlier stage, or touching a closed alert,
// returns a conflict error. Setting the current status again is a no-op.
func (ds *DataStore) UpdateAlertStatus(alertID, newStatus, actor string) (*Alert, error) {
	newRank, ok := alertStatusRank[newStatus]
	if !ok {
		return nil, errors.Newf("unknown alert status %q", newStatus).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	var updated Alert
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		var alert Alert
		if err := tx.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
			return err
		}

		if alert.Status == newStatus {
			updated = alert
			return nil
		}

		oldRank := alertStatusRank[alert.Status]
		sameStage := newRank == oldRank
		if newRank < oldRank || alert.Status == AlertStatusClosed || (sameStage && newRank != 2) {
			return errors.Newf("alert %s cannot move from %s to %s", alertID, alert.Status, newStatus).
				Component("datastore").
				Category(errors.CategoryConflict).
				Build()
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": newStatus, "updated_at": now}
		switch newStatus {
		case AlertStatusAcknowledged:
			updates["acknowledged_by"] = actor
			updates["acknowledged_at"] = &now
		case AlertStatusClosed:
			updates["resolved_at"] = &now
			// Closing releases the one-open-alert guard.
			updates["open_marker"] = nil
		}

		if err := tx.Model(&Alert{}).Where("id = ?", alert.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", alert.ID).First(&updated).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("alert %s not found", alertID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", alertID).
			Build()
	}
	return &updated, nil
}

// SetAlertNotified records which notification paths were taken for an alert.
func (ds *DataStore) SetAlertNotified(alertID string, owner, service bool) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if owner {
		updates["notified_owner"] = true
	}
	if service {
		updates["notified_service"] = true
	}
	if err := ds.DB.Model(&Alert{}).Where("alert_id = ?", alertID).Updates(updates).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", alertID).
			Build()
	}
	return nil
}

// RetireAlert soft-deletes an alert. This is the administrative purge path,
// the pipeline itself never deletes alerts. The open-alert guard is released
// first; a soft-deleted row would otherwise keep blocking new alerts for the
// same (vehicle, label).
func (ds *DataStore) RetireAlert(alertID string) error {
	var affected int64
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if uerr := tx.Model(&Alert{}).Where("alert_id = ?", alertID).Update("open_marker", nil).Error; uerr != nil {
			return uerr
		}
		result := tx.Where("alert_id = ?", alertID).Delete(&Alert{})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", alertID).
			Build()
	}
	if affected == 0 {
		return errors.Newf("alert %s not found", alertID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}
