package datastore

import (
	"time"

	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// CreateNotification inserts a pending delivery-attempt row.
func (ds *DataStore) CreateNotification(n *Notification) error {
	if n.Status == "" {
		n.Status = NotificationStatusPending
	}
	if err := ds.DB.Create(n).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", n.AlertID).
			Context("channel", n.Channel).
			Build()
	}
	return nil
}

// UpdateNotificationStatus records the outcome of a delivery attempt.
// attempts is ignored when zero so read-marking doesn't clobber it.
func (ds *DataStore) UpdateNotificationStatus(notificationID, status, lastError string, attempts int) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case NotificationStatusSent:
		updates["sent_at"] = &now
	case NotificationStatusRead:
		updates["read_at"] = &now
	}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	if attempts > 0 {
		updates["attempts"] = attempts
	}

	result := ds.DB.Model(&Notification{}).
		Where("notification_id = ?", notificationID).
		Updates(updates)
	if result.Error != nil {
		return errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("notification_id", notificationID).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("notification %s not found", notificationID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return nil
}

// GetNotificationsForAlert lists all delivery attempts for an alert.
func (ds *DataStore) GetNotificationsForAlert(alertID string) ([]Notification, error) {
	var notifications []Notification
	if err := ds.DB.Where("alert_id = ?", alertID).Order("created_at ASC").Find(&notifications).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", alertID).
			Build()
	}
	return notifications, nil
}
