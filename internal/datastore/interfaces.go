// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"time"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the pipeline performs against the relational store.
type Interface interface {
	Open() error
	Close() error

	// Ingestion jobs (owned by the classification worker's write path)
	CreateIngestionJob(job *IngestionJob) error
	GetIngestionJob(jobID string) (*IngestionJob, error)
	TryMarkJobProcessing(jobID string) (bool, error)
	MarkJobCompleted(jobID string) error
	MarkJobFailed(jobID, reason string) error

	// Detections (owned by the classification worker's write path)
	CreateDetection(d *Detection) (*Detection, bool, error)
	GetDetection(detectionID string) (*Detection, error)
	GetRecentDetections(limit int) ([]Detection, error)

	// Vehicles and rules (read-only to the pipeline)
	GetVehicle(vehicleID string) (*Vehicle, error)
	SaveVehicle(v *Vehicle) error
	GetActiveRules(tenantID, label string) ([]AlertRule, error)
	SaveRule(r *AlertRule) error

	// Alerts (owned by the alert rule engine's write path)
	CreateAlertIfNoOpenDuplicate(alert *Alert, window time.Duration) (*Alert, bool, error)
	GetAlert(alertID string) (*Alert, error)
	SearchAlerts(filter AlertFilter) ([]Alert, int64, error)
	UpdateAlertStatus(alertID, newStatus, actor string) (*Alert, error)
	SetAlertNotified(alertID string, owner, service bool) error
	RetireAlert(alertID string) error

	// Notifications (owned by the dispatcher)
	CreateNotification(n *Notification) error
	UpdateNotificationStatus(notificationID, status, lastError string, attempts int) error
	GetNotificationsForAlert(alertID string) ([]Notification, error)

	// Read-only projections for the dashboard
	GetDashboardStats() (*DashboardStats, error)
}

// AlertFilter narrows alert searches for the exposed API surface.
type AlertFilter struct {
	Status    string
	AlertType string
	VehicleID string
	Severity  string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}
