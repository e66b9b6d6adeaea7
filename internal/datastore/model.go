// model.go this code defines the data model for the event pipeline
package datastore

import (
	"time"

	"gorm.io/gorm"
)

// Ingestion job statuses. Transitions only run pending -> processing ->
// {completed, failed} and never regress.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Detection statuses.
const (
	DetectionStatusPending    = "pending"
	DetectionStatusProcessing = "processing"
	DetectionStatusCompleted  = "completed"
	DetectionStatusFailed     = "failed"
)

// Alert statuses. Transitions are monotonic along
// new -> under_review -> acknowledged|escalated -> closed.
const (
	AlertStatusNew          = "new"
	AlertStatusUnderReview  = "under_review"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusEscalated    = "escalated"
	AlertStatusClosed       = "closed"
)

// Notification delivery statuses.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusRead    = "read"
)

// Notification channels.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelPush    = "push"
	ChannelWebhook = "webhook"
)

// alertStatusRank orders alert statuses for monotonic transition checks.
// Acknowledged and escalated share a rank, they are alternatives at the
// same review stage.
var alertStatusRank = map[string]int{
	AlertStatusNew:          0,
	AlertStatusUnderReview:  1,
	AlertStatusAcknowledged: 2,
	AlertStatusEscalated:    2,
	AlertStatusClosed:       3,
}

// IngestionJob represents one uploaded audio capture session. Rows are never
// deleted, they form the audit trail of everything a device sent.
type IngestionJob struct {
	ID            uint   `gorm:"primaryKey"`
	JobID         string `gorm:"uniqueIndex;size:64;not null"`
	VehicleID     string `gorm:"index:idx_jobs_vehicle;size:50;not null"`
	DeviceID      string `gorm:"size:50"`
	Locator       string // storage locator (bucket/key equivalent)
	Status        string `gorm:"index:idx_jobs_status;size:20;not null"`
	FileSize      int64
	Duration      float64 // seconds
	SampleRate    int
	Channels      int
	Checksum      string `gorm:"size:64"`
	FailureReason string `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:idx_jobs_created"`
	UpdatedAt     time.Time
	ProcessedAt   *time.Time // set iff status is completed or failed
}

// Detection represents one classifier output tied to a job. Immutable after
// creation. The (job, label, window) unique index makes crash-recovery
// re-inserts harmless.
type Detection struct {
	ID               uint   `gorm:"primaryKey"`
	DetectionID      string `gorm:"uniqueIndex;size:64;not null"`
	JobID            string `gorm:"index;size:64;uniqueIndex:idx_detections_job_label_window"`
	VehicleID        string `gorm:"index:idx_detections_vehicle;size:50;not null"`
	Label            string `gorm:"size:50;not null;uniqueIndex:idx_detections_job_label_window"`
	WindowStart      int    `gorm:"uniqueIndex:idx_detections_job_label_window"` // seconds into the capture
	Confidence       float64
	ModelVersion     string `gorm:"size:50"`
	Locator          string
	EventAt          time.Time `gorm:"index"`
	Status           string    `gorm:"size:20;not null"`
	ProcessingTimeMs int64
	Metadata         string `gorm:"type:text"` // free-form JSON, e.g. ranked predictions
	CreatedAt        time.Time
}

// AlertRule is tenant-scoped configuration mapping a sound label to alerting
// behavior. Read-only to the engine, edited by tenant operators.
type AlertRule struct {
	ID            uint   `gorm:"primaryKey"`
	TenantID      string `gorm:"index:idx_rules_tenant_label;size:50"`
	Label         string `gorm:"index:idx_rules_tenant_label;size:50;not null"`
	Threshold     float64
	Severity      string `gorm:"size:20;not null"`
	AlertType     string `gorm:"size:30;not null"`
	NotifyOwner   bool
	NotifyService bool
	Active        bool   `gorm:"index"`
	Message       string `gorm:"type:text"`
	Config        string `gorm:"type:text"` // free-form JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
}

// Alert is the deduplicated, severity-ranked consequence of a detection
// passing a rule. Originating fields (type, label, detection reference) are
// immutable once created; only status and review metadata change.
//
// OpenMarker holds openMarker while the alert is non-closed and NULL after,
// so the unique index on (vehicle_id, label, open_marker) enforces at most
// one open alert per vehicle and label at the database level.
type Alert struct {
	ID              uint    `gorm:"primaryKey"`
	AlertID         string  `gorm:"uniqueIndex;size:64;not null"`
	VehicleID       string  `gorm:"index:idx_alerts_vehicle_label;uniqueIndex:idx_alerts_one_open;size:50;not null"`
	Label           string  `gorm:"index:idx_alerts_vehicle_label;uniqueIndex:idx_alerts_one_open;size:50;not null"`
	OpenMarker      *string `gorm:"uniqueIndex:idx_alerts_one_open;size:8"`
	DetectionID     string  `gorm:"uniqueIndex;size:64;not null"`
	AlertType       string  `gorm:"size:30;not null"`
	Severity        string  `gorm:"index;size:20;not null"`
	Priority        string  `gorm:"size:20"`
	Confidence      float64
	Message         string `gorm:"type:text"`
	Status          string `gorm:"index;size:20;not null"`
	NotifiedOwner   bool
	NotifiedService bool
	AcknowledgedBy  string `gorm:"size:64"`
	AcknowledgedAt  *time.Time
	ResolvedAt      *time.Time
	LastSeenAt      time.Time // refreshed when a duplicate detection folds in
	SeenCount       int       // detections folded into this alert
	Latitude        float64
	Longitude       float64
	Metadata        string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"` // administrative soft retire
}

// IsOpen reports whether the alert still suppresses duplicates.
func (a *Alert) IsOpen() bool {
	return a.Status != AlertStatusClosed
}

// Notification is one delivery attempt record per (alert, channel).
type Notification struct {
	ID             uint   `gorm:"primaryKey"`
	NotificationID string `gorm:"uniqueIndex;size:64;not null"`
	AlertID        string `gorm:"index;size:64;not null"`
	Recipient      string `gorm:"size:128"`
	Channel        string `gorm:"size:16;not null"`
	Status         string `gorm:"size:16;not null"`
	Attempts       int
	LastError      string `gorm:"type:text"`
	SentAt         *time.Time
	ReadAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Vehicle resolves a vehicle to its owning tenant. The pipeline only reads
// this mapping; fleet CRUD is an external concern.
type Vehicle struct {
	ID        uint   `gorm:"primaryKey"`
	VehicleID string `gorm:"uniqueIndex;size:50;not null"`
	TenantID  string `gorm:"index;size:50;not null"`
	Status    string `gorm:"size:20"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
