// Package observability exposes Prometheus metrics for the pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. Collectors live on a
// private registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	JobsProcessed     *prometheus.CounterVec // outcome: completed|failed|requeued
	JobDuration       prometheus.Histogram
	DetectionsCreated *prometheus.CounterVec // label
	AlertsCreated     *prometheus.CounterVec // severity, alert_type
	AlertsSuppressed  prometheus.Counter
	NotificationsSent *prometheus.CounterVec // channel, status
	QueueReceives     prometheus.Counter
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carwatch_jobs_processed_total",
			Help: "Ingestion jobs by final outcome.",
		}, []string{"outcome"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "carwatch_job_duration_seconds",
			Help:    "Wall time to process one ingestion job.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		DetectionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carwatch_detections_created_total",
			Help: "Detections persisted, by sound label.",
		}, []string{"label"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carwatch_alerts_created_total",
			Help: "New alerts created, by severity and type.",
		}, []string{"severity", "alert_type"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carwatch_alerts_suppressed_total",
			Help: "Detections folded into an existing open alert.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carwatch_notifications_total",
			Help: "Notification deliveries, by channel and status.",
		}, []string{"channel", "status"}),
		QueueReceives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carwatch_queue_receives_total",
			Help: "Messages received from the work queue, including redeliveries.",
		}),
	}

	registry.MustRegister(
		m.JobsProcessed,
		m.JobDuration,
		m.DetectionsCreated,
		m.AlertsCreated,
		m.AlertsSuppressed,
		m.NotificationsSent,
		m.QueueReceives,
	)

	return m
}

// Handler returns an HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
