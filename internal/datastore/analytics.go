package datastore

import (
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// DashboardStats is a read-only projection over alerts and ingestion jobs for
// the dashboard. Not part of the pipeline's write path.
type DashboardStats struct {
	ActiveAlerts     int64            `json:"activeAlerts"`
	AlertsByStatus   map[string]int64 `json:"alertsByStatus"`
	AlertsBySeverity map[string]int64 `json:"alertsBySeverity"`
	AlertsByType     map[string]int64 `json:"alertsByType"`
	JobsByStatus     map[string]int64 `json:"jobsByStatus"`
}

type groupCount struct {
	Key   string
	Total int64
}

// GetDashboardStats aggregates alert and job counts for the dashboard.
func (ds *DataStore) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{
		AlertsByStatus:   make(map[string]int64),
		AlertsBySeverity: make(map[string]int64),
		AlertsByType:     make(map[string]int64),
		JobsByStatus:     make(map[string]int64),
	}

	queries := []struct {
		model  any
		column string
		into   map[string]int64
	}{
		{&Alert{}, "status", stats.AlertsByStatus},
		{&Alert{}, "severity", stats.AlertsBySeverity},
		{&Alert{}, "alert_type", stats.AlertsByType},
		{&IngestionJob{}, "status", stats.JobsByStatus},
	}

	for _, q := range queries {
		var counts []groupCount
		err := ds.DB.Model(q.model).
			Select(q.column + " AS key, COUNT(*) AS total").
			Group(q.column).
			Scan(&counts).Error
		if err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("column", q.column).
				Build()
		}
		for _, c := range counts {
			q.into[c.Key] = c.Total
		}
	}

	for status, count := range stats.AlertsByStatus {
		if status != AlertStatusClosed {
			stats.ActiveAlerts += count
		}
	}

	return stats, nil
}
