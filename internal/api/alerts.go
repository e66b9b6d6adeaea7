package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// alertListResponse wraps a page of alerts with the total match count.
type alertListResponse struct {
	Alerts []datastore.Alert `json:"alerts"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListAlerts returns alerts matching the query filters, newest first.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := datastore.AlertFilter{
		Status:    ctx.QueryParam("status"),
		AlertType: ctx.QueryParam("type"),
		VehicleID: ctx.QueryParam("vehicle_id"),
		Severity:  ctx.QueryParam("severity"),
	}

	if v := ctx.QueryParam("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC3339")
		}
		filter.Since = since
	}
	if v := ctx.QueryParam("until"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "until must be RFC3339")
		}
		filter.Until = until
	}

	filter.Limit = intParam(ctx, "limit", 50)
	filter.Offset = intParam(ctx, "offset", 0)
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	alerts, total, err := c.store.SearchAlerts(filter)
	if err != nil {
		return c.serverError(ctx, "failed to search alerts", err)
	}
	return ctx.JSON(http.StatusOK, alertListResponse{
		Alerts: alerts,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetAlert returns one alert by its external identifier.
func (c *Controller) GetAlert(ctx echo.Context) error {
	alert, err := c.store.GetAlert(ctx.Param("id"))
	if err != nil {
		if errors.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return c.serverError(ctx, "failed to fetch alert", err)
	}
	return ctx.JSON(http.StatusOK, alert)
}

type acknowledgeRequest struct {
	Actor string `json:"actor"`
}

// AcknowledgeAlert moves an alert to acknowledged. Closed alerts reject the
// transition with 409, the review pipeline is strictly monotonic.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	var req acknowledgeRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Actor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actor is required")
	}

	return c.transitionAlert(ctx, ctx.Param("id"), datastore.AlertStatusAcknowledged, req.Actor)
}

type statusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// UpdateAlertStatus applies an arbitrary monotonic status transition
// (under_review, escalated, closed).
func (c *Controller) UpdateAlertStatus(ctx echo.Context) error {
	var req statusRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}

	return c.transitionAlert(ctx, ctx.Param("id"), req.Status, req.Actor)
}

func (c *Controller) transitionAlert(ctx echo.Context, alertID, status, actor string) error {
	alert, err := c.store.UpdateAlertStatus(alertID, status, actor)
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		case errors.IsConflict(err):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.IsValidation(err):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return c.serverError(ctx, "failed to update alert status", err)
		}
	}
	return ctx.JSON(http.StatusOK, alert)
}

// ListAlertNotifications returns the delivery attempts for an alert.
func (c *Controller) ListAlertNotifications(ctx echo.Context) error {
	notifications, err := c.store.GetNotificationsForAlert(ctx.Param("id"))
	if err != nil {
		return c.serverError(ctx, "failed to fetch notifications", err)
	}
	return ctx.JSON(http.StatusOK, notifications)
}

// DeleteAlert retires an alert from the dashboard. The row is soft deleted,
// the audit trail stays intact.
func (c *Controller) DeleteAlert(ctx echo.Context) error {
	if err := c.store.RetireAlert(ctx.Param("id")); err != nil {
		if errors.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return c.serverError(ctx, "failed to retire alert", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RecentDetections returns the latest detections for the dashboard feed.
func (c *Controller) RecentDetections(ctx echo.Context) error {
	limit := intParam(ctx, "limit", 25)
	if limit > 200 {
		limit = 200
	}
	detections, err := c.store.GetRecentDetections(limit)
	if err != nil {
		return c.serverError(ctx, "failed to fetch detections", err)
	}
	return ctx.JSON(http.StatusOK, detections)
}

// GetJob returns one ingestion job by its external identifier.
func (c *Controller) GetJob(ctx echo.Context) error {
	job, err := c.store.GetIngestionJob(ctx.Param("id"))
	if err != nil {
		if errors.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return c.serverError(ctx, "failed to fetch job", err)
	}
	return ctx.JSON(http.StatusOK, job)
}

// Dashboard returns aggregate alert and job counts.
func (c *Controller) Dashboard(ctx echo.Context) error {
	stats, err := c.store.GetDashboardStats()
	if err != nil {
		return c.serverError(ctx, "failed to compute dashboard stats", err)
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (c *Controller) serverError(ctx echo.Context, msg string, err error) error {
	c.logger.Error(msg, "path", ctx.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

func intParam(ctx echo.Context, name string, fallback int) int {
	v := ctx.QueryParam(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
