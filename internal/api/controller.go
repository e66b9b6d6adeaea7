// Package api exposes the HTTP surface: alert review for the dashboard,
// audio ingest for devices, and operational endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/Deven-0012/Cloud-281/internal/observability"
	"github.com/Deven-0012/Cloud-281/internal/queue"
	"github.com/Deven-0012/Cloud-281/internal/storage"
)

// Controller wires the echo server to the pipeline's stores and queue.
type Controller struct {
	Echo     *echo.Echo
	store    datastore.Interface
	queue    queue.Queue
	audio    storage.AudioStore
	settings *conf.Settings
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates the HTTP controller and registers all routes. queue and audio
// may be nil when ingest endpoints are not served (read-only deployments).
func New(settings *conf.Settings, store datastore.Interface, q queue.Queue, audio storage.AudioStore, metrics *observability.Metrics) *Controller {
	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:     e,
		store:    store,
		queue:    q,
		audio:    audio,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.Health)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	v1 := c.Echo.Group("/api/v1")

	v1.GET("/alerts", c.ListAlerts)
	v1.GET("/alerts/:id", c.GetAlert)
	v1.POST("/alerts/:id/acknowledge", c.AcknowledgeAlert)
	v1.POST("/alerts/:id/status", c.UpdateAlertStatus)
	v1.GET("/alerts/:id/notifications", c.ListAlertNotifications)
	v1.DELETE("/alerts/:id", c.DeleteAlert)

	v1.GET("/detections/recent", c.RecentDetections)
	v1.GET("/jobs/:id", c.GetJob)
	v1.GET("/dashboard", c.Dashboard)

	if c.queue != nil && c.audio != nil {
		v1.POST("/ingest/audio", c.IngestAudio)
		v1.POST("/ingest/complete", c.IngestComplete)
	}
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (c *Controller) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Echo.Start(c.settings.API.Address)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Echo.Shutdown(shutdownCtx)
	}
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
