package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Deven-0012/Cloud-281/internal/audiofile"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/queue"
)

// maxUploadBytes caps direct audio uploads. Devices record short clips;
// anything bigger is a misbehaving client.
const maxUploadBytes = 32 << 20

type ingestResponse struct {
	JobID   string `json:"job_id"`
	Locator string `json:"locator"`
	Status  string `json:"status"`
}

// IngestAudio accepts a multipart WAV upload from a device, stores it, and
// enqueues a classification job.
func (c *Controller) IngestAudio(ctx echo.Context) error {
	vehicleID := ctx.FormValue("vehicle_id")
	if vehicleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vehicle_id is required")
	}
	deviceID := ctx.FormValue("device_id")

	fileHeader, err := ctx.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if fileHeader.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio file too large")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.serverError(ctx, "failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return c.serverError(ctx, "failed to read upload", err)
	}
	if len(data) > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio file too large")
	}

	info, err := audiofile.Probe(data)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "upload is not valid WAV audio")
	}

	locator := fmt.Sprintf("%s/%d.wav", vehicleID, time.Now().UnixNano())
	if err := c.audio.Put(ctx.Request().Context(), locator, data); err != nil {
		return c.serverError(ctx, "failed to store audio", err)
	}

	job := &datastore.IngestionJob{
		JobID:      uuid.New().String(),
		VehicleID:  vehicleID,
		DeviceID:   deviceID,
		Locator:    locator,
		Status:     datastore.JobStatusPending,
		FileSize:   info.FileSize,
		Duration:   info.Duration.Seconds(),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		Checksum:   info.Checksum,
	}
	if err := c.store.CreateIngestionJob(job); err != nil {
		return c.serverError(ctx, "failed to create ingestion job", err)
	}

	if err := c.queue.Publish(ctx.Request().Context(), &queue.Message{
		JobID:     job.JobID,
		VehicleID: vehicleID,
		Locator:   locator,
	}); err != nil {
		// The job row exists and stays pending; a requeue sweep or manual
		// redrive can pick it up.
		c.logger.Error("failed to enqueue job", "job_id", job.JobID, "error", err)
		return c.serverError(ctx, "failed to enqueue job", err)
	}

	c.logger.Info("audio ingested",
		"job_id", job.JobID,
		"vehicle_id", vehicleID,
		"locator", locator,
		"duration_s", job.Duration)

	return ctx.JSON(http.StatusAccepted, ingestResponse{
		JobID:   job.JobID,
		Locator: locator,
		Status:  job.Status,
	})
}

// completeRequest is the upload-complete notice for audio that reached
// storage out of band (device-to-storage direct upload).
type completeRequest struct {
	VehicleID string `json:"vehicle_id"`
	DeviceID  string `json:"device_id"`
	Locator   string `json:"locator"`
	Checksum  string `json:"checksum"`
}

// IngestComplete creates and enqueues a job for audio already in storage.
func (c *Controller) IngestComplete(ctx echo.Context) error {
	var req completeRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.VehicleID == "" || req.Locator == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vehicle_id and locator are required")
	}

	job := &datastore.IngestionJob{
		JobID:     uuid.New().String(),
		VehicleID: req.VehicleID,
		DeviceID:  req.DeviceID,
		Locator:   req.Locator,
		Status:    datastore.JobStatusPending,
		Checksum:  req.Checksum,
	}
	if err := c.store.CreateIngestionJob(job); err != nil {
		return c.serverError(ctx, "failed to create ingestion job", err)
	}

	if err := c.queue.Publish(ctx.Request().Context(), &queue.Message{
		JobID:     job.JobID,
		VehicleID: req.VehicleID,
		Locator:   req.Locator,
	}); err != nil {
		c.logger.Error("failed to enqueue job", "job_id", job.JobID, "error", err)
		return c.serverError(ctx, "failed to enqueue job", err)
	}

	return ctx.JSON(http.StatusAccepted, ingestResponse{
		JobID:   job.JobID,
		Locator: req.Locator,
		Status:  job.Status,
	})
}
