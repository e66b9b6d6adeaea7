// Package worker pulls upload notices off the work queue, runs them through
// the classifier, and persists the resulting detections. It owns the
// ingestion job write path.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Deven-0012/Cloud-281/internal/alert"
	"github.com/Deven-0012/Cloud-281/internal/audiofile"
	"github.com/Deven-0012/Cloud-281/internal/classifier"
	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/Deven-0012/Cloud-281/internal/observability"
	"github.com/Deven-0012/Cloud-281/internal/queue"
	"github.com/Deven-0012/Cloud-281/internal/storage"
)

// Worker processes queued ingestion jobs. Multiple instances can consume the
// same queue; the job claim in the datastore arbitrates duplicates.
type Worker struct {
	store    datastore.Interface
	queue    queue.Queue
	audio    storage.AudioStore
	model    classifier.Classifier
	engine   *alert.Engine
	settings *conf.Settings
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New creates a worker. engine and metrics may be nil in tests.
func New(store datastore.Interface, q queue.Queue, audio storage.AudioStore, model classifier.Classifier, engine *alert.Engine, settings *conf.Settings, metrics *observability.Metrics) *Worker {
	logger := logging.ForService("worker")
	if logger == nil {
		logger = slog.Default().With("service", "worker")
	}
	return &Worker{
		store:    store,
		queue:    q,
		audio:    audio,
		model:    model,
		engine:   engine,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run starts the configured number of consumers and blocks until ctx is
// canceled.
func (w *Worker) Run(ctx context.Context) error {
	workers := w.settings.Queue.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	return g.Wait()
}

// consume is one receive loop. Transient processing failures nack the
// message so the queue redrives it; everything else acks.
func (w *Worker) consume(ctx context.Context) error {
	for {
		msg, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			w.logger.Error("queue receive failed", "error", err)
			continue
		}
		if w.metrics != nil {
			w.metrics.QueueReceives.Inc()
		}

		if err := w.ProcessMessage(ctx, msg); err != nil {
			if errors.IsRetryable(err) {
				w.logger.Warn("transient failure, requeueing job",
					"job_id", msg.JobID, "attempts", msg.Attempts, "error", err)
				if w.metrics != nil {
					w.metrics.JobsProcessed.WithLabelValues("requeued").Inc()
				}
				w.queue.Nack(msg)
				continue
			}
			w.logger.Error("permanent failure, dropping job",
				"job_id", msg.JobID, "error", err)
		}
		w.queue.Ack(msg)
	}
}

// ProcessMessage runs one queued job end to end: claim the job, fetch and
// validate the audio, classify, persist detections, evaluate alert rules,
// and finalize the job. The returned error's retryability tells the caller
// whether to ack or nack the message.
func (w *Worker) ProcessMessage(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	won, err := w.store.TryMarkJobProcessing(msg.JobID)
	if err != nil {
		return err
	}
	if !won {
		// Another consumer claimed it, or the job is already done.
		w.logger.Debug("job claim lost, skipping", "job_id", msg.JobID)
		return nil
	}

	result, failErr := w.classifyJob(ctx, msg)
	if failErr != nil {
		if err := w.store.MarkJobFailed(msg.JobID, failErr.Error()); err != nil {
			w.logger.Error("failed to mark job failed", "job_id", msg.JobID, "error", err)
		}
		if w.metrics != nil && !errors.IsRetryable(failErr) {
			w.metrics.JobsProcessed.WithLabelValues("failed").Inc()
		}
		return failErr
	}

	if perr := w.persistDetections(ctx, msg, result, time.Since(start)); perr != nil {
		if err := w.store.MarkJobFailed(msg.JobID, perr.Error()); err != nil {
			w.logger.Error("failed to mark job failed", "job_id", msg.JobID, "error", err)
		}
		return perr
	}

	if err := w.store.MarkJobCompleted(msg.JobID); err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.JobsProcessed.WithLabelValues("completed").Inc()
		w.metrics.JobDuration.Observe(time.Since(start).Seconds())
	}
	w.logger.Info("job completed",
		"job_id", msg.JobID,
		"vehicle_id", msg.VehicleID,
		"predictions", len(result.Predictions),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// classifyJob fetches and validates the capture, then scores it. No
// detections are written if any step fails.
func (w *Worker) classifyJob(ctx context.Context, msg *queue.Message) (*classifier.Result, error) {
	data, err := w.audio.Fetch(ctx, msg.Locator)
	if err != nil {
		return nil, err
	}

	if _, err := audiofile.Probe(data); err != nil {
		return nil, err
	}

	return w.model.Classify(ctx, data)
}

// persistDetections writes one detection per prediction above the
// configured floor and runs each canonical detection through the rule
// engine. Replays folded away by the natural key are re-evaluated with their
// stored row; the alert dedup keyed by detection id keeps that idempotent.
// Storage failures and transient evaluation failures are returned so the
// job is failed and the message redriven instead of completing with an
// alert silently lost.
func (w *Worker) persistDetections(ctx context.Context, msg *queue.Message, result *classifier.Result, elapsed time.Duration) error {
	minConfidence := w.settings.Classifier.MinConfidence

	for i := range result.Predictions {
		p := &result.Predictions[i]
		if p.Confidence < minConfidence {
			continue
		}

		d := &datastore.Detection{
			DetectionID:      uuid.New().String(),
			JobID:            msg.JobID,
			VehicleID:        msg.VehicleID,
			Label:            p.Label,
			WindowStart:      p.WindowStart,
			Confidence:       p.Confidence,
			ModelVersion:     result.ModelVersion,
			Locator:          msg.Locator,
			EventAt:          time.Now(),
			Status:           datastore.DetectionStatusCompleted,
			ProcessingTimeMs: elapsed.Milliseconds(),
		}

		stored, created, err := w.store.CreateDetection(d)
		if err != nil {
			return err
		}
		if created {
			if w.metrics != nil {
				w.metrics.DetectionsCreated.WithLabelValues(p.Label).Inc()
			}
		} else {
			w.logger.Debug("detection already recorded, re-evaluating",
				"job_id", msg.JobID, "label", p.Label, "window_start", p.WindowStart)
		}

		if w.engine == nil {
			continue
		}
		if _, _, err := w.engine.Evaluate(ctx, stored); err != nil {
			if errors.IsRetryable(err) {
				return err
			}
			// A rule lookup failure must not fail the job or silently
			// create an alert.
			w.logger.Error("alert evaluation failed",
				"detection_id", stored.DetectionID, "label", stored.Label, "error", err)
		}
	}
	return nil
}
