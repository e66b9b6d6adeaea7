// Package notification fans newly created alerts out to external channels.
// Delivery is asynchronous so a slow SMS gateway never stalls classification,
// and every attempt leaves a Notification row behind for the dashboard.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Deven-0012/Cloud-281/internal/alert"
	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/Deven-0012/Cloud-281/internal/observability"
)

// audience separates owner-facing channels from service-center channels so
// the notified flags on the alert can be set independently.
type audience int

const (
	audienceOwner audience = iota
	audienceService
)

// Sender delivers one alert message over one channel.
type Sender interface {
	Channel() string
	Recipient() string
	Send(ctx context.Context, a *datastore.Alert, message string) error
}

// Dispatcher consumes alert events and drives per-channel delivery with
// bounded retries. It implements the engine's Sink.
type Dispatcher struct {
	store    datastore.Interface
	settings *conf.NotificationSettings
	metrics  *observability.Metrics
	logger   *slog.Logger

	owner   []Sender // channels for the vehicle owner
	service []Sender // channels for the service center

	events chan *alert.Event
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with senders built from settings.
// metrics may be nil in tests.
func NewDispatcher(store datastore.Interface, settings *conf.NotificationSettings, metrics *observability.Metrics) (*Dispatcher, error) {
	logger := logging.ForService("notification")
	if logger == nil {
		logger = slog.Default().With("service", "notification")
	}

	queueSize := settings.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Dispatcher{
		store:    store,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		events:   make(chan *alert.Event, queueSize),
	}

	if settings.Push.Enabled {
		s, err := newShoutrrrSender(datastore.ChannelPush, "owner-device", settings.Push.URLs)
		if err != nil {
			return nil, err
		}
		d.owner = append(d.owner, s)
	}
	if settings.SMS.Enabled {
		s, err := newShoutrrrSender(datastore.ChannelSMS, settings.SMS.Recipient, []string{settings.SMS.URL})
		if err != nil {
			return nil, err
		}
		d.owner = append(d.owner, s)
	}
	if settings.Email.Enabled {
		s, err := newShoutrrrSender(datastore.ChannelEmail, settings.Email.Recipient, []string{settings.Email.URL})
		if err != nil {
			return nil, err
		}
		d.owner = append(d.owner, s)
	}
	if settings.Webhook.Enabled {
		d.service = append(d.service, newWebhookSender(settings.Webhook.URL, settings.Webhook.Timeout))
	}

	return d, nil
}

// Emit queues an event for delivery without blocking the evaluation path.
// Events are dropped with a warning when the buffer is full; the alert row
// itself is already durable at this point.
func (d *Dispatcher) Emit(event *alert.Event) {
	select {
	case d.events <- event:
	default:
		d.logger.Warn("notification buffer full, dropping event",
			"alert_id", event.Alert.AlertID)
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues("all", "dropped").Inc()
		}
	}
}

// Run starts the dispatch workers and blocks until ctx is canceled. Events
// still buffered at cancellation are dropped; the alert rows behind them
// remain durable and visible on the dashboard.
func (d *Dispatcher) Run(ctx context.Context) {
	workers := d.settings.Workers
	if workers <= 0 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-d.events:
					d.dispatch(ctx, event)
				}
			}
		}()
	}
	d.wg.Wait()
}

// dispatch fans one alert out to its audiences and records the notified
// flags once all channels have settled.
func (d *Dispatcher) dispatch(ctx context.Context, event *alert.Event) {
	a := event.Alert
	ownerOK, serviceOK := false, false

	if event.NotifyOwner {
		for _, s := range d.owner {
			// SMS is reserved for high-priority alerts to keep gateway costs sane.
			if s.Channel() == datastore.ChannelSMS && a.Priority != "high" {
				continue
			}
			if d.deliver(ctx, s, a) {
				ownerOK = true
			}
		}
	}
	if event.NotifyService {
		for _, s := range d.service {
			if d.deliver(ctx, s, a) {
				serviceOK = true
			}
		}
	}

	if ownerOK || serviceOK {
		if err := d.store.SetAlertNotified(a.AlertID, ownerOK, serviceOK); err != nil {
			d.logger.Error("failed to record notified flags",
				"alert_id", a.AlertID, "error", err)
		}
	}
}

// deliver attempts one channel with bounded exponential backoff, recording
// the outcome on a Notification row. Returns true on successful delivery.
func (d *Dispatcher) deliver(ctx context.Context, sender Sender, a *datastore.Alert) bool {
	row := &datastore.Notification{
		NotificationID: uuid.New().String(),
		AlertID:        a.AlertID,
		Recipient:      sender.Recipient(),
		Channel:        sender.Channel(),
		Status:         datastore.NotificationStatusPending,
	}
	if err := d.store.CreateNotification(row); err != nil {
		d.logger.Error("failed to create notification row",
			"alert_id", a.AlertID, "channel", sender.Channel(), "error", err)
		return false
	}

	maxAttempts := d.settings.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := d.settings.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := d.settings.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		lastErr = sender.Send(ctx, a, a.Message)
		if lastErr == nil {
			if err := d.store.UpdateNotificationStatus(row.NotificationID, datastore.NotificationStatusSent, "", attempt); err != nil {
				d.logger.Error("failed to mark notification sent",
					"notification_id", row.NotificationID, "error", err)
			}
			if d.metrics != nil {
				d.metrics.NotificationsSent.WithLabelValues(sender.Channel(), "sent").Inc()
			}
			d.logger.Info("notification delivered",
				"alert_id", a.AlertID, "channel", sender.Channel(), "attempts", attempt)
			return true
		}

		if !errors.IsRetryable(lastErr) || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if err := d.store.UpdateNotificationStatus(row.NotificationID, datastore.NotificationStatusFailed, lastErr.Error(), attempts); err != nil {
		d.logger.Error("failed to mark notification failed",
			"notification_id", row.NotificationID, "error", err)
	}
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(sender.Channel(), "failed").Inc()
	}
	d.logger.Error("notification delivery failed",
		"alert_id", a.AlertID, "channel", sender.Channel(), "error", lastErr)
	return false
}

var _ alert.Sink = (*Dispatcher)(nil)
