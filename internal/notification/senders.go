package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// shoutrrrSender delivers over any shoutrrr-supported service (push, SMS
// gateway, SMTP). One sender per channel; multiple URLs fan out together.
type shoutrrrSender struct {
	channel   string
	recipient string
	sender    *router.ServiceRouter
}

func newShoutrrrSender(channel, recipient string, urls []string) (*shoutrrrSender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("%s channel enabled with no service URL", channel).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("channel", channel).
			Build()
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &shoutrrrSender{
		channel:   channel,
		recipient: recipient,
		sender:    sender,
	}, nil
}

func (s *shoutrrrSender) Channel() string   { return s.channel }
func (s *shoutrrrSender) Recipient() string { return s.recipient }

func (s *shoutrrrSender) Send(_ context.Context, a *datastore.Alert, message string) error {
	params := stypes.Params{}
	params.SetTitle(fmt.Sprintf("[%s] %s alert for %s", a.Severity, a.AlertType, a.VehicleID))

	errs := s.sender.Send(message, &params)
	for _, err := range errs {
		if err != nil {
			// Gateway errors are worth retrying; the router doesn't
			// distinguish, so treat them all as transient.
			return errors.New(err).
				Component("notification").
				Category(errors.CategoryNetwork).
				Context("channel", s.channel).
				Build()
		}
	}
	return nil
}

// webhookSender POSTs the full alert as JSON to the service-center endpoint.
type webhookSender struct {
	url    string
	client *http.Client
}

func newWebhookSender(url string, timeout time.Duration) *webhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *webhookSender) Channel() string   { return datastore.ChannelWebhook }
func (w *webhookSender) Recipient() string { return w.url }

// webhookPayload is the wire shape the service center consumes.
type webhookPayload struct {
	AlertID    string    `json:"alert_id"`
	VehicleID  string    `json:"vehicle_id"`
	Label      string    `json:"label"`
	AlertType  string    `json:"alert_type"`
	Severity   string    `json:"severity"`
	Priority   string    `json:"priority"`
	Confidence float64   `json:"confidence"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func (w *webhookSender) Send(ctx context.Context, a *datastore.Alert, message string) error {
	body, err := json.Marshal(webhookPayload{
		AlertID:    a.AlertID,
		VehicleID:  a.VehicleID,
		Label:      a.Label,
		AlertType:  a.AlertType,
		Severity:   a.Severity,
		Priority:   a.Priority,
		Confidence: a.Confidence,
		Message:    message,
		CreatedAt:  a.CreatedAt,
	})
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("url", w.url).
			Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return errors.Newf("webhook returned %d", resp.StatusCode).
			Component("notification").
			Category(errors.CategoryNetwork).
			Build()
	default:
		// 4xx means the endpoint rejected the payload; retrying won't help.
		return errors.Newf("webhook rejected alert: %d", resp.StatusCode).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
}

var (
	_ Sender = (*shoutrrrSender)(nil)
	_ Sender = (*webhookSender)(nil)
)
