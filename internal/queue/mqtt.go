package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
)

// connectTimeout bounds the initial broker connection attempt.
const connectTimeout = 30 * time.Second

// MQTTIngress bridges device upload-complete notices from an MQTT topic into
// the work queue. Devices publish a JSON body carrying the job reference;
// anything malformed is logged and dropped, one bad device must not stall
// the pipeline.
type MQTTIngress struct {
	settings conf.MQTTSettings
	queue    Queue
	client   mqtt.Client
	logger   *slog.Logger
}

// NewMQTTIngress creates an ingress bridge publishing into q.
func NewMQTTIngress(settings conf.MQTTSettings, q Queue) *MQTTIngress {
	logger := logging.ForService("mqtt-ingress")
	if logger == nil {
		logger = slog.Default().With("service", "mqtt-ingress")
	}
	return &MQTTIngress{
		settings: settings,
		queue:    q,
		logger:   logger,
	}
}

// Start connects to the broker and subscribes to the upload topic.
func (mi *MQTTIngress) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(mi.settings.Broker)
	opts.SetClientID(mi.settings.ClientID)
	if mi.settings.Username != "" {
		opts.SetUsername(mi.settings.Username)
		opts.SetPassword(mi.settings.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(mi.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		mi.logger.Warn("broker connection lost", "error", err)
	})

	mi.client = mqtt.NewClient(opts)

	token := mi.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("mqtt-ingress").
			Category(errors.CategoryNetwork).
			Build()
	case <-time.After(connectTimeout):
		return errors.Newf("timed out connecting to broker %s", mi.settings.Broker).
			Component("mqtt-ingress").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt-ingress").
			Category(errors.CategoryNetwork).
			Context("broker", mi.settings.Broker).
			Build()
	}

	mi.logger.Info("connected to broker",
		"broker", mi.settings.Broker,
		"topic", mi.settings.Topic,
	)
	return nil
}

// onConnect re-subscribes on every (re)connection.
func (mi *MQTTIngress) onConnect(client mqtt.Client) {
	token := client.Subscribe(mi.settings.Topic, 1, mi.onMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			mi.logger.Error("subscribe failed", "topic", mi.settings.Topic, "error", err)
		}
	}()
}

// onMessage parses a device notice and feeds the work queue.
func (mi *MQTTIngress) onMessage(_ mqtt.Client, m mqtt.Message) {
	var msg Message
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		mi.logger.Warn("dropping malformed device notice",
			"topic", m.Topic(),
			"error", err,
		)
		return
	}
	if msg.JobID == "" || msg.Locator == "" {
		mi.logger.Warn("dropping device notice without job reference", "topic", m.Topic())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mi.queue.Publish(ctx, &msg); err != nil {
		mi.logger.Error("failed to enqueue device notice",
			"job_id", msg.JobID,
			"error", err,
		)
	}
}

// Stop disconnects from the broker.
func (mi *MQTTIngress) Stop() {
	if mi.client != nil && mi.client.IsConnected() {
		mi.client.Disconnect(250)
	}
}
