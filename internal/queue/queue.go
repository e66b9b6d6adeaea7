// Package queue provides the at-least-once work queue feeding the
// classification worker. References to uploaded audio enter here, either from
// the ingest API or from the MQTT device bridge, and are redelivered when a
// consumer fails to acknowledge them within the visibility timeout.
package queue

import (
	"context"
	"time"
)

// Message references one uploaded audio capture awaiting classification.
type Message struct {
	ID         string    `json:"id"`
	JobID      string    `json:"jobId"`
	VehicleID  string    `json:"carId"`
	Locator    string    `json:"locator"`
	Attempts   int       `json:"-"` // delivery attempts so far, set by the queue
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is the delivery contract consumed by the classification worker.
// Delivery is at-least-once: a message that is neither acked nor nacked is
// redelivered after the visibility timeout, up to the max receive count.
type Queue interface {
	// Publish enqueues a message for delivery.
	Publish(ctx context.Context, msg *Message) error
	// Receive blocks until a message is available or ctx is done.
	Receive(ctx context.Context) (*Message, error)
	// Ack marks the message as handled; it will not be redelivered.
	Ack(msg *Message)
	// Nack returns the message for immediate redelivery.
	Nack(msg *Message)
	// Close stops delivery. Pending Receive calls return ErrQueueClosed.
	Close() error
}
