package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Deven-0012/Cloud-281/internal/errors"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Publish and Receive after Close.
var ErrQueueClosed = errors.Newf("queue is closed").
	Component("queue").
	Category(errors.CategoryQueue).
	Retryable(false).
	Build()

// MemoryQueueConfig configures the in-process queue implementation.
type MemoryQueueConfig struct {
	BufferSize        int
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
}

// MemoryQueue is an in-process Queue with SQS-like redelivery semantics:
// a received message stays invisible until acked, nacked, or its visibility
// timeout lapses. Messages exceeding the max receive count are dropped and
// logged; their jobs stay pending for operator attention.
//
// Redelivery always enqueues a copy, so a stalled consumer still holding the
// previous delivery never shares a Message with the next one. The buffer
// channel is never closed; shutdown is signaled through done so late Nacks
// and timer callbacks are safe.
type MemoryQueue struct {
	cfg      MemoryQueueConfig
	messages chan *Message
	done     chan struct{}

	mu       sync.Mutex
	inflight map[string]*time.Timer
	closed   bool

	logger *slog.Logger
}

// NewMemoryQueue creates a new in-process queue.
func NewMemoryQueue(cfg MemoryQueueConfig) *MemoryQueue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 60 * time.Second
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = 3
	}

	logger := logging.ForService("queue")
	if logger == nil {
		logger = slog.Default().With("service", "queue")
	}

	return &MemoryQueue{
		cfg:      cfg,
		messages: make(chan *Message, cfg.BufferSize),
		done:     make(chan struct{}),
		inflight: make(map[string]*time.Timer),
		logger:   logger,
	}
}

// Publish enqueues a message for delivery.
func (q *MemoryQueue) Publish(ctx context.Context, msg *Message) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.messages <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("queue").
			Category(errors.CategoryQueue).
			Context("message_id", msg.ID).
			Build()
	}
}

// Receive blocks until a message is available or ctx is done. The returned
// message is invisible to other consumers until acked, nacked, or timed out.
func (q *MemoryQueue) Receive(ctx context.Context) (*Message, error) {
	for {
		select {
		case msg := <-q.messages:
			msg.Attempts++
			if msg.Attempts > q.cfg.MaxReceiveCount {
				q.logger.Warn("dropping message after max receives",
					"message_id", msg.ID,
					"job_id", msg.JobID,
					"attempts", msg.Attempts,
				)
				continue
			}
			q.startVisibilityTimer(msg)
			return msg, nil
		case <-q.done:
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, errors.New(ctx.Err()).
				Component("queue").
				Category(errors.CategoryQueue).
				Build()
		}
	}
}

// Ack marks the message as handled.
func (q *MemoryQueue) Ack(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if timer, ok := q.inflight[msg.ID]; ok {
		timer.Stop()
		delete(q.inflight, msg.ID)
	}
}

// Nack returns the message for immediate redelivery.
func (q *MemoryQueue) Nack(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if timer, ok := q.inflight[msg.ID]; ok {
		timer.Stop()
		delete(q.inflight, msg.ID)
	}
	q.redeliverLocked(msg)
}

// Close stops delivery and cancels redelivery timers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	for id, timer := range q.inflight {
		timer.Stop()
		delete(q.inflight, id)
	}
	return nil
}

// startVisibilityTimer schedules redelivery for an unacknowledged message.
func (q *MemoryQueue) startVisibilityTimer(msg *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.inflight[msg.ID] = time.AfterFunc(q.cfg.VisibilityTimeout, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, stillInflight := q.inflight[msg.ID]; !stillInflight {
			return
		}
		delete(q.inflight, msg.ID)
		q.logger.Debug("visibility timeout lapsed, redelivering",
			"message_id", msg.ID,
			"job_id", msg.JobID,
		)
		q.redeliverLocked(msg)
	})
}

// redeliverLocked re-enqueues a copy of msg. Callers hold q.mu, which keeps
// the closed check and the send ordered against Close.
func (q *MemoryQueue) redeliverLocked(msg *Message) {
	if q.closed {
		return
	}
	m := *msg
	select {
	case q.messages <- &m:
	default:
		q.logger.Warn("queue full, dropping redelivered message", "message_id", msg.ID)
	}
}
