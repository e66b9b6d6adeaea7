package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(visibility time.Duration, maxReceives int) *MemoryQueue {
	return NewMemoryQueue(MemoryQueueConfig{
		BufferSize:        16,
		VisibilityTimeout: visibility,
		MaxReceiveCount:   maxReceives,
	})
}

func TestPublishReceiveAck(t *testing.T) {
	q := newTestQueue(time.Minute, 3)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-1", VehicleID: "CAR-1", Locator: "CAR-1/a.wav"}))

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job-1", msg.JobID)
	assert.Equal(t, 1, msg.Attempts)
	assert.NotEmpty(t, msg.ID)

	q.Ack(msg)

	// Acked message never comes back.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Receive(shortCtx)
	require.Error(t, err)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	q := newTestQueue(30*time.Millisecond, 5)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-2", Locator: "x"}))

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	// No ack: the message must reappear after the visibility timeout.

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := q.Receive(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempts)
}

func TestNackRedeliversImmediately(t *testing.T) {
	q := newTestQueue(time.Minute, 5)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-3", Locator: "x"}))

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	q.Nack(msg)

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	again, err := q.Receive(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, again.ID)
}

func TestMaxReceiveCountDropsMessage(t *testing.T) {
	q := newTestQueue(time.Minute, 2)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-4", Locator: "x"}))

	for i := 0; i < 2; i++ {
		msg, err := q.Receive(ctx)
		require.NoError(t, err)
		q.Nack(msg)
	}

	// Third receive exceeds the cap; the message is dropped, not delivered.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := q.Receive(shortCtx)
	require.Error(t, err)
}

func TestReceiveHonorsContext(t *testing.T) {
	q := newTestQueue(time.Minute, 3)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Receive(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCloseStopsDelivery(t *testing.T) {
	q := newTestQueue(time.Minute, 3)
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), &Message{JobID: "job-5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Receive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestNackAfterCloseIsSafe(t *testing.T) {
	q := newTestQueue(time.Minute, 3)

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-6", Locator: "x"}))
	msg, err := q.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Close())

	// A consumer finishing after shutdown must not crash the process.
	q.Nack(msg)
	q.Ack(msg)
}

func TestRedeliveryCopiesMessage(t *testing.T) {
	q := newTestQueue(time.Minute, 5)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &Message{JobID: "job-7", Locator: "x"}))

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	q.Nack(first)

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := q.Receive(recvCtx)
	require.NoError(t, err)
	require.NotSame(t, first, second, "a stalled consumer must not share state with the next delivery")
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, 2, second.Attempts)
}
