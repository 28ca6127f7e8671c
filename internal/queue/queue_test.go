package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	body, err := encodePayload(" job-1 ", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobId":"job-1"}`, string(body))

	id, err := decodePayload(body)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	_, err = encodePayload("", "")
	assert.Error(t, err)
	_, err = decodePayload([]byte(`{"other":1}`))
	assert.Error(t, err)
	_, err = decodePayload([]byte(`not json`))
	assert.Error(t, err)
}

func TestMemoryDeliversOnce(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 20*time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "job-1"))
	require.NoError(t, q.Enqueue(ctx, "job-2"))

	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-1", msgs[0].JobID)
	assert.Equal(t, 1, msgs[0].Deliveries)

	msgs, err = q.Receive(ctx, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-2", msgs[0].JobID)

	msgs, err = q.Receive(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryRetryRedelivers(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 50*time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "job-1"))

	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Retry(ctx, msgs[0], 0))

	again, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].Deliveries)

	require.NoError(t, q.Ack(ctx, again[0]))
	assert.Zero(t, q.Len())
}

func TestMemoryVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 20*time.Millisecond)
	now := time.Unix(1_700_000_000, 0)
	q.now = func() time.Time { return now }
	require.NoError(t, q.Enqueue(ctx, "job-1"))

	_, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	now = now.Add(2 * time.Minute)
	msgs, err = q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, msgs[0].Deliveries)
}

func TestMemoryDeadLetter(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 20*time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, "job-1"))
	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, q.DeadLetter(ctx, msgs[0], "persist jobs.finish: connection refused"))
	assert.Zero(t, q.Len())
	dead := q.Dead()
	require.Len(t, dead, 1)
	assert.Equal(t, "job-1", dead[0].JobID)
	assert.Contains(t, dead[0].Reason, "connection refused")
}

func TestMemoryReceiveWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemory(time.Minute, 5*time.Second)
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Enqueue(ctx, "job-late")
	}()
	start := time.Now()
	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMemoryReceiveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory(time.Minute, time.Second).Receive(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOffline(t *testing.T) {
	assert.True(t, errors.Is(Offline{}.Enqueue(context.Background(), "job-1"), ErrUnavailable))
}

func TestPGMQDefaults(t *testing.T) {
	q := NewPGMQ(nil, PGMQOptions{})
	assert.Equal(t, "promptfusion_jobs", q.opts.Queue)
	assert.Equal(t, "promptfusion_jobs_dlq", q.opts.DeadLetter)
	assert.Equal(t, 600, seconds(q.opts.Visibility))
	assert.Equal(t, 2, seconds(1500*time.Millisecond))
}
