package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 16})

	q.Start(context.Background())
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	q.Stop()

	assert.Equal(t, int32(10), atomic.LoadInt32(&handled))
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var gaveUp []Job
	done := make(chan struct{})

	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			gaveUp = append(gaveUp, job)
			mu.Unlock()
			close(done)
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "mail-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never given up")
	}
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gaveUp, 1)
	assert.Equal(t, 3, gaveUp[0].Attempt)
}

func TestQueueReportsRetryDroppedOnStop(t *testing.T) {
	var mu sync.Mutex
	var gaveUp []error
	firstAttempt := make(chan struct{})
	var once sync.Once

	q := NewQueue("shutdown", func(ctx context.Context, job Job) error {
		once.Do(func() { close(firstAttempt) })
		return errors.New("smtp down")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 10,
		RetryDelay: 20 * time.Millisecond,
		OnGiveUp: func(job Job, err error) {
			mu.Lock()
			gaveUp = append(gaveUp, err)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "mail-1"}))

	select {
	case <-firstAttempt:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gaveUp, 1)
	assert.EqualError(t, gaveUp[0], "smtp down")
}

func TestQueueEnqueueDoesNotBlockWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	// first job may already be picked up by the worker; fill until rejected
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(Job{ID: "b"})
	}
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop()
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
}
