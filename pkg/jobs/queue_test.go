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

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("notifications", func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "n-1", Type: "document_approved"}))

	select {
	case job := <-done:
		assert.Equal(t, "n-1", job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("notifications", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("smtp down")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "n-2"}))

	select {
	case <-done:
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
}

func TestQueueRecoversFromPanics(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("notifications", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("nil recipient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "n-3"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestQueueEnqueueRequiresStart(t *testing.T) {
	q := NewQueue("notifications", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "n-4"}))
}

func TestQueueEnqueueDoesNotBlockWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("notifications", func(context.Context, Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop(context.Background())
	}()

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(Job{ID: "n"}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var handled int32
	release := make(chan struct{})
	q := NewQueue("notifications", func(context.Context, Job) error {
		<-release
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "n"}))
	}
	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Stop(ctx)

	assert.EqualValues(t, 3, atomic.LoadInt32(&handled))
	assert.Zero(t, q.Pending())
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)
}

func TestQueueStopDeadLettersWhenDeadlinePasses(t *testing.T) {
	var mu sync.Mutex
	var dead []string
	started := make(chan struct{}, 1)
	q := NewQueue("notifications", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, BufferSize: 4, DeadLetter: func(job Job, err error) {
		mu.Lock()
		defer mu.Unlock()
		dead = append(dead, job.ID)
	}})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "in-flight"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"in-flight", "buffered"}, dead)
}

func TestQueueDeadLettersAfterRetries(t *testing.T) {
	dead := make(chan Job, 1)
	q := NewQueue("notifications", func(context.Context, Job) error {
		return errors.New("inbox unavailable")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond, DeadLetter: func(job Job, err error) {
		dead <- job
	}})
	q.Start(context.Background())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "n-5"}))

	select {
	case job := <-dead:
		assert.Equal(t, "n-5", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job not dead-lettered")
	}
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("notifications", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})
	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 2*time.Second, q.backoff(2))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, 5*time.Second, q.backoff(4))
}
