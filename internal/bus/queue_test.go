package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryPublish(t *testing.T) {
	q := NewQueue[int](2)
	require.NoError(t, q.TryPublish(1))
	require.NoError(t, q.TryPublish(2))
	require.ErrorIs(t, q.TryPublish(3), ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	q.Close()
	q.Close()
	require.ErrorIs(t, q.TryPublish(4), ErrQueueClosed)
	require.ErrorIs(t, q.Publish(t.Context(), 4), ErrQueueClosed)

	var got []int
	q.Drain(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 2}, got)
}

func TestQueuePublishWaits(t *testing.T) {
	q := NewQueue[int](1)
	require.NoError(t, q.TryPublish(1))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Publish(ctx, 2), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- q.Publish(t.Context(), 2) }()

	var got []int
	go q.Run(t.Context(), func(v int) { got = append(got, v) })
	require.NoError(t, <-done)
	q.Close()
	assert.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
}

func TestQueueCloseWhilePublishing(t *testing.T) {
	q := NewQueue[int](4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if err := q.Publish(t.Context(), j); err != nil {
					assert.ErrorIs(t, err, ErrQueueClosed)
					return
				}
			}
		}()
	}

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		q.Drain(func(int) {})
	}()

	time.Sleep(time.Millisecond)
	q.Close()
	wg.Wait()
	<-consumed
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithCancel(t.Context())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		q.Run(ctx, func(int) {})
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
